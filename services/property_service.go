package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"rentahome/models"
	"rentahome/utils"
)

// CreatePropertyDTO представляет данные для публикации объекта
type CreatePropertyDTO struct {
	OwnerID     uint            `json:"-" validate:"required"`
	Title       string          `json:"title" validate:"required,min=3,max=150"`
	Address     string          `json:"address" validate:"max=255"`
	City        string          `json:"city" validate:"required,max=100"`
	Bedrooms    int             `json:"bedrooms" validate:"gte=0,max=50"`
	MonthlyRate decimal.Decimal `json:"monthly_rate"`
}

// SearchPropertiesDTO представляет параметры поиска объектов
type SearchPropertiesDTO struct {
	City        string `validate:"max=100"`
	MinRate     string `validate:"omitempty,numeric"`
	MaxRate     string `validate:"omitempty,numeric"`
	MinBedrooms int    `validate:"gte=0"`
	Sort        string `validate:"omitempty,oneof=price_low price_high newest"`
}

// PropertyService предоставляет методы для работы с объектами
type PropertyService struct {
	store     Store
	validator *validator.Validate
}

// NewPropertyService создает новый экземпляр PropertyService
func NewPropertyService(store Store) *PropertyService {
	return &PropertyService{
		store:     store,
		validator: validator.New(),
	}
}

// Create публикует объект владельца, объект сразу доступен для бронирования
func (s *PropertyService) Create(ctx context.Context, dto CreatePropertyDTO) (property *models.Property, err error) {
	defer func(start time.Time) { utils.LogOperation("CreateProperty", start, err) }(time.Now())

	if err := s.validator.Struct(dto); err != nil {
		return nil, validationError(err)
	}
	if !dto.MonthlyRate.IsPositive() {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	property = &models.Property{
		OwnerID:     dto.OwnerID,
		Title:       strings.TrimSpace(dto.Title),
		Address:     strings.TrimSpace(dto.Address),
		City:        strings.TrimSpace(dto.City),
		Bedrooms:    dto.Bedrooms,
		MonthlyRate: dto.MonthlyRate.Round(2),
		State:       models.PropertyAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProperty(ctx, property); err != nil {
		return nil, storeError("создание объекта", err)
	}

	return property, nil
}

// Get возвращает объект по идентификатору
func (s *PropertyService) Get(ctx context.Context, id uint) (*models.Property, error) {
	property, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return nil, storeError("поиск объекта", err)
	}
	return property, nil
}

// ListMine возвращает объекты владельца
func (s *PropertyService) ListMine(ctx context.Context, ownerID uint) ([]models.Property, error) {
	properties, err := s.store.FindProperties(ctx, PropertyFilter{OwnerID: ownerID})
	if err != nil {
		return nil, storeError("список объектов", err)
	}
	return properties, nil
}

// Search ищет доступные объекты по городу, цене и числу спален
func (s *PropertyService) Search(ctx context.Context, dto SearchPropertiesDTO) ([]models.Property, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, validationError(err)
	}

	filter := PropertyFilter{
		City:        strings.TrimSpace(dto.City),
		MinBedrooms: dto.MinBedrooms,
		State:       models.PropertyAvailable,
		Sort:        dto.Sort,
	}
	if dto.MinRate != "" {
		filter.MinRate = decimal.RequireFromString(dto.MinRate)
	}
	if dto.MaxRate != "" {
		filter.MaxRate = decimal.RequireFromString(dto.MaxRate)
	}

	properties, err := s.store.FindProperties(ctx, filter)
	if err != nil {
		return nil, storeError("поиск объектов", err)
	}
	return properties, nil
}

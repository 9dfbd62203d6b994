package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"rentahome/models"
	"rentahome/services"
)

// Store реализует services.Store поверх gorm
type Store struct {
	db *gorm.DB
}

var _ services.Store = (*Store)(nil)

// NewStore создает хранилище на открытом подключении
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// translateError приводит ошибки gorm к ошибкам-сигналам models
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", models.ErrDuplicate, err)
	}
	return err
}

// Методы для работы с пользователями
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return translateError(s.db.WithContext(ctx).Create(user).Error)
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("LOWER(TRIM(email)) = LOWER(TRIM(?))", email).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// Методы для работы с объектами
func (s *Store) CreateProperty(ctx context.Context, property *models.Property) error {
	return translateError(s.db.WithContext(ctx).Create(property).Error)
}

func (s *Store) GetProperty(ctx context.Context, id uint) (*models.Property, error) {
	var property models.Property
	if err := s.db.WithContext(ctx).First(&property, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &property, nil
}

func (s *Store) FindProperties(ctx context.Context, filter services.PropertyFilter) ([]models.Property, error) {
	query := s.db.WithContext(ctx).Model(&models.Property{})

	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.City != "" {
		query = query.Where("LOWER(city) = LOWER(?)", filter.City)
	}
	if !filter.MinRate.IsZero() {
		query = query.Where("monthly_rate >= ?", filter.MinRate)
	}
	if !filter.MaxRate.IsZero() {
		query = query.Where("monthly_rate <= ?", filter.MaxRate)
	}
	if filter.MinBedrooms > 0 {
		query = query.Where("bedrooms >= ?", filter.MinBedrooms)
	}
	if filter.State != "" {
		query = query.Where("estado = ?", filter.State)
	}

	switch filter.Sort {
	case "price_low":
		query = query.Order("monthly_rate ASC").Order("id DESC")
	case "price_high":
		query = query.Order("monthly_rate DESC").Order("id DESC")
	default:
		query = query.Order("created_at DESC").Order("id DESC")
	}

	var properties []models.Property
	if err := query.Find(&properties).Error; err != nil {
		return nil, translateError(err)
	}
	return properties, nil
}

func (s *Store) SetPropertyState(ctx context.Context, id uint, state models.PropertyState) error {
	result := s.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"estado": state, "updated_at": time.Now()})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Методы для работы с заявками
func (s *Store) CreateReservation(ctx context.Context, reservation *models.Reservation) error {
	return translateError(s.db.WithContext(ctx).Create(reservation).Error)
}

func (s *Store) GetReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := s.db.WithContext(ctx).First(&reservation, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &reservation, nil
}

func (s *Store) FindReservations(ctx context.Context, filter services.ReservationFilter) ([]models.Reservation, error) {
	query := s.db.WithContext(ctx).Model(&models.Reservation{}).Select("reservations.*")

	if filter.OwnerID != 0 {
		query = query.Joins("JOIN properties ON properties.id = reservations.property_id").
			Where("properties.owner_id = ?", filter.OwnerID)
	}
	if filter.RequesterID != 0 {
		query = query.Where("reservations.requester_id = ?", filter.RequesterID)
	}
	if filter.PropertyID != 0 {
		query = query.Where("reservations.property_id = ?", filter.PropertyID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("reservations.status IN ?", filter.Statuses)
	}

	var reservations []models.Reservation
	if err := query.Order("reservations.created_at DESC").Order("reservations.id DESC").Find(&reservations).Error; err != nil {
		return nil, translateError(err)
	}
	return reservations, nil
}

func (s *Store) TransitionReservation(ctx context.Context, id uint, from, to models.ReservationStatus, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": at})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return s.missingOrStale(ctx, &models.Reservation{}, id)
	}
	return nil
}

func (s *Store) DeleteReservations(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Reservation{})
	return result.RowsAffected, translateError(result.Error)
}

// Методы для работы с платежами
func (s *Store) ListPayments(ctx context.Context, reservationID uint) ([]models.MonthlyPayment, error) {
	var payments []models.MonthlyPayment
	if err := s.db.WithContext(ctx).Where("reservation_id = ?", reservationID).Order("mes ASC").Order("id ASC").Find(&payments).Error; err != nil {
		return nil, translateError(err)
	}
	return payments, nil
}

func (s *Store) GetPayment(ctx context.Context, id uint) (*models.MonthlyPayment, error) {
	var payment models.MonthlyPayment
	if err := s.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &payment, nil
}

func (s *Store) CreatePayment(ctx context.Context, payment *models.MonthlyPayment) error {
	return translateError(s.db.WithContext(ctx).Create(payment).Error)
}

func (s *Store) UpdatePayment(ctx context.Context, payment *models.MonthlyPayment, expected models.PaymentStatus) error {
	result := s.db.WithContext(ctx).Model(&models.MonthlyPayment{}).
		Where("id = ? AND estado_pago = ?", payment.ID, expected).
		Updates(map[string]interface{}{
			"metodo_pago":        payment.Method,
			"monto_pagado":       payment.AmountPaid,
			"comprobante_url":    payment.ProofURL,
			"estado_pago":        payment.Status,
			"verificado_por":     payment.VerifiedBy,
			"fecha_verificacion": payment.VerifiedAt,
			"motivo_rechazo":     payment.RejectionReason,
			"updated_at":         payment.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return s.missingOrStale(ctx, &models.MonthlyPayment{}, payment.ID)
	}
	return nil
}

func (s *Store) DeletePaymentsByReservations(ctx context.Context, reservationIDs []uint) (int64, error) {
	if len(reservationIDs) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Where("reservation_id IN ?", reservationIDs).Delete(&models.MonthlyPayment{})
	return result.RowsAffected, translateError(result.Error)
}

// Transaction выполняет fn в транзакции базы данных
func (s *Store) Transaction(ctx context.Context, fn func(tx services.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// missingOrStale различает отсутствующую строку и строку в другом статусе
// после условного обновления, не затронувшего ни одной строки
func (s *Store) missingOrStale(ctx context.Context, model interface{}, id uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return translateError(err)
	}
	if count == 0 {
		return models.ErrNotFound
	}
	return models.ErrStaleState
}

package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"rentahome/models"
)

// ReservationFilter задает выборку заявок. Нулевые поля не ограничивают выборку.
type ReservationFilter struct {
	RequesterID uint
	PropertyID  uint
	OwnerID     uint // заявки на объекты этого владельца
	Statuses    []models.ReservationStatus
}

// PropertyFilter задает поиск объектов
type PropertyFilter struct {
	OwnerID     uint
	City        string
	MinRate     decimal.Decimal
	MaxRate     decimal.Decimal
	MinBedrooms int
	State       models.PropertyState
	Sort        string // price_low, price_high; по умолчанию сначала новые
}

// Store описывает операции с хранилищем, которые нужны сервисам.
// Реализации возвращают models.ErrNotFound, models.ErrStaleState и models.ErrDuplicate.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateProperty(ctx context.Context, property *models.Property) error
	GetProperty(ctx context.Context, id uint) (*models.Property, error)
	FindProperties(ctx context.Context, filter PropertyFilter) ([]models.Property, error)
	SetPropertyState(ctx context.Context, id uint, state models.PropertyState) error

	CreateReservation(ctx context.Context, reservation *models.Reservation) error
	GetReservation(ctx context.Context, id uint) (*models.Reservation, error)
	FindReservations(ctx context.Context, filter ReservationFilter) ([]models.Reservation, error)
	// TransitionReservation меняет статус только если текущий статус равен from
	TransitionReservation(ctx context.Context, id uint, from, to models.ReservationStatus, at time.Time) error
	DeleteReservations(ctx context.Context, ids []uint) (int64, error)

	// ListPayments возвращает платежи заявки по возрастанию месяца
	ListPayments(ctx context.Context, reservationID uint) ([]models.MonthlyPayment, error)
	GetPayment(ctx context.Context, id uint) (*models.MonthlyPayment, error)
	CreatePayment(ctx context.Context, payment *models.MonthlyPayment) error
	// UpdatePayment сохраняет платеж только если его текущий статус равен expected
	UpdatePayment(ctx context.Context, payment *models.MonthlyPayment, expected models.PaymentStatus) error
	DeletePaymentsByReservations(ctx context.Context, reservationIDs []uint) (int64, error)

	// Transaction выполняет fn атомарно; ошибка fn откатывает все изменения
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

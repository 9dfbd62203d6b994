package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus представляет статус заявки на бронирование
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pendiente"
	ReservationAccepted  ReservationStatus = "aceptada"
	ReservationRejected  ReservationStatus = "rechazada"
	ReservationCancelled ReservationStatus = "cancelada"
)

// ReservationStatuses перечисляет все статусы заявки
var ReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationAccepted,
	ReservationRejected,
	ReservationCancelled,
}

// IsTerminal сообщает, что заявка больше не может менять статус
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationRejected || s == ReservationCancelled
}

// TerminalStatuses возвращает статусы, заявки в которых можно удалять
func TerminalStatuses() []ReservationStatus {
	var terminal []ReservationStatus
	for _, s := range ReservationStatuses {
		if s.IsTerminal() {
			terminal = append(terminal, s)
		}
	}
	return terminal
}

// Reservation представляет заявку арендатора на объект
type Reservation struct {
	ID              uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	RequesterID     uint              `gorm:"column:requester_id;not null;index" json:"requester_id"`
	PropertyID      uint              `gorm:"column:property_id;not null;index" json:"property_id"`
	ArrivalDate     time.Time         `gorm:"column:fecha_llegada;type:date;not null" json:"arrival_date"`
	DepartureDate   time.Time         `gorm:"column:fecha_salida;type:date;not null" json:"departure_date"` // только для отображения
	DurationMonths  int               `gorm:"column:duracion_meses;not null" json:"duration_months"`
	MonthlyRate     decimal.Decimal   `gorm:"column:monthly_rate;type:decimal(12,2);not null" json:"monthly_rate"`
	TotalCost       decimal.Decimal   `gorm:"column:total_cost;type:decimal(12,2);not null" json:"total_cost"`
	Status          ReservationStatus `gorm:"column:status;type:varchar(20);not null;default:'pendiente';index" json:"status"`
	PaymentComplete bool              `gorm:"column:pago_completo;not null;default:false" json:"payment_complete"`
	CreatedAt       time.Time         `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Reservation) TableName() string {
	return "reservations"
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus представляет статус ежемесячного платежа
type PaymentStatus string

const (
	PaymentAwaitingRecord PaymentStatus = "pendiente_registro" // записи нет, в базе не хранится
	PaymentPending        PaymentStatus = "pendiente"          // отправлен, ждет проверки владельцем
	PaymentVerified       PaymentStatus = "verificado"
	PaymentRejected       PaymentStatus = "rechazado"
)

// Способы оплаты
const (
	MethodTransfer = "transferencia"
	MethodDeposit  = "deposito"
	MethodCash     = "efectivo"
)

// MonthlyPayment представляет платеж за один месяц бронирования
type MonthlyPayment struct {
	ID              uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ReservationID   uint            `gorm:"column:reservation_id;not null;uniqueIndex:idx_payment_reservation_month" json:"reservation_id"`
	Month           int             `gorm:"column:mes;not null;uniqueIndex:idx_payment_reservation_month" json:"month"`
	Method          string          `gorm:"column:metodo_pago;size:30;not null" json:"method"`
	AmountPaid      decimal.Decimal `gorm:"column:monto_pagado;type:decimal(12,2);not null" json:"amount_paid"`
	ProofURL        string          `gorm:"column:comprobante_url;size:500" json:"proof_url"`
	Status          PaymentStatus   `gorm:"column:estado_pago;type:varchar(20);not null;default:'pendiente'" json:"status"`
	VerifiedBy      *uint           `gorm:"column:verificado_por" json:"verified_by,omitempty"`
	VerifiedAt      *time.Time      `gorm:"column:fecha_verificacion" json:"verified_at,omitempty"`
	RejectionReason *string         `gorm:"column:motivo_rechazo;size:500" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName возвращает имя таблицы для модели MonthlyPayment
func (MonthlyPayment) TableName() string {
	return "monthly_payments"
}

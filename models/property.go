package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PropertyState представляет доступность объекта
type PropertyState string

const (
	PropertyAvailable PropertyState = "available"
	PropertyReserved  PropertyState = "reserved"
)

// Property представляет объект недвижимости, сдаваемый помесячно
type Property struct {
	ID          uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID     uint            `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Title       string          `gorm:"column:title;not null;size:150" json:"title"`
	Address     string          `gorm:"column:address;size:255" json:"address"`
	City        string          `gorm:"column:city;size:100;index" json:"city"`
	Bedrooms    int             `gorm:"column:bedrooms;not null;default:1" json:"bedrooms"`
	MonthlyRate decimal.Decimal `gorm:"column:monthly_rate;type:decimal(12,2);not null" json:"monthly_rate"`
	State       PropertyState   `gorm:"column:estado;type:varchar(20);not null;default:'available'" json:"estado"`
	CreatedAt   time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Property) TableName() string {
	return "properties"
}

// StateFor возвращает доступность объекта после перехода бронирования в статус status.
// Второй результат false, если статус не влияет на объект.
func StateFor(status ReservationStatus) (PropertyState, bool) {
	switch status {
	case ReservationAccepted:
		return PropertyReserved, true
	case ReservationRejected:
		return PropertyAvailable, true
	}
	return "", false
}

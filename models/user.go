package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// User представляет арендатора или владельца недвижимости
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;not null;size:100" json:"name"`
	Email     string    `gorm:"column:email;unique;not null;size:100;index" json:"email"`
	Phone     string    `gorm:"column:phone;size:30" json:"phone,omitempty"`
	Password  string    `gorm:"column:password;not null;size:100" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate хук для валидации перед созданием
func (u *User) BeforeCreate(tx *gorm.DB) error {
	return u.Validate()
}

// Validate проверяет обязательные поля пользователя
func (u *User) Validate() error {
	name := strings.TrimSpace(u.Name)
	if len(name) < 2 || len(name) > 100 {
		return errors.New("name must be between 2 and 100 characters")
	}
	if len(u.Email) < 3 || len(u.Email) > 100 {
		return errors.New("email must be between 3 and 100 characters")
	}
	return nil
}

package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"rentahome/models"
)

var (
	ErrValidation              = errors.New("ошибка валидации")
	ErrInvalidDuration         = errors.New("срок аренды должен быть от 1 до 120 месяцев")
	ErrInvalidArrivalDate      = errors.New("неверная дата заезда, ожидается формат ГГГГ-ММ-ДД")
	ErrDuplicatePendingRequest = errors.New("у вас уже есть заявка в ожидании на этот объект")
	ErrInvalidStatus           = errors.New("недопустимый статус заявки")
	ErrInvalidTransition       = errors.New("переход статуса недопустим")
	ErrForbidden               = errors.New("нет доступа")
	ErrReservationNotAccepted  = errors.New("заявка еще не принята владельцем")
	ErrAllSlotsSettled         = errors.New("все месяцы уже оплачены или ожидают проверки")
	ErrPaymentWindowNotOpen    = errors.New("регистрация платежа за этот месяц еще не открыта")
	ErrPaymentConflict         = errors.New("платеж за этот месяц уже зарегистрирован")
	ErrInvalidAmount           = errors.New("сумма должна быть больше 0")
	ErrRejectionReasonRequired = errors.New("укажите причину отклонения платежа")
	ErrEmailTaken              = errors.New("пользователь с таким email уже существует")
	ErrInvalidCredentials      = errors.New("неверный email или пароль")
	ErrRemoteStore             = errors.New("ошибка хранилища")
)

// PartialMutationError описывает вторую запись многошаговой операции, которая не удалась
// после успешной первой. Такие ошибки логируются и не возвращаются вызывающему.
type PartialMutationError struct {
	Op            string
	ReservationID uint
	Err           error
}

func (e *PartialMutationError) Error() string {
	return fmt.Sprintf("частичное изменение (%s) для заявки %d: %v", e.Op, e.ReservationID, e.Err)
}

func (e *PartialMutationError) Unwrap() error {
	return e.Err
}

// storeError оборачивает ошибку хранилища. Ошибки-сигналы хранилища сохраняются как есть,
// остальные получают ErrRemoteStore.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrStaleState) || errors.Is(err, models.ErrDuplicate) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrRemoteStore, op, err)
}

// validationError собирает ошибки валидатора в одно сообщение
func validationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var errorMessages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
		case "gt", "gte", "min":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не меньше "+e.Param())
		case "max":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не больше "+e.Param())
		case "oneof":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть одним из: "+e.Param())
		case "email":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть email")
		case "url":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть ссылкой")
		default:
			errorMessages = append(errorMessages, "поле "+e.Field()+" некорректно")
		}
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errorMessages, "; "))
}

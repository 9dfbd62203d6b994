package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"rentahome/models"
	"rentahome/realtime"
	"rentahome/storage"
	"rentahome/utils"
)

// SubmitPaymentDTO представляет данные платежа, который регистрирует арендатор
type SubmitPaymentDTO struct {
	RequesterID   uint            `json:"-" validate:"required"`
	ReservationID uint            `json:"-" validate:"required"`
	Method        string          `json:"method" validate:"required,oneof=transferencia deposito efectivo"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	ProofURL      string          `json:"proof_url" validate:"omitempty,url"`
}

// PaymentService распределяет платежи по месяцам бронирования и проводит их проверку
type PaymentService struct {
	store      Store
	uploader   storage.ProofUploader
	validator  *validator.Validate
	notify     notifier
	windowDays int
	now        func() time.Time
}

// NewPaymentService создает новый экземпляр PaymentService.
// windowDays задает, за сколько дней до срока открывается регистрация платежа.
func NewPaymentService(store Store, uploader storage.ProofUploader, mailer Mailer, events realtime.Publisher, windowDays int) *PaymentService {
	return &PaymentService{
		store:      store,
		uploader:   uploader,
		validator:  validator.New(),
		notify:     notifier{store: store, mailer: mailer, events: events},
		windowDays: windowDays,
		now:        time.Now,
	}
}

// WithClock подменяет источник текущего времени
func (s *PaymentService) WithClock(now func() time.Time) *PaymentService {
	s.now = now
	return s
}

// SubmitPayment регистрирует платеж за наименьший неоплаченный месяц.
// Отклоненный платеж обновляется на месте, новая запись не создается.
func (s *PaymentService) SubmitPayment(ctx context.Context, dto SubmitPaymentDTO) (payment *models.MonthlyPayment, err error) {
	defer func(start time.Time) { utils.LogOperation("SubmitPayment", start, err) }(time.Now())

	if err := s.validator.Struct(dto); err != nil {
		return nil, validationError(err)
	}
	if !dto.AmountPaid.IsPositive() {
		return nil, ErrInvalidAmount
	}

	reservation, err := s.store.GetReservation(ctx, dto.ReservationID)
	if err != nil {
		return nil, storeError("поиск заявки", err)
	}
	if reservation.RequesterID != dto.RequesterID {
		return nil, ErrForbidden
	}
	if reservation.Status != models.ReservationAccepted {
		return nil, ErrReservationNotAccepted
	}

	payments, err := s.store.ListPayments(ctx, reservation.ID)
	if err != nil {
		return nil, storeError("список платежей", err)
	}

	month, existing, err := NextPayableMonth(reservation.DurationMonths, payments)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if existing == nil {
		due := DueDate(*reservation, month)
		if !PaymentWindowOpen(due, now, s.windowDays) {
			return nil, fmt.Errorf("%w: месяц %d, срок оплаты %s", ErrPaymentWindowNotOpen, month, due.Format(DateLayout))
		}

		payment = &models.MonthlyPayment{
			ReservationID: reservation.ID,
			Month:         month,
			Method:        dto.Method,
			AmountPaid:    dto.AmountPaid,
			ProofURL:      dto.ProofURL,
			Status:        models.PaymentPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.store.CreatePayment(ctx, payment); err != nil {
			if errors.Is(err, models.ErrDuplicate) {
				return nil, fmt.Errorf("%w: месяц %d", ErrPaymentConflict, month)
			}
			return nil, storeError("создание платежа", err)
		}
	} else {
		resubmitted := *existing
		resubmitted.Method = dto.Method
		resubmitted.AmountPaid = dto.AmountPaid
		resubmitted.ProofURL = dto.ProofURL
		resubmitted.Status = models.PaymentPending
		resubmitted.VerifiedBy = nil
		resubmitted.VerifiedAt = nil
		resubmitted.RejectionReason = nil
		resubmitted.UpdatedAt = now

		if err := s.store.UpdatePayment(ctx, &resubmitted, models.PaymentRejected); err != nil {
			if errors.Is(err, models.ErrStaleState) {
				return nil, fmt.Errorf("%w: месяц %d", ErrPaymentConflict, month)
			}
			return nil, storeError("повторная отправка платежа", err)
		}
		payment = &resubmitted
	}

	utils.LogInfo("Зарегистрирован платеж за месяц %d по заявке %d", payment.Month, reservation.ID)

	s.notify.publish(ctx, realtime.PaymentTopic(reservation.ID), realtime.EventPaymentSubmitted, payment)
	if property, err := s.store.GetProperty(ctx, reservation.PropertyID); err != nil {
		utils.LogError("Ошибка при получении объекта %d для уведомления: %v", reservation.PropertyID, err)
	} else {
		s.notify.publish(ctx, realtime.OwnerTopic(property.OwnerID), realtime.EventPaymentSubmitted, payment)
		subject, body := paymentSubmittedEmail(payment)
		s.notify.email(ctx, property.OwnerID, subject, body)
	}

	return payment, nil
}

// UploadProof сохраняет изображение чека и возвращает ссылку на него
func (s *PaymentService) UploadProof(ctx context.Context, requesterID, reservationID uint, file io.Reader) (url string, err error) {
	defer func(start time.Time) { utils.LogOperation("UploadProof", start, err) }(time.Now())

	reservation, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return "", storeError("поиск заявки", err)
	}
	if reservation.RequesterID != requesterID {
		return "", ErrForbidden
	}

	url, err = s.uploader.UploadProof(ctx, file, reservationID)
	if err != nil {
		return "", fmt.Errorf("%w: загрузка чека: %w", ErrRemoteStore, err)
	}
	return url, nil
}

// VerifyPayment подтверждает или отклоняет платеж. Решение принимает владелец объекта.
// Флаг полной оплаты заявки не меняется.
func (s *PaymentService) VerifyPayment(ctx context.Context, ownerID, paymentID uint, approved bool, reason string) (payment *models.MonthlyPayment, err error) {
	defer func(start time.Time) { utils.LogOperation("VerifyPayment", start, err) }(time.Now())

	payment, err = s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, storeError("поиск платежа", err)
	}
	reservation, err := s.store.GetReservation(ctx, payment.ReservationID)
	if err != nil {
		return nil, storeError("поиск заявки", err)
	}
	property, err := s.store.GetProperty(ctx, reservation.PropertyID)
	if err != nil {
		return nil, storeError("поиск объекта", err)
	}
	if property.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	if payment.Status != models.PaymentPending {
		return nil, fmt.Errorf("%w: платеж в статусе %s", ErrInvalidTransition, payment.Status)
	}

	reason = strings.TrimSpace(reason)
	if !approved && reason == "" {
		return nil, ErrRejectionReasonRequired
	}

	now := s.now()
	decided := *payment
	verifier := ownerID
	decided.VerifiedBy = &verifier
	decided.UpdatedAt = now
	if approved {
		decided.Status = models.PaymentVerified
		decided.VerifiedAt = &now
		decided.RejectionReason = nil
	} else {
		decided.Status = models.PaymentRejected
		decided.VerifiedAt = nil
		decided.RejectionReason = &reason
	}

	if err := s.store.UpdatePayment(ctx, &decided, models.PaymentPending); err != nil {
		if errors.Is(err, models.ErrStaleState) {
			return nil, fmt.Errorf("%w: платеж %d уже проверен", ErrInvalidTransition, paymentID)
		}
		return nil, storeError("проверка платежа", err)
	}
	utils.GetMetrics().RecordVerification(approved)

	eventType := realtime.EventPaymentRejected
	if approved {
		eventType = realtime.EventPaymentVerified
	}
	s.notify.publish(ctx, realtime.PaymentTopic(reservation.ID), eventType, &decided)
	s.notify.publish(ctx, realtime.RequesterTopic(reservation.RequesterID), eventType, &decided)
	subject, body := paymentDecidedEmail(&decided)
	s.notify.email(ctx, reservation.RequesterID, subject, body)

	return &decided, nil
}

// Schedule возвращает график платежей заявки арендатору или владельцу объекта
func (s *PaymentService) Schedule(ctx context.Context, actorID, reservationID uint) ([]ScheduleEntry, error) {
	reservation, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, storeError("поиск заявки", err)
	}
	if reservation.RequesterID != actorID {
		property, err := s.store.GetProperty(ctx, reservation.PropertyID)
		if err != nil {
			return nil, storeError("поиск объекта", err)
		}
		if property.OwnerID != actorID {
			return nil, ErrForbidden
		}
	}

	payments, err := s.store.ListPayments(ctx, reservation.ID)
	if err != nil {
		return nil, storeError("список платежей", err)
	}

	return BuildMonthlySchedule(*reservation, payments, s.now()), nil
}

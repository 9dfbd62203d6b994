package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"rentahome/models"
	"rentahome/realtime"
	"rentahome/utils"
)

// CreateReservationDTO представляет данные для создания заявки на бронирование
type CreateReservationDTO struct {
	RequesterID    uint   `json:"-" validate:"required"`
	PropertyID     uint   `json:"property_id" validate:"required"`
	ArrivalDate    string `json:"arrival_date" validate:"required"`
	DurationMonths int    `json:"duration_months"`
}

// MaxDurationMonths ограничивает срок аренды: график платежей строится на каждый месяц
const MaxDurationMonths = 120

// ReservationService управляет жизненным циклом заявок на бронирование
type ReservationService struct {
	store     Store
	validator *validator.Validate
	notify    notifier
	now       func() time.Time
}

// NewReservationService создает новый экземпляр ReservationService
func NewReservationService(store Store, mailer Mailer, events realtime.Publisher) *ReservationService {
	return &ReservationService{
		store:     store,
		validator: validator.New(),
		notify:    notifier{store: store, mailer: mailer, events: events},
		now:       time.Now,
	}
}

// WithClock подменяет источник текущего времени
func (s *ReservationService) WithClock(now func() time.Time) *ReservationService {
	s.now = now
	return s
}

// CreateReservation создает заявку в статусе «pendiente»
func (s *ReservationService) CreateReservation(ctx context.Context, dto CreateReservationDTO) (reservation *models.Reservation, err error) {
	defer func(start time.Time) { utils.LogOperation("CreateReservation", start, err) }(time.Now())

	// Срок проверяем до любых обращений к хранилищу
	if dto.DurationMonths < 1 || dto.DurationMonths > MaxDurationMonths {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDuration, dto.DurationMonths)
	}
	if err := s.validator.Struct(dto); err != nil {
		return nil, validationError(err)
	}

	arrival, err := ParseDate(dto.ArrivalDate)
	if err != nil {
		return nil, ErrInvalidArrivalDate
	}

	property, err := s.store.GetProperty(ctx, dto.PropertyID)
	if err != nil {
		return nil, storeError("поиск объекта", err)
	}

	pending, err := s.store.FindReservations(ctx, ReservationFilter{
		RequesterID: dto.RequesterID,
		PropertyID:  dto.PropertyID,
		Statuses:    []models.ReservationStatus{models.ReservationPending},
	})
	if err != nil {
		return nil, storeError("проверка заявок в ожидании", err)
	}
	if len(pending) > 0 {
		return nil, ErrDuplicatePendingRequest
	}

	now := s.now()
	reservation = &models.Reservation{
		RequesterID:     dto.RequesterID,
		PropertyID:      property.ID,
		ArrivalDate:     arrival,
		DepartureDate:   arrival.AddDate(0, dto.DurationMonths, 0),
		DurationMonths:  dto.DurationMonths,
		MonthlyRate:     property.MonthlyRate,
		TotalCost:       property.MonthlyRate.Mul(decimal.NewFromInt(int64(dto.DurationMonths))),
		Status:          models.ReservationPending,
		PaymentComplete: false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.CreateReservation(ctx, reservation); err != nil {
		// уникальный индекс на заявки в ожидании сработал при параллельной вставке
		if errors.Is(err, models.ErrDuplicate) {
			return nil, ErrDuplicatePendingRequest
		}
		return nil, storeError("создание заявки", err)
	}

	utils.LogInfo("Создана заявка %d на объект %d пользователем %d", reservation.ID, property.ID, dto.RequesterID)

	s.notify.publish(ctx, realtime.OwnerTopic(property.OwnerID), realtime.EventReservationCreated, reservation)
	subject, body := reservationRequestedEmail(reservation, property)
	s.notify.email(ctx, property.OwnerID, subject, body)

	return reservation, nil
}

// UpdateReservationStatus принимает или отклоняет заявку. Решение принимает владелец объекта.
func (s *ReservationService) UpdateReservationStatus(ctx context.Context, ownerID, reservationID uint, status models.ReservationStatus) (reservation *models.Reservation, err error) {
	defer func(start time.Time) { utils.LogOperation("UpdateReservationStatus", start, err) }(time.Now())

	if status != models.ReservationAccepted && status != models.ReservationRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	reservation, err = s.store.GetReservation(ctx, reservationID)
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
	if reservation.Status != models.ReservationPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, reservation.Status, status)
	}

	now := s.now()
	if err := s.store.TransitionReservation(ctx, reservationID, models.ReservationPending, status, now); err != nil {
		if errors.Is(err, models.ErrStaleState) {
			return nil, fmt.Errorf("%w: заявка %d уже не в ожидании", ErrInvalidTransition, reservationID)
		}
		return nil, storeError("обновление статуса заявки", err)
	}
	reservation.Status = status
	reservation.UpdatedAt = now

	if state, ok := models.StateFor(status); ok {
		if err := s.store.SetPropertyState(ctx, property.ID, state); err != nil {
			perr := &PartialMutationError{Op: "обновление доступности объекта", ReservationID: reservationID, Err: err}
			utils.LogError("%v", perr)
			utils.GetMetrics().RecordPartialMutation(perr)
		} else {
			property.State = state
		}
	}

	s.notify.publish(ctx, realtime.RequesterTopic(reservation.RequesterID), realtime.EventReservationUpdated, reservation)
	s.notify.publish(ctx, realtime.OwnerTopic(property.OwnerID), realtime.EventReservationUpdated, reservation)
	subject, body := reservationDecidedEmail(reservation, property)
	s.notify.email(ctx, reservation.RequesterID, subject, body)

	return reservation, nil
}

// CancelReservation отменяет заявку в ожидании по запросу арендатора
func (s *ReservationService) CancelReservation(ctx context.Context, requesterID, reservationID uint) (reservation *models.Reservation, err error) {
	defer func(start time.Time) { utils.LogOperation("CancelReservation", start, err) }(time.Now())

	reservation, err = s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, storeError("поиск заявки", err)
	}
	if reservation.RequesterID != requesterID {
		return nil, ErrForbidden
	}
	if reservation.Status != models.ReservationPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, reservation.Status, models.ReservationCancelled)
	}

	now := s.now()
	if err := s.store.TransitionReservation(ctx, reservationID, models.ReservationPending, models.ReservationCancelled, now); err != nil {
		if errors.Is(err, models.ErrStaleState) {
			return nil, fmt.Errorf("%w: заявка %d уже не в ожидании", ErrInvalidTransition, reservationID)
		}
		return nil, storeError("отмена заявки", err)
	}
	reservation.Status = models.ReservationCancelled
	reservation.UpdatedAt = now

	s.notify.publish(ctx, realtime.RequesterTopic(requesterID), realtime.EventReservationUpdated, reservation)
	if property, err := s.store.GetProperty(ctx, reservation.PropertyID); err != nil {
		utils.LogError("Ошибка при получении объекта %d для уведомления: %v", reservation.PropertyID, err)
	} else {
		s.notify.publish(ctx, realtime.OwnerTopic(property.OwnerID), realtime.EventReservationUpdated, reservation)
	}

	return reservation, nil
}

// ClearTerminalReservations удаляет отмененные и отклоненные заявки вместе с их платежами.
// isOwner выбирает область: заявки на объекты владельца или заявки самого арендатора.
func (s *ReservationService) ClearTerminalReservations(ctx context.Context, actorID uint, isOwner bool) (deleted int64, err error) {
	defer func(start time.Time) { utils.LogOperation("ClearTerminalReservations", start, err) }(time.Now())

	filter := ReservationFilter{Statuses: models.TerminalStatuses()}
	topic := realtime.RequesterTopic(actorID)
	if isOwner {
		filter.OwnerID = actorID
		topic = realtime.OwnerTopic(actorID)
	} else {
		filter.RequesterID = actorID
	}

	terminal, err := s.store.FindReservations(ctx, filter)
	if err != nil {
		return 0, storeError("поиск завершенных заявок", err)
	}
	if len(terminal) == 0 {
		return 0, nil
	}

	ids := make([]uint, 0, len(terminal))
	for _, r := range terminal {
		ids = append(ids, r.ID)
	}

	// Сначала платежи, затем заявки
	err = s.store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.DeletePaymentsByReservations(ctx, ids); err != nil {
			return fmt.Errorf("удаление платежей: %w", err)
		}
		n, err := tx.DeleteReservations(ctx, ids)
		if err != nil {
			return fmt.Errorf("удаление заявок: %w", err)
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, storeError("очистка заявок", err)
	}

	utils.LogInfo("Удалено %d завершенных заявок пользователя %d", deleted, actorID)
	s.notify.publish(ctx, topic, realtime.EventReservationsCleared, ids)

	return deleted, nil
}

// Get возвращает заявку арендатору или владельцу объекта
func (s *ReservationService) Get(ctx context.Context, actorID, reservationID uint) (*models.Reservation, error) {
	reservation, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, storeError("поиск заявки", err)
	}
	if reservation.RequesterID == actorID {
		return reservation, nil
	}
	property, err := s.store.GetProperty(ctx, reservation.PropertyID)
	if err != nil {
		return nil, storeError("поиск объекта", err)
	}
	if property.OwnerID != actorID {
		return nil, ErrForbidden
	}
	return reservation, nil
}

// ListMine возвращает заявки арендатора, новые первыми
func (s *ReservationService) ListMine(ctx context.Context, requesterID uint) ([]models.Reservation, error) {
	reservations, err := s.store.FindReservations(ctx, ReservationFilter{RequesterID: requesterID})
	if err != nil {
		return nil, storeError("список заявок", err)
	}
	return reservations, nil
}

// ListForOwner возвращает заявки на объекты владельца, при необходимости только с указанным статусом
func (s *ReservationService) ListForOwner(ctx context.Context, ownerID uint, status models.ReservationStatus) ([]models.Reservation, error) {
	filter := ReservationFilter{OwnerID: ownerID}
	if status != "" {
		filter.Statuses = []models.ReservationStatus{status}
	}
	reservations, err := s.store.FindReservations(ctx, filter)
	if err != nil {
		return nil, storeError("список заявок владельца", err)
	}
	return reservations, nil
}

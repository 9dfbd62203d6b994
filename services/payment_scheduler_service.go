package services

import (
	"context"
	"sync"
	"time"

	"rentahome/models"
	"rentahome/realtime"
	"rentahome/utils"
)

// ReminderRepeat задает, через сколько повторяется напоминание об одном и том же месяце
const ReminderRepeat = 7 * 24 * time.Hour

type reminderKey struct {
	reservationID uint
	month         int
}

// PaymentSchedulerService периодически напоминает арендаторам о просроченных месяцах
type PaymentSchedulerService struct {
	store    Store
	notify   notifier
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	reminded map[reminderKey]time.Time // последнее напоминание по месяцу, живет в памяти процесса
}

// NewPaymentSchedulerService создает новый экземпляр PaymentSchedulerService
func NewPaymentSchedulerService(store Store, mailer Mailer, events realtime.Publisher, interval time.Duration) *PaymentSchedulerService {
	return &PaymentSchedulerService{
		store:    store,
		notify:   notifier{store: store, mailer: mailer, events: events},
		interval: interval,
		now:      time.Now,
		reminded: make(map[reminderKey]time.Time),
	}
}

// WithClock подменяет источник текущего времени
func (s *PaymentSchedulerService) WithClock(now func() time.Time) *PaymentSchedulerService {
	s.now = now
	return s
}

// Start запускает планировщик напоминаний до отмены ctx
func (s *PaymentSchedulerService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sent, err := s.ProcessOverduePayments(ctx)
				if err != nil {
					utils.LogError("Ошибка при обработке просроченных платежей: %v", err)
					continue
				}
				if sent > 0 {
					utils.LogInfo("Отправлено напоминаний о просрочке: %d", sent)
				}
			}
		}
	}()
}

// ProcessOverduePayments рассылает напоминания о просроченных месяцах без зарегистрированного платежа.
// Платежи, ожидающие проверки, ждут владельца, по ним арендатору не пишем.
func (s *PaymentSchedulerService) ProcessOverduePayments(ctx context.Context) (sent int, err error) {
	defer func(start time.Time) { utils.LogOperation("ProcessOverduePayments", start, err) }(time.Now())

	reservations, err := s.store.FindReservations(ctx, ReservationFilter{
		Statuses: []models.ReservationStatus{models.ReservationAccepted},
	})
	if err != nil {
		return 0, storeError("поиск принятых заявок", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Месяцы, которые перестали быть просроченными, забываем
	reminded := make(map[reminderKey]time.Time, len(s.reminded))
	defer func() { s.reminded = reminded }()

	now := s.now()
	for i := range reservations {
		reservation := &reservations[i]
		payments, err := s.store.ListPayments(ctx, reservation.ID)
		if err != nil {
			utils.LogError("Ошибка при получении платежей заявки %d: %v", reservation.ID, err)
			for key, last := range s.reminded {
				if key.reservationID == reservation.ID {
					reminded[key] = last
				}
			}
			continue
		}

		for _, entry := range BuildMonthlySchedule(*reservation, payments, now) {
			if !entry.IsOverdue || entry.Status != models.PaymentAwaitingRecord {
				continue
			}
			key := reminderKey{reservationID: reservation.ID, month: entry.Month}
			if last, ok := s.reminded[key]; ok && now.Sub(last) < ReminderRepeat {
				reminded[key] = last
				continue
			}
			reminded[key] = now
			s.notify.publish(ctx, realtime.RequesterTopic(reservation.RequesterID), realtime.EventPaymentOverdue, entry)
			subject, body := paymentOverdueEmail(reservation, entry)
			s.notify.email(ctx, reservation.RequesterID, subject, body)
			sent++
		}
	}

	return sent, nil
}

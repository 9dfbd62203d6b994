package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"rentahome/models"
	"rentahome/services"
)

// errForeignKey повторяет ограничение внешнего ключа monthly_payments.reservation_id
var errForeignKey = errors.New("нарушение внешнего ключа")

// MemoryStore хранит данные в памяти процесса. Используется при DB_DRIVER=memory и в тестах.
// Транзакция держит блокировку до конца и работает через представление без собственной блокировки.
type MemoryStore struct {
	mu   *sync.Mutex
	data *memoryData
	inTx bool
}

var _ services.Store = (*MemoryStore)(nil)

type memoryData struct {
	nextID       uint
	users        map[uint]models.User
	properties   map[uint]models.Property
	reservations map[uint]models.Reservation
	payments     map[uint]models.MonthlyPayment
}

// NewMemoryStore создает пустое хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:   &sync.Mutex{},
		data: &memoryData{
			users:        make(map[uint]models.User),
			properties:   make(map[uint]models.Property),
			reservations: make(map[uint]models.Reservation),
			payments:     make(map[uint]models.MonthlyPayment),
		},
	}
}

func (d memoryData) clone() memoryData {
	c := memoryData{
		nextID:       d.nextID,
		users:        make(map[uint]models.User, len(d.users)),
		properties:   make(map[uint]models.Property, len(d.properties)),
		reservations: make(map[uint]models.Reservation, len(d.reservations)),
		payments:     make(map[uint]models.MonthlyPayment, len(d.payments)),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.properties {
		c.properties[k] = v
	}
	for k, v := range d.reservations {
		c.reservations[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	return c
}

// lock захватывает блокировку хранилища; внутри транзакции она уже захвачена
func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) newID() uint {
	m.data.nextID++
	return m.data.nextID
}

func touch(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

// Методы для работы с пользователями
func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	defer m.lock()()

	for _, u := range m.data.users {
		if sameEmail(u.Email, user.Email) {
			return fmt.Errorf("%w: email %s", models.ErrDuplicate, user.Email)
		}
	}
	user.ID = m.newID()
	touch(&user.CreatedAt, &user.UpdatedAt)
	m.data.users[user.ID] = *user
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	defer m.lock()()

	user, ok := m.data.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &user, nil
}

func (m *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer m.lock()()

	for _, user := range m.data.users {
		if sameEmail(user.Email, email) {
			return &user, nil
		}
	}
	return nil, models.ErrNotFound
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Методы для работы с объектами
func (m *MemoryStore) CreateProperty(ctx context.Context, property *models.Property) error {
	defer m.lock()()

	property.ID = m.newID()
	if property.State == "" {
		property.State = models.PropertyAvailable
	}
	touch(&property.CreatedAt, &property.UpdatedAt)
	m.data.properties[property.ID] = *property
	return nil
}

func (m *MemoryStore) GetProperty(ctx context.Context, id uint) (*models.Property, error) {
	defer m.lock()()

	property, ok := m.data.properties[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &property, nil
}

func (m *MemoryStore) FindProperties(ctx context.Context, filter services.PropertyFilter) ([]models.Property, error) {
	defer m.lock()()

	properties := make([]models.Property, 0)
	for _, p := range m.data.properties {
		if filter.OwnerID != 0 && p.OwnerID != filter.OwnerID {
			continue
		}
		if filter.City != "" && !strings.EqualFold(p.City, filter.City) {
			continue
		}
		if !filter.MinRate.IsZero() && p.MonthlyRate.LessThan(filter.MinRate) {
			continue
		}
		if !filter.MaxRate.IsZero() && p.MonthlyRate.GreaterThan(filter.MaxRate) {
			continue
		}
		if p.Bedrooms < filter.MinBedrooms {
			continue
		}
		if filter.State != "" && p.State != filter.State {
			continue
		}
		properties = append(properties, p)
	}

	sort.Slice(properties, func(i, j int) bool {
		a, b := properties[i], properties[j]
		switch filter.Sort {
		case "price_low":
			if !a.MonthlyRate.Equal(b.MonthlyRate) {
				return a.MonthlyRate.LessThan(b.MonthlyRate)
			}
		case "price_high":
			if !a.MonthlyRate.Equal(b.MonthlyRate) {
				return a.MonthlyRate.GreaterThan(b.MonthlyRate)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID > b.ID
	})
	return properties, nil
}

func (m *MemoryStore) SetPropertyState(ctx context.Context, id uint, state models.PropertyState) error {
	defer m.lock()()

	property, ok := m.data.properties[id]
	if !ok {
		return models.ErrNotFound
	}
	property.State = state
	property.UpdatedAt = time.Now()
	m.data.properties[id] = property
	return nil
}

// Методы для работы с заявками
func (m *MemoryStore) CreateReservation(ctx context.Context, reservation *models.Reservation) error {
	defer m.lock()()

	if _, ok := m.data.properties[reservation.PropertyID]; !ok {
		return fmt.Errorf("%w: объект %d", errForeignKey, reservation.PropertyID)
	}
	if reservation.Status == models.ReservationPending {
		for _, r := range m.data.reservations {
			if r.Status == models.ReservationPending &&
				r.RequesterID == reservation.RequesterID &&
				r.PropertyID == reservation.PropertyID {
				return fmt.Errorf("%w: заявка в ожидании %d", models.ErrDuplicate, r.ID)
			}
		}
	}
	reservation.ID = m.newID()
	touch(&reservation.CreatedAt, &reservation.UpdatedAt)
	m.data.reservations[reservation.ID] = *reservation
	return nil
}

func (m *MemoryStore) GetReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	defer m.lock()()

	reservation, ok := m.data.reservations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &reservation, nil
}

func (m *MemoryStore) FindReservations(ctx context.Context, filter services.ReservationFilter) ([]models.Reservation, error) {
	defer m.lock()()

	reservations := make([]models.Reservation, 0)
	for _, r := range m.data.reservations {
		if filter.RequesterID != 0 && r.RequesterID != filter.RequesterID {
			continue
		}
		if filter.PropertyID != 0 && r.PropertyID != filter.PropertyID {
			continue
		}
		if filter.OwnerID != 0 && m.data.properties[r.PropertyID].OwnerID != filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, r.Status) {
			continue
		}
		reservations = append(reservations, r)
	}

	sort.Slice(reservations, func(i, j int) bool {
		a, b := reservations[i], reservations[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return reservations, nil
}

func containsStatus(statuses []models.ReservationStatus, status models.ReservationStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (m *MemoryStore) TransitionReservation(ctx context.Context, id uint, from, to models.ReservationStatus, at time.Time) error {
	defer m.lock()()

	reservation, ok := m.data.reservations[id]
	if !ok {
		return models.ErrNotFound
	}
	if reservation.Status != from {
		return models.ErrStaleState
	}
	reservation.Status = to
	reservation.UpdatedAt = at
	m.data.reservations[id] = reservation
	return nil
}

func (m *MemoryStore) DeleteReservations(ctx context.Context, ids []uint) (int64, error) {
	defer m.lock()()

	targets := make(map[uint]bool, len(ids))
	for _, id := range ids {
		targets[id] = true
	}
	for _, p := range m.data.payments {
		if targets[p.ReservationID] {
			return 0, fmt.Errorf("%w: платеж %d ссылается на заявку %d", errForeignKey, p.ID, p.ReservationID)
		}
	}

	var deleted int64
	for id := range targets {
		if _, ok := m.data.reservations[id]; ok {
			delete(m.data.reservations, id)
			deleted++
		}
	}
	return deleted, nil
}

// Методы для работы с платежами
func (m *MemoryStore) ListPayments(ctx context.Context, reservationID uint) ([]models.MonthlyPayment, error) {
	defer m.lock()()

	payments := make([]models.MonthlyPayment, 0)
	for _, p := range m.data.payments {
		if p.ReservationID == reservationID {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		if payments[i].Month != payments[j].Month {
			return payments[i].Month < payments[j].Month
		}
		return payments[i].ID < payments[j].ID
	})
	return payments, nil
}

func (m *MemoryStore) GetPayment(ctx context.Context, id uint) (*models.MonthlyPayment, error) {
	defer m.lock()()

	payment, ok := m.data.payments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &payment, nil
}

func (m *MemoryStore) CreatePayment(ctx context.Context, payment *models.MonthlyPayment) error {
	defer m.lock()()

	if _, ok := m.data.reservations[payment.ReservationID]; !ok {
		return fmt.Errorf("%w: заявка %d", errForeignKey, payment.ReservationID)
	}
	for _, p := range m.data.payments {
		if p.ReservationID == payment.ReservationID && p.Month == payment.Month {
			return fmt.Errorf("%w: платеж за месяц %d", models.ErrDuplicate, payment.Month)
		}
	}
	payment.ID = m.newID()
	touch(&payment.CreatedAt, &payment.UpdatedAt)
	m.data.payments[payment.ID] = *payment
	return nil
}

func (m *MemoryStore) UpdatePayment(ctx context.Context, payment *models.MonthlyPayment, expected models.PaymentStatus) error {
	defer m.lock()()

	current, ok := m.data.payments[payment.ID]
	if !ok {
		return models.ErrNotFound
	}
	if current.Status != expected {
		return models.ErrStaleState
	}
	// месяц и заявка платежа не меняются
	updated := *payment
	updated.ReservationID = current.ReservationID
	updated.Month = current.Month
	updated.CreatedAt = current.CreatedAt
	m.data.payments[payment.ID] = updated
	return nil
}

func (m *MemoryStore) DeletePaymentsByReservations(ctx context.Context, reservationIDs []uint) (int64, error) {
	defer m.lock()()

	targets := make(map[uint]bool, len(reservationIDs))
	for _, id := range reservationIDs {
		targets[id] = true
	}
	var deleted int64
	for id, p := range m.data.payments {
		if targets[p.ReservationID] {
			delete(m.data.payments, id)
			deleted++
		}
	}
	return deleted, nil
}

// Transaction выполняет fn под блокировкой хранилища и восстанавливает состояние, если fn вернула ошибку.
// Параллельные запросы ждут окончания транзакции.
func (m *MemoryStore) Transaction(ctx context.Context, fn func(tx services.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	tx := &MemoryStore{mu: m.mu, data: m.data, inTx: true}
	if err := fn(tx); err != nil {
		*m.data = snapshot
		return err
	}
	return nil
}

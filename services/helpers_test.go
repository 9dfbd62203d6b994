package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rentahome/database"
	"rentahome/models"
	"rentahome/realtime"
	"rentahome/services"
	"rentahome/storage"
)

type sentEmail struct {
	to      string
	subject string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (m *recordingMailer) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{to: to, subject: subject})
	return nil
}

func (m *recordingMailer) sentTo(to string) []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentEmail
	for _, e := range m.sent {
		if e.to == to {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store        *database.MemoryStore
	hub          *realtime.Hub
	mailer       *recordingMailer
	reservations *services.ReservationService
	payments     *services.PaymentService
	owner        *models.User
	tenant       *models.User
	property     *models.Property
	now          time.Time
}

func date(value string) time.Time {
	t, err := time.Parse(services.DateLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

// newFixture создает владельца, арендатора и объект за 450 в месяц
func newFixture(t *testing.T, now string) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:  database.NewMemoryStore(),
		hub:    realtime.NewHub(),
		mailer: &recordingMailer{},
		now:    date(now).Add(12 * time.Hour),
	}
	clock := func() time.Time { return f.now }

	f.owner = f.createUser(t, "Marta", "marta@example.com")
	f.tenant = f.createUser(t, "Lucas", "lucas@example.com")
	f.property = &models.Property{
		OwnerID:     f.owner.ID,
		Title:       "Depto centro",
		City:        "Quito",
		Bedrooms:    2,
		MonthlyRate: decimal.NewFromInt(450),
	}
	if err := f.store.CreateProperty(ctx, f.property); err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}

	f.reservations = services.NewReservationService(f.store, f.mailer, f.hub).WithClock(clock)
	f.payments = services.NewPaymentService(f.store, storage.DisabledUploader{}, f.mailer, f.hub, 2).WithClock(clock)
	return f
}

func (f *fixture) setNow(value string) {
	f.now = date(value).Add(12 * time.Hour)
}

func (f *fixture) createUser(t *testing.T, name, email string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: email, Password: "hash"}
	if err := f.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func (f *fixture) createReservation(t *testing.T, requesterID uint, arrival string, months int) *models.Reservation {
	t.Helper()
	r, err := f.reservations.CreateReservation(context.Background(), services.CreateReservationDTO{
		RequesterID:    requesterID,
		PropertyID:     f.property.ID,
		ArrivalDate:    arrival,
		DurationMonths: months,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	return r
}

func (f *fixture) acceptedReservation(t *testing.T, arrival string, months int) *models.Reservation {
	t.Helper()
	r := f.createReservation(t, f.tenant.ID, arrival, months)
	r, err := f.reservations.UpdateReservationStatus(context.Background(), f.owner.ID, r.ID, models.ReservationAccepted)
	if err != nil {
		t.Fatalf("UpdateReservationStatus: %v", err)
	}
	return r
}

func (f *fixture) submit(t *testing.T, reservationID uint) *models.MonthlyPayment {
	t.Helper()
	p, err := f.payments.SubmitPayment(context.Background(), services.SubmitPaymentDTO{
		RequesterID:   f.tenant.ID,
		ReservationID: reservationID,
		Method:        models.MethodTransfer,
		AmountPaid:    decimal.NewFromInt(450),
		ProofURL:      "https://res.cloudinary.com/demo/image/upload/proof.jpg",
	})
	if err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	return p
}

// collect подписывается на тему и возвращает функцию, отдающую полученные типы событий
func collect(hub *realtime.Hub, topic string) func() []string {
	var mu sync.Mutex
	var types []string
	hub.Subscribe(topic, func(ev realtime.Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, ev.Type)
	})
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), types...)
	}
}

// untouchableStore падает при любом обращении к хранилищу
type untouchableStore struct {
	services.Store
}

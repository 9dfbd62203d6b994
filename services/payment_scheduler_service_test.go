package services_test

import (
	"context"
	"testing"
	"time"

	"rentahome/realtime"
	"rentahome/services"
)

func TestProcessOverduePayments(t *testing.T) {
	f := newFixture(t, "2024-01-09")
	r := f.acceptedReservation(t, "2024-01-10", 3)
	f.submit(t, r.ID)

	scheduler := services.NewPaymentSchedulerService(f.store, f.mailer, f.hub, time.Hour).
		WithClock(func() time.Time { return date("2024-02-15") })
	overdue := collect(f.hub, realtime.RequesterTopic(f.tenant.ID))
	before := len(f.mailer.sentTo(f.tenant.Email))

	// месяц 1 ждет проверки владельцем, месяц 2 просрочен без платежа, месяц 3 еще не наступил
	sent, err := scheduler.ProcessOverduePayments(context.Background())
	if err != nil {
		t.Fatalf("ProcessOverduePayments: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if got := overdue(); len(got) != 1 || got[0] != realtime.EventPaymentOverdue {
		t.Errorf("events = %v", got)
	}
	if after := len(f.mailer.sentTo(f.tenant.Email)); after != before+1 {
		t.Errorf("tenant emails = %d, want %d", after, before+1)
	}
}

func TestPaymentSchedulerStart(t *testing.T) {
	f := newFixture(t, "2024-01-02")
	f.acceptedReservation(t, "2024-01-10", 2)

	events := make(chan realtime.Event, 16)
	f.hub.Subscribe(realtime.RequesterTopic(f.tenant.ID), func(ev realtime.Event) {
		if ev.Type != realtime.EventPaymentOverdue {
			return
		}
		select {
		case events <- ev:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	services.NewPaymentSchedulerService(f.store, nil, f.hub, 10*time.Millisecond).
		WithClock(func() time.Time { return date("2024-01-20") }).
		Start(ctx)

	select {
	case ev := <-events:
		entry, ok := ev.Payload.(services.ScheduleEntry)
		if !ok || entry.Month != 1 {
			t.Fatalf("payload = %#v, want overdue month 1", ev.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not send a reminder")
	}
}

func TestProcessOverduePaymentsRepeatsWeekly(t *testing.T) {
	f := newFixture(t, "2024-01-02")
	f.acceptedReservation(t, "2024-01-10", 3)

	now := date("2024-01-15")
	scheduler := services.NewPaymentSchedulerService(f.store, f.mailer, f.hub, time.Hour).
		WithClock(func() time.Time { return now })

	steps := []struct {
		day  string
		want int
	}{
		{"2024-01-15", 1}, // месяц 1 просрочен
		{"2024-01-16", 0}, // уже напомнили
		{"2024-01-21", 0},
		{"2024-01-22", 1}, // прошла неделя
		{"2024-02-11", 2}, // месяц 1 снова, месяц 2 впервые
	}
	for _, step := range steps {
		now = date(step.day)
		sent, err := scheduler.ProcessOverduePayments(context.Background())
		if err != nil {
			t.Fatalf("%s: ProcessOverduePayments: %v", step.day, err)
		}
		if sent != step.want {
			t.Errorf("%s: sent = %d, want %d", step.day, sent, step.want)
		}
	}
}

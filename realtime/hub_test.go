package realtime

import (
	"context"
	"testing"
	"time"
)

func TestHubPublishToTopic(t *testing.T) {
	hub := NewHub()

	var got []Event
	sub := hub.Subscribe(OwnerTopic(7), func(ev Event) {
		got = append(got, ev)
	})
	defer sub.Unsubscribe()

	var other int
	hub.Subscribe(OwnerTopic(8), func(Event) { other++ })

	if err := hub.Publish(context.Background(), Event{Type: EventReservationCreated, Topic: OwnerTopic(7)}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("received %d events, want 1", len(got))
	}
	if got[0].At.IsZero() {
		t.Error("event timestamp was not set")
	}
	if other != 0 {
		t.Errorf("subscriber of another topic received %d events", other)
	}
}

func TestSubscriptionUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	topic := PaymentTopic(3)

	calls := 0
	sub := hub.Subscribe(topic, func(Event) { calls++ })
	keep := hub.Subscribe(topic, func(Event) {})
	defer keep.Unsubscribe()

	sub.Unsubscribe()
	sub.Unsubscribe()

	if n := hub.SubscriberCount(topic); n != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", n)
	}

	hub.Publish(context.Background(), Event{Type: EventPaymentSubmitted, Topic: topic})
	if calls != 0 {
		t.Errorf("unsubscribed handler called %d times", calls)
	}

	keep.Unsubscribe()
	if n := hub.SubscriberCount(topic); n != 0 {
		t.Errorf("SubscriberCount() = %d after all unsubscribed, want 0", n)
	}
}

func TestHubPublishCancelledContext(t *testing.T) {
	hub := NewHub()
	hub.Subscribe(RequesterTopic(1), func(Event) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := hub.Publish(ctx, Event{Topic: RequesterTopic(1)}); err == nil {
		t.Error("expected context error")
	}
}

func TestEventEncoding(t *testing.T) {
	at := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	data, err := encodeEvent(Event{Type: EventPaymentVerified, Topic: PaymentTopic(5), At: at, Payload: map[string]interface{}{"month": 2}})
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}

	ev, err := decodeEvent(string(data))
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if ev.Type != EventPaymentVerified || ev.Topic != PaymentTopic(5) || !ev.At.Equal(at) {
		t.Errorf("decoded event = %+v", ev)
	}

	if _, err := decodeEvent(`{"type":"x"}`); err == nil {
		t.Error("expected error for event without topic")
	}
	if _, err := decodeEvent(`not json`); err == nil {
		t.Error("expected error for malformed payload")
	}
}

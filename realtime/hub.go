package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Типы событий ленты изменений
const (
	EventReservationCreated  = "reservation.created"
	EventReservationUpdated  = "reservation.updated"
	EventReservationsCleared = "reservation.cleared"
	EventPaymentSubmitted    = "payment.submitted"
	EventPaymentVerified     = "payment.verified"
	EventPaymentRejected     = "payment.rejected"
	EventPaymentOverdue      = "payment.overdue"
)

// Event описывает изменение строки, о котором нужно сообщить подписчикам
type Event struct {
	Type    string      `json:"type"`
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Handler получает события темы, на которую оформлена подписка
type Handler func(Event)

// Publisher публикует события в ленту изменений
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Темы ленты изменений
func OwnerTopic(ownerID uint) string {
	return fmt.Sprintf("reservations:owner:%d", ownerID)
}

func RequesterTopic(requesterID uint) string {
	return fmt.Sprintf("reservations:requester:%d", requesterID)
}

func PaymentTopic(reservationID uint) string {
	return fmt.Sprintf("payments:reservation:%d", reservationID)
}

// Hub хранит подписки процесса и раздает им события
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscription представляет одну подписку на тему
type Subscription struct {
	hub     *Hub
	topic   string
	handler Handler
	once    sync.Once
}

// Topic возвращает тему подписки
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe отменяет подписку. Повторный вызов ничего не делает.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Subscribe регистрирует handler для событий темы topic
func (h *Hub) Subscribe(topic string, handler Handler) *Subscription {
	sub := &Subscription{hub: h, topic: topic, handler: handler}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Subscription]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	return sub
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.subs[s.topic]; m != nil {
		delete(m, s)
		if len(m) == 0 {
			delete(h.subs, s.topic)
		}
	}
}

// Publish синхронно вызывает обработчики подписчиков темы события
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	m := h.subs[ev.Topic]
	handlers := make([]Handler, 0, len(m))
	for s := range m {
		handlers = append(handlers, s.handler)
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		if err := ctx.Err(); err != nil {
			return err
		}
		handler(ev)
	}
	return nil
}

// SubscriberCount возвращает число подписок на тему
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"rentahome/realtime"
	"rentahome/services"
	"rentahome/utils"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = (eventsPongWait * 9) / 10
	eventsBuffer     = 64
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventsController отдает ленту изменений по websocket
type EventsController struct {
	hub          *realtime.Hub
	reservations *services.ReservationService
}

// NewEventsController создает новый экземпляр EventsController
func NewEventsController(hub *realtime.Hub, reservations *services.ReservationService) *EventsController {
	return &EventsController{hub: hub, reservations: reservations}
}

// Stream подписывает соединение на заявки пользователя как арендатора и как владельца.
// ?reservation=ID добавляет платежи по заявке, если пользователь ее участник.
func (c *EventsController) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	topics := []string{realtime.RequesterTopic(userID), realtime.OwnerTopic(userID)}
	if v := r.URL.Query().Get("reservation"); v != "" {
		reservationID, err := strconv.ParseUint(v, 10, 32)
		if err != nil || reservationID == 0 {
			http.Error(w, "Invalid reservation", http.StatusBadRequest)
			return
		}
		if _, err := c.reservations.Get(r.Context(), userID, uint(reservationID)); err != nil {
			writeError(w, err)
			return
		}
		topics = append(topics, realtime.PaymentTopic(uint(reservationID)))
	}

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.LogError("Ошибка перехода на websocket: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan realtime.Event, eventsBuffer)
	subs := make([]*realtime.Subscription, 0, len(topics))
	for _, topic := range topics {
		subs = append(subs, c.hub.Subscribe(topic, func(ev realtime.Event) {
			select {
			case send <- ev:
			default:
				utils.LogDebug("Клиент %d не успевает читать ленту, событие %s пропущено", userID, ev.Type)
			}
		}))
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	// Читаем только управляющие кадры, чтобы заметить закрытие соединения
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case ev := <-send:
			conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

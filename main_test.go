package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rentahome/config"
	"rentahome/database"
	"rentahome/models"
	"rentahome/realtime"
	"rentahome/services"
	"rentahome/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithStore(t, database.NewMemoryStore())
}

func newTestServerWithStore(t *testing.T, store services.Store) *httptest.Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.RateLimit = 1000
	cfg.JWT.SecretKey = "test-secret"
	cfg.JWT.ExpiresIn = 1
	cfg.Server.RequestTimeout = 500 * time.Millisecond
	cfg.Payments.WindowDays = -1

	hub := realtime.NewHub()
	server := httptest.NewServer(newRouter(dependencies{
		cfg:      cfg,
		store:    store,
		hub:      hub,
		events:   hub,
		uploader: storage.DisabledUploader{},
	}))
	t.Cleanup(server.Close)
	return server
}

// call выполняет запрос и декодирует JSON-ответ в out, если он задан
func call(t *testing.T, server *httptest.Server, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, server.URL+path, &payload)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: ошибка декодирования ответа: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func signUp(t *testing.T, server *httptest.Server, name, email string) string {
	t.Helper()
	var resp struct {
		Token struct {
			Token string `json:"token"`
		} `json:"token"`
	}
	status := call(t, server, "POST", "/api/auth/signUp", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "secreto123",
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("signUp %s: статус %d", email, status)
	}
	return resp.Token.Token
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)
	if status := call(t, server, "GET", "/api/health", "", nil, nil); status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	server := newTestServer(t)
	if status := call(t, server, "GET", "/api/reservations/mine", "", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusUnauthorized)
	}
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	server := newTestServer(t)
	signUp(t, server, "Marta", "marta@example.com")

	status := call(t, server, "POST", "/api/auth/signIn", "", map[string]string{
		"email":    "marta@example.com",
		"password": "otraclave99",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("got %v want %v", status, http.StatusUnauthorized)
	}

	var token struct {
		Token string `json:"token"`
	}
	status = call(t, server, "POST", "/api/auth/signIn", "", map[string]string{
		"email":    "marta@example.com",
		"password": "secreto123",
	}, &token)
	if status != http.StatusOK || token.Token == "" {
		t.Errorf("вход с верным паролем: статус %d, токен %q", status, token.Token)
	}
}

func TestReservationAndPaymentFlow(t *testing.T) {
	server := newTestServer(t)
	owner := signUp(t, server, "Marta", "marta@example.com")
	tenant := signUp(t, server, "Lucas", "lucas@example.com")

	var property models.Property
	status := call(t, server, "POST", "/api/properties", owner, map[string]interface{}{
		"title":        "Departamento centro",
		"city":         "Quito",
		"bedrooms":     2,
		"monthly_rate": "450",
	}, &property)
	if status != http.StatusCreated {
		t.Fatalf("создание объекта: статус %d", status)
	}

	arrival := time.Now().Format(services.DateLayout)
	var reservation models.Reservation
	status = call(t, server, "POST", "/api/reservations", tenant, map[string]interface{}{
		"property_id":     property.ID,
		"arrival_date":    arrival,
		"duration_months": 3,
	}, &reservation)
	if status != http.StatusCreated {
		t.Fatalf("создание заявки: статус %d", status)
	}
	if reservation.Status != models.ReservationPending {
		t.Fatalf("статус заявки %q, ожидался %q", reservation.Status, models.ReservationPending)
	}

	// Повторная заявка на тот же объект, пока первая в ожидании
	status = call(t, server, "POST", "/api/reservations", tenant, map[string]interface{}{
		"property_id":     property.ID,
		"arrival_date":    arrival,
		"duration_months": 1,
	}, nil)
	if status != http.StatusConflict {
		t.Errorf("повторная заявка: статус %d, ожидался %d", status, http.StatusConflict)
	}

	// Платить до принятия нельзя
	paymentPath := fmt.Sprintf("/api/reservations/%d/payments", reservation.ID)
	paymentBody := map[string]interface{}{"method": models.MethodTransfer, "amount_paid": "450"}
	if status := call(t, server, "POST", paymentPath, tenant, paymentBody, nil); status != http.StatusUnprocessableEntity {
		t.Errorf("платеж до принятия: статус %d, ожидался %d", status, http.StatusUnprocessableEntity)
	}

	// Решение принимает только владелец
	statusPath := fmt.Sprintf("/api/reservations/%d/status", reservation.ID)
	if status := call(t, server, "PATCH", statusPath, tenant, map[string]string{"status": "accepted"}, nil); status != http.StatusForbidden {
		t.Errorf("решение арендатора: статус %d, ожидался %d", status, http.StatusForbidden)
	}
	status = call(t, server, "PATCH", statusPath, owner, map[string]string{"status": "accepted"}, &reservation)
	if status != http.StatusOK || reservation.Status != models.ReservationAccepted {
		t.Fatalf("принятие заявки: статус %d, заявка %q", status, reservation.Status)
	}

	if status := call(t, server, "GET", fmt.Sprintf("/api/properties/%d", property.ID), owner, nil, &property); status != http.StatusOK {
		t.Fatalf("чтение объекта: статус %d", status)
	}
	if property.State != models.PropertyReserved {
		t.Errorf("состояние объекта %q, ожидалось %q", property.State, models.PropertyReserved)
	}

	var payment models.MonthlyPayment
	if status := call(t, server, "POST", paymentPath, tenant, paymentBody, &payment); status != http.StatusCreated {
		t.Fatalf("регистрация платежа: статус %d", status)
	}
	if payment.Month != 1 || payment.Status != models.PaymentPending {
		t.Errorf("платеж: месяц %d статус %q", payment.Month, payment.Status)
	}

	verifyPath := fmt.Sprintf("/api/payments/%d/verify", payment.ID)
	if status := call(t, server, "POST", verifyPath, owner, map[string]interface{}{"approved": false}, nil); status != http.StatusBadRequest {
		t.Errorf("отклонение без причины: статус %d, ожидался %d", status, http.StatusBadRequest)
	}
	status = call(t, server, "POST", verifyPath, owner, map[string]interface{}{"approved": true}, &payment)
	if status != http.StatusOK || payment.Status != models.PaymentVerified {
		t.Fatalf("подтверждение платежа: статус %d, платеж %q", status, payment.Status)
	}

	var schedule []services.ScheduleEntry
	if status := call(t, server, "GET", paymentPath, tenant, nil, &schedule); status != http.StatusOK {
		t.Fatalf("график платежей: статус %d", status)
	}
	if len(schedule) != 3 {
		t.Fatalf("в графике %d месяцев, ожидалось 3", len(schedule))
	}
	want := []models.PaymentStatus{models.PaymentVerified, models.PaymentAwaitingRecord, models.PaymentAwaitingRecord}
	for i, entry := range schedule {
		if entry.Month != i+1 || entry.Status != want[i] {
			t.Errorf("месяц %d: got (%d, %q) want (%d, %q)", i+1, entry.Month, entry.Status, i+1, want[i])
		}
	}
}

func TestClearTerminalReservations(t *testing.T) {
	server := newTestServer(t)
	owner := signUp(t, server, "Marta", "marta@example.com")
	tenant := signUp(t, server, "Lucas", "lucas@example.com")

	var property models.Property
	call(t, server, "POST", "/api/properties", owner, map[string]interface{}{
		"title":        "Casa con patio",
		"city":         "Cuenca",
		"monthly_rate": "300",
	}, &property)

	var reservation models.Reservation
	call(t, server, "POST", "/api/reservations", tenant, map[string]interface{}{
		"property_id":     property.ID,
		"arrival_date":    "2026-01-10",
		"duration_months": 2,
	}, &reservation)

	if status := call(t, server, "POST", fmt.Sprintf("/api/reservations/%d/cancel", reservation.ID), tenant, nil, nil); status != http.StatusOK {
		t.Fatalf("отмена заявки: статус %d", status)
	}

	var result struct {
		Deleted int64 `json:"deleted"`
	}
	if status := call(t, server, "DELETE", "/api/reservations/terminal", tenant, nil, &result); status != http.StatusOK {
		t.Fatalf("очистка: статус %d", status)
	}
	if result.Deleted != 1 {
		t.Errorf("удалено %d заявок, ожидалась 1", result.Deleted)
	}

	var mine []models.Reservation
	call(t, server, "GET", "/api/reservations/mine", tenant, nil, &mine)
	if len(mine) != 0 {
		t.Errorf("после очистки осталось %d заявок", len(mine))
	}
}

// hangingStore зависает на чтении заявки до отмены контекста
type hangingStore struct {
	*database.MemoryStore
	sawDeadline chan bool
}

func (s hangingStore) GetReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	_, ok := ctx.Deadline()
	s.sawDeadline <- ok
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, models.ErrNotFound
	}
}

func TestRequestDeadlineReachesStore(t *testing.T) {
	store := hangingStore{MemoryStore: database.NewMemoryStore(), sawDeadline: make(chan bool, 4)}
	server := newTestServerWithStore(t, store)
	tenant := signUp(t, server, "Lucas", "lucas@example.com")

	start := time.Now()
	status := call(t, server, "GET", "/api/reservations/1/payments", tenant, nil, nil)
	if status != http.StatusGatewayTimeout {
		t.Errorf("got %d want %d", status, http.StatusGatewayTimeout)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("request took %v", elapsed)
	}
	if !<-store.sawDeadline {
		t.Error("store call has no deadline")
	}
}

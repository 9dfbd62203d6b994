package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"rentahome/services"
)

// maxProofSize ограничивает размер изображения чека
const maxProofSize = 10 << 20

// PaymentController обрабатывает запросы, связанные с ежемесячными платежами
type PaymentController struct {
	payments *services.PaymentService
}

// NewPaymentController создает новый экземпляр PaymentController
func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{payments: payments}
}

// SubmitPaymentRequest данные платежа; месяц выбирается автоматически
type SubmitPaymentRequest struct {
	Method     string          `json:"method"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	ProofURL   string          `json:"proof_url"`
}

// VerifyPaymentRequest решение владельца по платежу
type VerifyPaymentRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// Schedule возвращает график платежей заявки
func (c *PaymentController) Schedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	schedule, err := c.payments.Schedule(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// Submit регистрирует платеж по заявке
func (c *PaymentController) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req SubmitPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payment, err := c.payments.SubmitPayment(r.Context(), services.SubmitPaymentDTO{
		RequesterID:   userID,
		ReservationID: id,
		Method:        req.Method,
		AmountPaid:    req.AmountPaid,
		ProofURL:      req.ProofURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// UploadProof принимает изображение чека в поле формы proof и возвращает ссылку на него
func (c *PaymentController) UploadProof(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProofSize)
	if err := r.ParseMultipartForm(maxProofSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("proof")
	if err != nil {
		http.Error(w, "proof file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	url, err := c.payments.UploadProof(r.Context(), userID, id, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// Verify подтверждает или отклоняет платеж
func (c *PaymentController) Verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payment, err := c.payments.VerifyPayment(r.Context(), userID, id, req.Approved, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

package controllers

import (
	"encoding/json"
	"net/http"

	"rentahome/models"
	"rentahome/services"
)

// ReservationController обрабатывает запросы, связанные с заявками на бронирование
type ReservationController struct {
	reservations *services.ReservationService
}

// NewReservationController создает новый экземпляр ReservationController
func NewReservationController(reservations *services.ReservationService) *ReservationController {
	return &ReservationController{reservations: reservations}
}

// UpdateStatusRequest решение владельца по заявке
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// statusAliases принимает статусы как на английском, так и в виде, хранимом в базе
var statusAliases = map[string]models.ReservationStatus{
	"accepted":                         models.ReservationAccepted,
	"rejected":                         models.ReservationRejected,
	string(models.ReservationAccepted): models.ReservationAccepted,
	string(models.ReservationRejected): models.ReservationRejected,
}

// Create обрабатывает запрос на создание заявки
func (c *ReservationController) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.CreateReservationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	dto.RequesterID = userID

	reservation, err := c.reservations.CreateReservation(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservation)
}

// Mine возвращает заявки текущего пользователя
func (c *ReservationController) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	reservations, err := c.reservations.ListMine(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservations)
}

// ForOwner возвращает заявки на объекты текущего пользователя, ?status= фильтрует по статусу
func (c *ReservationController) ForOwner(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	status := models.ReservationStatus(r.URL.Query().Get("status"))
	reservations, err := c.reservations.ListForOwner(r.Context(), userID, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservations)
}

// Get возвращает заявку арендатору или владельцу
func (c *ReservationController) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	reservation, err := c.reservations.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

// UpdateStatus принимает или отклоняет заявку
func (c *ReservationController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	status, known := statusAliases[req.Status]
	if !known {
		status = models.ReservationStatus(req.Status)
	}

	reservation, err := c.reservations.UpdateReservationStatus(r.Context(), userID, id, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

// Cancel отменяет заявку в ожидании
func (c *ReservationController) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	reservation, err := c.reservations.CancelReservation(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

// ClearTerminal удаляет отмененные и отклоненные заявки; ?scope=owner для заявок на свои объекты
func (c *ReservationController) ClearTerminal(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	isOwner := r.URL.Query().Get("scope") == "owner"

	deleted, err := c.reservations.ClearTerminalReservations(r.Context(), userID, isOwner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

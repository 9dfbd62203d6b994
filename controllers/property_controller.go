package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"rentahome/services"
)

// PropertyController обрабатывает запросы, связанные с объектами
type PropertyController struct {
	properties *services.PropertyService
}

// NewPropertyController создает новый экземпляр PropertyController
func NewPropertyController(properties *services.PropertyService) *PropertyController {
	return &PropertyController{properties: properties}
}

// Create публикует объект текущего пользователя
func (c *PropertyController) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.CreatePropertyDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	dto.OwnerID = userID

	property, err := c.properties.Create(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, property)
}

// Mine возвращает объекты текущего пользователя
func (c *PropertyController) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	properties, err := c.properties.ListMine(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, properties)
}

// Get возвращает объект по ID
func (c *PropertyController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	property, err := c.properties.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, property)
}

// Search ищет доступные объекты: ?city=&min_rate=&max_rate=&min_bedrooms=&sort=
func (c *PropertyController) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dto := services.SearchPropertiesDTO{
		City:    q.Get("city"),
		MinRate: q.Get("min_rate"),
		MaxRate: q.Get("max_rate"),
		Sort:    q.Get("sort"),
	}
	if v := q.Get("min_bedrooms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "Invalid min_bedrooms", http.StatusBadRequest)
			return
		}
		dto.MinBedrooms = n
	}

	properties, err := c.properties.Search(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, properties)
}

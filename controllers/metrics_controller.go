package controllers

import (
	"net/http"

	"rentahome/utils"
)

// Health отвечает, что сервис запущен
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics возвращает снимок метрик операций
func Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, utils.GetMetrics().GetMetricsSnapshot())
}

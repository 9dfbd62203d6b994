package utils

import (
	"sync"
	"time"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики операций
	TotalOperations  int64
	FailedOperations int64
	TotalLatency     time.Duration
	AverageLatency   time.Duration
	LastOperation    time.Time
	Operations       map[string]int64

	// Метрики бронирований и платежей
	ReservationsCreated int64
	ReservationsDecided int64
	PaymentsSubmitted   int64
	PaymentsVerified    int64
	PaymentsRejected    int64
	PartialMutations    int64

	// Метрики ошибок
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics возвращает экземпляр метрик
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics()
	})
	return metrics
}

func newMetrics() *Metrics {
	return &Metrics{
		Operations: make(map[string]int64),
		ErrorTypes: make(map[string]int64),
	}
}

// RecordOperation записывает метрики операции сервиса
func (m *Metrics) RecordOperation(operation string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalOperations++
	m.TotalLatency += duration
	m.AverageLatency = m.TotalLatency / time.Duration(m.TotalOperations)
	m.LastOperation = time.Now()
	m.Operations[operation]++

	if err != nil {
		m.FailedOperations++
		m.recordErrorLocked(err)
	}

	switch operation {
	case "CreateReservation":
		if err == nil {
			m.ReservationsCreated++
		}
	case "UpdateReservationStatus":
		if err == nil {
			m.ReservationsDecided++
		}
	case "SubmitPayment":
		if err == nil {
			m.PaymentsSubmitted++
		}
	}
}

// RecordVerification учитывает решение владельца по платежу
func (m *Metrics) RecordVerification(approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if approved {
		m.PaymentsVerified++
	} else {
		m.PaymentsRejected++
	}
}

// RecordPartialMutation учитывает неудачную вторую запись многошаговой операции
func (m *Metrics) RecordPartialMutation(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PartialMutations++
	m.recordErrorLocked(err)
}

// RecordError записывает метрики ошибки
func (m *Metrics) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordErrorLocked(err)
}

func (m *Metrics) recordErrorLocked(err error) {
	m.ErrorCount++
	m.LastErrorTime = time.Now()

	errorType := "unknown"
	if err != nil {
		errorType = err.Error()
	}
	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make(map[string]int64, len(m.Operations))
	for k, v := range m.Operations {
		operations[k] = v
	}
	errorTypes := make(map[string]int64, len(m.ErrorTypes))
	for k, v := range m.ErrorTypes {
		errorTypes[k] = v
	}

	return map[string]interface{}{
		"total_operations":     m.TotalOperations,
		"failed_operations":    m.FailedOperations,
		"average_latency":      m.AverageLatency.String(),
		"operations":           operations,
		"reservations_created": m.ReservationsCreated,
		"reservations_decided": m.ReservationsDecided,
		"payments_submitted":   m.PaymentsSubmitted,
		"payments_verified":    m.PaymentsVerified,
		"payments_rejected":    m.PaymentsRejected,
		"partial_mutations":    m.PartialMutations,
		"error_count":          m.ErrorCount,
		"last_error_time":      m.LastErrorTime,
		"error_types":          errorTypes,
	}
}

// ResetMetrics сбрасывает все метрики
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := newMetrics()
	m.TotalOperations = 0
	m.FailedOperations = 0
	m.TotalLatency = 0
	m.AverageLatency = 0
	m.LastOperation = time.Time{}
	m.Operations = fresh.Operations
	m.ReservationsCreated = 0
	m.ReservationsDecided = 0
	m.PaymentsSubmitted = 0
	m.PaymentsVerified = 0
	m.PaymentsRejected = 0
	m.PartialMutations = 0
	m.ErrorCount = 0
	m.LastErrorTime = time.Time{}
	m.ErrorTypes = fresh.ErrorTypes
}

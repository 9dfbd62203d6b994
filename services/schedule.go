package services

import (
	"time"

	"github.com/shopspring/decimal"

	"rentahome/models"
)

// DateLayout формат дат в запросах
const DateLayout = "2006-01-02"

// ScheduleEntry строка графика платежей за один месяц аренды
type ScheduleEntry struct {
	Month     int                    `json:"month"`
	DueDate   time.Time              `json:"due_date"`
	Amount    decimal.Decimal        `json:"amount"`
	Status    models.PaymentStatus   `json:"status"`
	Payment   *models.MonthlyPayment `json:"payment,omitempty"`
	IsOverdue bool                   `json:"is_overdue"`
}

// ParseDate разбирает дату в формате ГГГГ-ММ-ДД
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DueDate возвращает дату платежа за месяц month (нумерация с 1)
func DueDate(reservation models.Reservation, month int) time.Time {
	return dateOnly(reservation.ArrivalDate).AddDate(0, month-1, 0)
}

// BuildMonthlySchedule накладывает сохраненные платежи на календарь аренды.
// Функция не меняет аргументы, повторный вызов с теми же данными дает тот же результат.
func BuildMonthlySchedule(reservation models.Reservation, payments []models.MonthlyPayment, now time.Time) []ScheduleEntry {
	byMonth := paymentsByMonth(payments)
	today := dateOnly(now.In(reservation.ArrivalDate.Location()))

	schedule := make([]ScheduleEntry, 0, max(reservation.DurationMonths, 0))
	for month := 1; month <= reservation.DurationMonths; month++ {
		entry := ScheduleEntry{
			Month:   month,
			DueDate: DueDate(reservation, month),
			Amount:  reservation.MonthlyRate,
			Status:  models.PaymentAwaitingRecord,
		}
		if payment, ok := byMonth[month]; ok {
			entry.Payment = &payment
			entry.Status = payment.Status
		}

		unsettled := entry.Status == models.PaymentAwaitingRecord || entry.Status == models.PaymentPending
		entry.IsOverdue = unsettled && today.After(entry.DueDate)

		schedule = append(schedule, entry)
	}

	return schedule
}

// NextPayableMonth выбирает наименьший месяц без платежа или с отклоненным платежом.
// Для отклоненного платежа возвращается существующая запись, ее нужно обновить, а не создавать новую.
func NextPayableMonth(durationMonths int, payments []models.MonthlyPayment) (int, *models.MonthlyPayment, error) {
	byMonth := paymentsByMonth(payments)

	for month := 1; month <= durationMonths; month++ {
		payment, ok := byMonth[month]
		if !ok {
			return month, nil, nil
		}
		if payment.Status == models.PaymentRejected {
			return month, &payment, nil
		}
	}

	return 0, nil, ErrAllSlotsSettled
}

// PaymentWindowOpen сообщает, открыта ли регистрация первого платежа со сроком due:
// до срока должно оставаться не больше windowDays дней. Отрицательное windowDays отключает проверку.
func PaymentWindowOpen(due, now time.Time, windowDays int) bool {
	if windowDays < 0 {
		return true
	}
	today := dateOnly(now.In(due.Location()))
	return !due.After(today.AddDate(0, 0, windowDays))
}

// paymentsByMonth индексирует платежи по месяцу; при дублях побеждает первая запись
func paymentsByMonth(payments []models.MonthlyPayment) map[int]models.MonthlyPayment {
	byMonth := make(map[int]models.MonthlyPayment, len(payments))
	for _, payment := range payments {
		if _, seen := byMonth[payment.Month]; !seen {
			byMonth[payment.Month] = payment
		}
	}
	return byMonth
}

package services_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"rentahome/models"
	"rentahome/services"
)

func TestBuildMonthlySchedule(t *testing.T) {
	reservation := models.Reservation{
		ID:             7,
		ArrivalDate:    date("2024-01-10"),
		DurationMonths: 3,
		MonthlyRate:    decimal.NewFromInt(450),
	}
	payments := []models.MonthlyPayment{
		{ID: 1, ReservationID: 7, Month: 1, Status: models.PaymentVerified},
		{ID: 2, ReservationID: 7, Month: 2, Status: models.PaymentPending},
	}

	schedule := services.BuildMonthlySchedule(reservation, payments, date("2024-02-11"))

	wantDue := []string{"2024-01-10", "2024-02-10", "2024-03-10"}
	wantStatus := []models.PaymentStatus{models.PaymentVerified, models.PaymentPending, models.PaymentAwaitingRecord}
	wantOverdue := []bool{false, true, false}

	if len(schedule) != 3 {
		t.Fatalf("len(schedule) = %d, want 3", len(schedule))
	}
	for i, entry := range schedule {
		if entry.Month != i+1 {
			t.Errorf("entry %d month = %d", i, entry.Month)
		}
		if got := entry.DueDate.Format(services.DateLayout); got != wantDue[i] {
			t.Errorf("month %d due = %s, want %s", entry.Month, got, wantDue[i])
		}
		if entry.Status != wantStatus[i] {
			t.Errorf("month %d status = %s, want %s", entry.Month, entry.Status, wantStatus[i])
		}
		if entry.IsOverdue != wantOverdue[i] {
			t.Errorf("month %d overdue = %v, want %v", entry.Month, entry.IsOverdue, wantOverdue[i])
		}
		if !entry.Amount.Equal(decimal.NewFromInt(450)) {
			t.Errorf("month %d amount = %s", entry.Month, entry.Amount)
		}
	}
	if schedule[2].Payment != nil {
		t.Errorf("month 3 should have no payment record")
	}
	if schedule[0].Payment == nil || schedule[0].Payment.ID != 1 {
		t.Errorf("month 1 payment = %+v, want id 1", schedule[0].Payment)
	}
}

func TestBuildMonthlyScheduleMonthEnds(t *testing.T) {
	for _, d := range []int{1, 2, 5, 12, 24} {
		reservation := models.Reservation{ArrivalDate: date("2024-01-31"), DurationMonths: d}
		schedule := services.BuildMonthlySchedule(reservation, nil, date("2024-01-01"))
		if len(schedule) != d {
			t.Fatalf("duration %d: len = %d", d, len(schedule))
		}
		for i := 1; i < len(schedule); i++ {
			if !schedule[i].DueDate.After(schedule[i-1].DueDate) {
				t.Errorf("duration %d: due dates not increasing at month %d", d, schedule[i].Month)
			}
			if schedule[i].Month != schedule[i-1].Month+1 {
				t.Errorf("duration %d: months not consecutive at %d", d, i)
			}
		}
	}
}

func TestBuildMonthlyScheduleIdempotent(t *testing.T) {
	reason := "ilegible"
	reservation := models.Reservation{ArrivalDate: date("2024-01-10"), DurationMonths: 4, MonthlyRate: decimal.NewFromInt(300)}
	payments := []models.MonthlyPayment{
		{ID: 3, Month: 2, Status: models.PaymentRejected, RejectionReason: &reason},
		{ID: 4, Month: 1, Status: models.PaymentVerified},
	}
	before := append([]models.MonthlyPayment(nil), payments...)
	now := date("2024-03-20")

	first := services.BuildMonthlySchedule(reservation, payments, now)
	second := services.BuildMonthlySchedule(reservation, payments, now)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("schedule differs between calls:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(before, payments) {
		t.Fatalf("payments were mutated")
	}
}

func TestNextPayableMonth(t *testing.T) {
	tests := []struct {
		name       string
		duration   int
		payments   []models.MonthlyPayment
		wantMonth  int
		wantExists bool
		wantErr    error
	}{
		{
			name:      "no payments",
			duration:  3,
			wantMonth: 1,
		},
		{
			name:     "rejected month before empty month",
			duration: 3,
			payments: []models.MonthlyPayment{
				{ID: 10, Month: 1, Status: models.PaymentVerified},
				{ID: 11, Month: 2, Status: models.PaymentRejected},
			},
			wantMonth:  2,
			wantExists: true,
		},
		{
			name:     "gap is filled first",
			duration: 3,
			payments: []models.MonthlyPayment{
				{ID: 12, Month: 1, Status: models.PaymentPending},
				{ID: 13, Month: 3, Status: models.PaymentVerified},
			},
			wantMonth: 2,
		},
		{
			name:     "all settled",
			duration: 2,
			payments: []models.MonthlyPayment{
				{ID: 14, Month: 1, Status: models.PaymentVerified},
				{ID: 15, Month: 2, Status: models.PaymentPending},
			},
			wantErr: services.ErrAllSlotsSettled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			month, existing, err := services.NextPayableMonth(tt.duration, tt.payments)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if month != tt.wantMonth {
				t.Errorf("month = %d, want %d", month, tt.wantMonth)
			}
			if (existing != nil) != tt.wantExists {
				t.Errorf("existing = %+v, want exists=%v", existing, tt.wantExists)
			}
		})
	}
}

func TestPaymentWindowOpen(t *testing.T) {
	due := date("2024-03-10")
	tests := []struct {
		now    string
		window int
		want   bool
	}{
		{"2024-03-07", 2, false},
		{"2024-03-08", 2, true},
		{"2024-03-10", 2, true},
		{"2024-04-01", 2, true},
		{"2024-01-01", -1, true},
		{"2024-03-09", 0, false},
	}
	for _, tt := range tests {
		if got := services.PaymentWindowOpen(due, date(tt.now), tt.window); got != tt.want {
			t.Errorf("PaymentWindowOpen(now=%s, window=%d) = %v, want %v", tt.now, tt.window, got, tt.want)
		}
	}
}

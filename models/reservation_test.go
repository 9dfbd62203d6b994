package models

import "testing"

func TestReservationStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status ReservationStatus
		want   bool
	}{
		{ReservationPending, false},
		{ReservationAccepted, false},
		{ReservationRejected, true},
		{ReservationCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}

	terminal := TerminalStatuses()
	if len(terminal) != 2 || terminal[0] != ReservationRejected || terminal[1] != ReservationCancelled {
		t.Errorf("TerminalStatuses() = %v", terminal)
	}
}

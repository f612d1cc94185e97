package order

import "testing"

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled} {
		if !s.Valid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	for _, s := range []Status{"", "archived", "PENDING"} {
		if s.Valid() {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := map[string]struct {
		from Status
		to   Status
		want bool
	}{
		"pending to paid":         {StatusPending, StatusPaid, true},
		"paid to shipped":         {StatusPaid, StatusShipped, true},
		"shipped to delivered":    {StatusShipped, StatusDelivered, true},
		"pending to shipped":      {StatusPending, StatusShipped, false},
		"pending to delivered":    {StatusPending, StatusDelivered, false},
		"paid to pending":         {StatusPaid, StatusPending, false},
		"delivered to shipped":    {StatusDelivered, StatusShipped, false},
		"pending to cancelled":    {StatusPending, StatusCancelled, true},
		"paid to cancelled":       {StatusPaid, StatusCancelled, true},
		"shipped to cancelled":    {StatusShipped, StatusCancelled, true},
		"delivered to cancelled":  {StatusDelivered, StatusCancelled, false},
		"cancelled to pending":    {StatusCancelled, StatusPending, false},
		"cancelled to cancelled":  {StatusCancelled, StatusCancelled, false},
		"unknown from":            {"archived", StatusPaid, false},
		"unknown to":              {StatusPending, "archived", false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

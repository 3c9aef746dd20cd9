package core

import (
	"errors"
	"testing"
)

func TestUpdateCommissionAllocationRejects(t *testing.T) {
	cases := []struct {
		name  string
		value int64
		mode  CommissionMode
		want  error
	}{
		{"percentage over 100", 101, ModePercentage, ErrPercentageOutOfRange},
		{"negative percentage", -1, ModePercentage, ErrPercentageOutOfRange},
		{"fixed over subtotal", 201, ModeFixedAmount, ErrAmountExceedsServiceSubtotal},
		{"negative fixed", -5, ModeFixedAmount, ErrInvalidAmount},
		{"unknown mode", 5, "ratio", ErrUnknownCommissionMode},
	}
	for _, tc := range cases {
		s := line(100, 2)
		err := UpdateCommissionAllocation(&s, "d1", tc.value, tc.mode)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if len(s.Commissions) != 0 {
			t.Fatalf("%s: line modified on rejection", tc.name)
		}
	}
}

func TestUpdateCommissionAllocationKeepsSumWithinSubtotal(t *testing.T) {
	s := line(100, 2)
	if err := UpdateCommissionAllocation(&s, "d1", 60, ModePercentage); err != nil {
		t.Fatal(err)
	}
	err := UpdateCommissionAllocation(&s, "d2", 81, ModeFixedAmount)
	if !errors.Is(err, ErrAmountExceedsServiceSubtotal) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if len(s.Commissions) != 1 {
		t.Fatalf("rejected allocation was added: %+v", s.Commissions)
	}
	if err := UpdateCommissionAllocation(&s, "d2", 80, ModeFixedAmount); err != nil {
		t.Fatal(err)
	}
	if s.CommissionTotal() != s.Subtotal() {
		t.Fatalf("total=%d subtotal=%d", s.CommissionTotal(), s.Subtotal())
	}
	// Replacing an existing allocation only counts the others.
	if err := UpdateCommissionAllocation(&s, "d1", 120, ModeFixedAmount); err != nil {
		t.Fatalf("replacing d1 should fit: %v", err)
	}
	if c := s.Commissions[0]; c.Amount != 120 || c.Percentage != 60 || c.Mode() != ModeFixedAmount {
		t.Fatalf("d1 %+v", c)
	}
}

func TestFixedAmountDerivesPercentage(t *testing.T) {
	s := line(300, 1)
	if err := UpdateCommissionAllocation(&s, "d1", 100, ModeFixedAmount); err != nil {
		t.Fatal(err)
	}
	if s.Commissions[0].Percentage != 33 {
		t.Fatalf("percentage=%d", s.Commissions[0].Percentage)
	}
}

func TestModeToggleRoundTrip(t *testing.T) {
	for _, pct := range []int64{0, 1, 7, 33, 50, 99, 100} {
		s := line(37, 3)
		if err := UpdateCommissionAllocation(&s, "d1", pct, ModePercentage); err != nil {
			t.Fatal(err)
		}
		amount := s.Commissions[0].Amount
		if err := SetCommissionMode(&s, "d1", ModeFixedAmount); err != nil {
			t.Fatal(err)
		}
		if s.Commissions[0].Amount != amount {
			t.Fatalf("toggle changed amount %d -> %d", amount, s.Commissions[0].Amount)
		}
		if err := SetCommissionMode(&s, "d1", ModePercentage); err != nil {
			t.Fatal(err)
		}
		got := s.Commissions[0].Percentage
		if got < pct-1 || got > pct+1 {
			t.Fatalf("round trip %d -> %d", pct, got)
		}
		if s.Commissions[0].Amount != amount {
			t.Fatalf("round trip changed amount %d -> %d", amount, s.Commissions[0].Amount)
		}
	}
}

func TestSetCommissionModeUnknownDoctor(t *testing.T) {
	s := line(100, 1)
	if err := SetCommissionMode(&s, "d1", ModeFixedAmount); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRepriceFixedKeepsPerUnitAmount(t *testing.T) {
	s := line(100, 3)
	if err := UpdateCommissionAllocation(&s, "d1", 50, ModeFixedAmount); err != nil {
		t.Fatal(err)
	}
	// per unit round(50/3) = 17, times 5 = 85
	if err := SetQuantity(&s, 5); err != nil {
		t.Fatal(err)
	}
	c := s.Commissions[0]
	if c.Amount != 85 || c.Percentage != 17 || c.Mode() != ModeFixedAmount {
		t.Fatalf("after rescale %+v", c)
	}
	// price changes keep the per-unit amount too
	if err := SetUnitPrice(&s, 200); err != nil {
		t.Fatal(err)
	}
	if s.Commissions[0].Amount != 85 || s.Commissions[0].Percentage != 9 {
		t.Fatalf("after price change %+v", s.Commissions[0])
	}
}

func TestRepriceRejects(t *testing.T) {
	s := line(100, 2)
	if err := UpdateCommissionAllocation(&s, "d1", 150, ModeFixedAmount); err != nil {
		t.Fatal(err)
	}
	before := s
	before.Commissions = append([]CommissionAllocation(nil), s.Commissions...)

	if err := SetQuantity(&s, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	if err := SetUnitPrice(&s, -1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	// 75 per unit stays fixed but the subtotal drops to 2*50=100
	if err := SetUnitPrice(&s, 50); !errors.Is(err, ErrAmountExceedsServiceSubtotal) {
		t.Fatalf("expected subtotal rejection, got %v", err)
	}
	if s.UnitPrice != before.UnitPrice || s.Quantity != before.Quantity || s.Commissions[0] != before.Commissions[0] {
		t.Fatalf("line modified on rejection: %+v", s)
	}
}

func TestRepriceZeroSubtotal(t *testing.T) {
	s := line(100, 1)
	if err := UpdateCommissionAllocation(&s, "d1", 10, ModePercentage); err != nil {
		t.Fatal(err)
	}
	if err := SetUnitPrice(&s, 0); err != nil {
		t.Fatal(err)
	}
	if c := s.Commissions[0]; c.Amount != 0 || c.Percentage != 10 {
		t.Fatalf("%+v", c)
	}
}

func TestAssignAndRemoveDoctors(t *testing.T) {
	s := line(100, 1)
	if err := UpdateCommissionAllocation(&s, "d2", 10, ModePercentage); err != nil {
		t.Fatal(err)
	}
	AssignDoctors(&s, "d1", "d2", "d3")
	if len(s.Commissions) != 3 || s.Commissions[1].DoctorID != "d1" || s.Commissions[0].Amount != 10 {
		t.Fatalf("unexpected %+v", s.Commissions)
	}
	if !RemoveAllocation(&s, "d1") || RemoveAllocation(&s, "d1") {
		t.Fatal("remove should succeed once")
	}
	if len(s.Commissions) != 2 || s.Commissions[1].DoctorID != "d3" {
		t.Fatalf("unexpected %+v", s.Commissions)
	}
}

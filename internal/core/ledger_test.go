package core

import (
	"errors"
	"math"
	"testing"
)

// quotation builds a two-line quotation: 200 with d1 at 20% (40) and 300 with
// d1 fixed 30 and d2 at 10% (30). Total 500, d1 earns 70, d2 earns 30.
func quotation(t *testing.T) Quotation {
	t.Helper()
	a := line(100, 2)
	b := ServiceLine{ServiceID: "svc-2", ServiceName: "Corona", UnitPrice: 300, Quantity: 1}
	for _, step := range []struct {
		s    *ServiceLine
		doc  string
		v    int64
		mode CommissionMode
	}{
		{&a, "d1", 20, ModePercentage},
		{&b, "d1", 30, ModeFixedAmount},
		{&b, "d2", 10, ModePercentage},
	} {
		if err := UpdateCommissionAllocation(step.s, step.doc, step.v, step.mode); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	return Quotation{ID: "q1", ClientName: "Ana", Services: []ServiceLine{a, b}}
}

func TestScenarioPercentageFollowsQuantity(t *testing.T) {
	s := line(100, 2)
	if s.Subtotal() != 200 {
		t.Fatalf("subtotal=%d", s.Subtotal())
	}
	if err := UpdateCommissionAllocation(&s, "d1", 20, ModePercentage); err != nil {
		t.Fatal(err)
	}
	if s.Commissions[0].Amount != 40 {
		t.Fatalf("amount=%d", s.Commissions[0].Amount)
	}
	if err := SetQuantity(&s, 3); err != nil {
		t.Fatal(err)
	}
	if s.Commissions[0].Amount != 60 || s.Commissions[0].Percentage != 20 {
		t.Fatalf("after quantity change: %+v", s.Commissions[0])
	}
}

func TestScenarioFullPaymentCompletes(t *testing.T) {
	q := Quotation{ID: "q1", ClientName: "Ana", Services: []ServiceLine{line(500, 1)}}
	if PendingAmount(q) != 500 || q.Status() != StatusPendiente {
		t.Fatalf("pending=%d status=%s", PendingAmount(q), q.Status())
	}
	err := AppendPayment(&q, Payment{ID: "p1", Amount: 500, PaymentMethod: Efectivo, CashAmount: 500})
	if err != nil {
		t.Fatal(err)
	}
	if PendingAmount(q) != 0 || q.Status() != StatusCompletado {
		t.Fatalf("pending=%d status=%s", PendingAmount(q), q.Status())
	}
}

func TestScenarioMixedMismatch(t *testing.T) {
	q := Quotation{ID: "q1", ClientName: "Ana", Services: []ServiceLine{line(100, 1)}}
	err := AppendPayment(&q, Payment{Amount: 100, PaymentMethod: Mixto, CashAmount: 40, QRAmount: 50})
	if !errors.Is(err, ErrMixedAmountMismatch) {
		t.Fatalf("expected mixed mismatch, got %v", err)
	}
	if len(q.Payments) != 0 {
		t.Fatal("rejected payment must not be appended")
	}
}

func TestScenarioDoctorPendingExceeded(t *testing.T) {
	q := quotation(t)
	if got := PendingCommissionsPerDoctor(q)["d2"]; got != 30 {
		t.Fatalf("d2 pending=%d", got)
	}
	err := ValidatePayment(q, Payment{Amount: 100, PaymentMethod: Efectivo, DoctorCommissions: map[string]int64{"d2": 35}})
	if !errors.Is(err, ErrCommissionExceedsDoctorPending) {
		t.Fatalf("expected doctor pending rejection, got %v", err)
	}
	ve, _ := AsValidationError(err)
	if ve.DoctorID != "d2" {
		t.Fatalf("rejection should name d2, got %q", ve.DoctorID)
	}
}

func TestScenarioZeroSubtotalFixedAmount(t *testing.T) {
	s := line(0, 2)
	if err := UpdateCommissionAllocation(&s, "d1", 0, ModeFixedAmount); err != nil {
		t.Fatal(err)
	}
	if c := s.Commissions[0]; c.Percentage != 0 || c.Amount != 0 {
		t.Fatalf("unexpected %+v", c)
	}
	if err := SetCommissionMode(&s, "d1", ModePercentage); err != nil {
		t.Fatal(err)
	}
	if s.Commissions[0].Percentage != 0 {
		t.Fatalf("percentage=%d", s.Commissions[0].Percentage)
	}
}

func TestValidatePaymentOrder(t *testing.T) {
	q := quotation(t)
	cases := []struct {
		name string
		p    Payment
		want error
	}{
		{"zero amount", Payment{Amount: 0, PaymentMethod: Mixto}, ErrInvalidAmount},
		{"over pending beats mismatch", Payment{Amount: 501, PaymentMethod: Mixto, CashAmount: 1}, ErrExceedsPendingTotal},
		{"unknown method", Payment{Amount: 10, PaymentMethod: "Tarjeta"}, ErrUnknownPaymentMethod},
		{"mismatch beats commissions", Payment{Amount: 100, PaymentMethod: Mixto, CashAmount: 10, QRAmount: 10, DoctorCommissions: map[string]int64{"d1": 500}}, ErrMixedAmountMismatch},
		{"cash with qr part", Payment{Amount: 100, PaymentMethod: Efectivo, CashAmount: 90, QRAmount: 10}, ErrMixedAmountMismatch},
		{"qr with cash part", Payment{Amount: 100, PaymentMethod: QR, CashAmount: 100}, ErrMixedAmountMismatch},
		{"commissions over payment", Payment{Amount: 50, PaymentMethod: QR, DoctorCommissions: map[string]int64{"d1": 30, "d2": 30}}, ErrCommissionExceedsPayment},
		{"negative commission", Payment{Amount: 50, PaymentMethod: QR, DoctorCommissions: map[string]int64{"d1": -1}}, ErrInvalidAmount},
		{"unknown doctor", Payment{Amount: 50, PaymentMethod: QR, DoctorCommissions: map[string]int64{"dx": 1}}, ErrCommissionExceedsDoctorPending},
	}
	for _, tc := range cases {
		if err := ValidatePayment(q, tc.p); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	ok := Payment{Amount: 100, PaymentMethod: Mixto, CashAmount: 60, QRAmount: 40, DoctorCommissions: map[string]int64{"d1": 70, "d2": 30}}
	if err := ValidatePayment(q, ok); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestDoctorPendingRejectsFirstDoctorByID(t *testing.T) {
	q := quotation(t)
	err := ValidatePayment(q, Payment{Amount: 200, PaymentMethod: QR, DoctorCommissions: map[string]int64{"d2": 31, "d1": 71}})
	ve, ok := AsValidationError(err)
	if !ok || ve.DoctorID != "d1" {
		t.Fatalf("expected d1 rejection, got %v", err)
	}
}

func TestAppendPaymentNormalizesSingleMethod(t *testing.T) {
	q := quotation(t)
	if err := AppendPayment(&q, Payment{ID: "p1", Amount: 120, PaymentMethod: QR, DoctorCommissions: map[string]int64{"d1": 20, "d2": 0}}); err != nil {
		t.Fatal(err)
	}
	p := q.Payments[0]
	if p.QRAmount != 120 || p.CashAmount != 0 {
		t.Fatalf("unexpected split %+v", p)
	}
	if _, ok := p.DoctorCommissions["d2"]; ok {
		t.Fatal("zero commission should be dropped")
	}
	if PaidAmount(q) != 120 || PendingAmount(q) != 380 {
		t.Fatalf("paid=%d pending=%d", PaidAmount(q), PendingAmount(q))
	}
	if got := PendingCommissionsPerDoctor(q); got["d1"] != 50 || got["d2"] != 30 {
		t.Fatalf("pending commissions %v", got)
	}
}

func TestPaidPlusPendingIsTotal(t *testing.T) {
	q := quotation(t)
	for _, amount := range []int64{100, 250, 150} {
		if err := AppendPayment(&q, Payment{Amount: amount, PaymentMethod: Efectivo}); err != nil {
			t.Fatal(err)
		}
		if PaidAmount(q)+PendingAmount(q) != q.Total() {
			t.Fatalf("paid %d + pending %d != total %d", PaidAmount(q), PendingAmount(q), q.Total())
		}
	}
	if q.Status() != StatusCompletado {
		t.Fatalf("status=%s", q.Status())
	}
	if err := ValidatePayment(q, Payment{Amount: 1, PaymentMethod: Efectivo}); !errors.Is(err, ErrExceedsPendingTotal) {
		t.Fatalf("completed quotation must reject payments, got %v", err)
	}
}

func TestPendingClampsAtZero(t *testing.T) {
	q := Quotation{Services: []ServiceLine{line(100, 1)}, Payments: []Payment{{Amount: 150}}}
	if PendingAmount(q) != 0 {
		t.Fatalf("pending=%d", PendingAmount(q))
	}
}

func TestLedgerIsIdempotent(t *testing.T) {
	q := quotation(t)
	a, b := DoctorCommissionTotals(q), DoctorCommissionTotals(q)
	if len(a) != len(b) || a["d1"] != b["d1"] || a["d2"] != b["d2"] {
		t.Fatalf("%v != %v", a, b)
	}
	if PendingAmount(q) != PendingAmount(q) {
		t.Fatal("pending amount not stable")
	}
	if a["d1"] != 70 || a["d2"] != 30 {
		t.Fatalf("totals %v", a)
	}
}

func TestDoctorCommissionPercentageOfTotal(t *testing.T) {
	q := quotation(t)
	if got := DoctorCommissionPercentageOfTotal(q, "d1"); math.Abs(got-14) > 1e-9 {
		t.Fatalf("d1 share=%f", got)
	}
	if got := DoctorCommissionPercentageOfTotal(q, "nobody"); got != 0 {
		t.Fatalf("unknown doctor share=%f", got)
	}
	if got := DoctorCommissionPercentageOfTotal(Quotation{}, "d1"); got != 0 {
		t.Fatalf("empty quotation share=%f", got)
	}
}

func TestSuggestPaymentSplit(t *testing.T) {
	q := quotation(t)
	split := SuggestPaymentSplit(q, 250)
	// 250*70/500 = 35, 250*30/500 = 15
	if split["d1"] != 35 || split["d2"] != 15 {
		t.Fatalf("split %v", split)
	}
	if err := ValidatePayment(q, Payment{Amount: 250, PaymentMethod: Efectivo, DoctorCommissions: split}); err != nil {
		t.Fatalf("suggested split must validate: %v", err)
	}

	// Nearly everything of d2 is paid; the suggestion clamps to what is left.
	if err := AppendPayment(&q, Payment{Amount: 100, PaymentMethod: Efectivo, DoctorCommissions: map[string]int64{"d2": 28}}); err != nil {
		t.Fatal(err)
	}
	split = SuggestPaymentSplit(q, 400)
	if split["d2"] != 2 || split["d1"] != 56 {
		t.Fatalf("clamped split %v", split)
	}
	if len(SuggestPaymentSplit(q, 0)) != 0 {
		t.Fatal("zero amount should suggest nothing")
	}
}

func TestSuggestPaymentSplitNeverExceedsAmount(t *testing.T) {
	s := line(10, 1)
	for _, d := range []string{"a", "b", "c"} {
		if err := UpdateCommissionAllocation(&s, d, 33, ModePercentage); err != nil {
			t.Fatal(err)
		}
	}
	q := Quotation{Services: []ServiceLine{s}}
	split := SuggestPaymentSplit(q, 1)
	var sum int64
	for _, v := range split {
		sum += v
	}
	if sum > 1 {
		t.Fatalf("split %v exceeds the payment", split)
	}
}

func TestSummarize(t *testing.T) {
	q := quotation(t)
	if err := AppendPayment(&q, Payment{ID: "p1", Amount: 100, PaymentMethod: Efectivo, DoctorCommissions: map[string]int64{"d1": 40}}); err != nil {
		t.Fatal(err)
	}
	s := Summarize(q)
	if s.Total != 500 || s.Paid != 100 || s.Pending != 400 || s.TotalCommissions != 100 || s.TotalNet != 400 {
		t.Fatalf("summary %+v", s)
	}
	if len(s.Services) != 2 || s.Services[0].Subtotal != 200 || s.Services[1].CommissionTotal != 60 {
		t.Fatalf("services %+v", s.Services)
	}
	want := []DoctorCommission{{"d1", 70, 40, 30}, {"d2", 30, 0, 30}}
	if len(s.Doctors) != len(want) {
		t.Fatalf("doctors %+v", s.Doctors)
	}
	for i := range want {
		if s.Doctors[i] != want[i] {
			t.Fatalf("doctor row %d = %+v, want %+v", i, s.Doctors[i], want[i])
		}
	}
}

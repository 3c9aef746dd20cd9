package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func line(price int64, qty int) ServiceLine {
	return ServiceLine{ServiceID: "svc-1", ServiceName: "Limpieza", SpecialtyID: "sp-1", UnitPrice: price, Quantity: qty}
}

func TestServiceLineValidate(t *testing.T) {
	good := line(100, 2)
	good.Commissions = []CommissionAllocation{resolve("d1", Percentage(50), 200), resolve("d2", FixedAmount(100), 200)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	over := good
	over.Commissions = append(append([]CommissionAllocation(nil), good.Commissions...), resolve("d3", FixedAmount(1), 200))

	dup := good
	dup.Commissions = []CommissionAllocation{resolve("d1", Percentage(10), 200), resolve("d1", Percentage(10), 200)}

	cases := []struct {
		name string
		s    ServiceLine
		want error
	}{
		{"zero quantity", line(100, 0), ErrInvalidQuantity},
		{"negative price", line(-1, 1), ErrInvalidAmount},
		{"over subtotal", over, ErrAmountExceedsServiceSubtotal},
		{"duplicate doctor", dup, ErrDuplicateAllocation},
	}
	for _, tc := range cases {
		if err := tc.s.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestQuotationValidate(t *testing.T) {
	q := Quotation{ID: "q1", ClientName: "  ", Services: []ServiceLine{line(10, 1)}}
	if err := q.Validate(); !errors.Is(err, ErrEmptyClientName) {
		t.Fatalf("expected empty client name, got %v", err)
	}
	q.ClientName = "Ana"
	if err := q.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestQuotationTotals(t *testing.T) {
	a := line(100, 2)
	if err := UpdateCommissionAllocation(&a, "d1", 20, ModePercentage); err != nil {
		t.Fatal(err)
	}
	b := line(300, 1)
	if err := UpdateCommissionAllocation(&b, "d2", 50, ModeFixedAmount); err != nil {
		t.Fatal(err)
	}
	q := Quotation{ID: "q1", ClientName: "Ana", Services: []ServiceLine{a, b}}

	if q.Total() != 500 {
		t.Fatalf("total=%d", q.Total())
	}
	if q.TotalCommissions() != 90 {
		t.Fatalf("commissions=%d", q.TotalCommissions())
	}
	if q.TotalNet() != 410 {
		t.Fatalf("net=%d", q.TotalNet())
	}
	if q.Status() != StatusPendiente {
		t.Fatalf("status=%s", q.Status())
	}
}

func TestEmptyQuotationIsCompleted(t *testing.T) {
	q := Quotation{ID: "q1", ClientName: "Ana"}
	if q.Status() != StatusCompletado {
		t.Fatalf("expected completado with nothing to pay, got %s", q.Status())
	}
}

func TestAllocationJSON(t *testing.T) {
	s := line(100, 2)
	if err := UpdateCommissionAllocation(&s, "d1", 50, ModeFixedAmount); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"serviceId":"svc-1"`, `"doctorId":"d1"`, `"mode":"fixedAmount"`, `"percentage":25`, `"amount":50`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("missing %s in %s", want, data)
		}
	}

	var back ServiceLine
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if got := back.Commissions[0].Value; got != FixedAmount(50) {
		t.Fatalf("value not rebuilt from amount: %+v", got)
	}
}

func TestAllocationJSONWithoutModeIsPercentage(t *testing.T) {
	var c CommissionAllocation
	if err := json.Unmarshal([]byte(`{"doctorId":"d1","percentage":30,"amount":60}`), &c); err != nil {
		t.Fatal(err)
	}
	if c.Value != Percentage(30) || c.Amount != 60 {
		t.Fatalf("unexpected allocation %+v", c)
	}
}

func TestPaymentJSONFieldNames(t *testing.T) {
	p := Payment{
		ID: "p1", Date: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), Amount: 100,
		PaymentMethod: Mixto, CashAmount: 60, QRAmount: 40,
		DoctorCommissions: map[string]int64{"d1": 10},
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"paymentMethod":"Mixto"`, `"cashAmount":60`, `"qrAmount":40`, `"doctorCommissions":{"d1":10}`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("missing %s in %s", want, data)
		}
	}
}

func TestValidationErrorKind(t *testing.T) {
	err := error(rejectDoctor(ErrCommissionExceedsDoctorPending, "d7", "commission 35, pending 30"))
	ve, ok := AsValidationError(err)
	if !ok {
		t.Fatal("expected validation error")
	}
	if ve.Kind() != "CommissionExceedsDoctorPending" || ve.DoctorID != "d7" {
		t.Fatalf("unexpected %+v", ve)
	}
	if !strings.Contains(err.Error(), "doctor d7") {
		t.Fatalf("message should name the doctor: %s", err)
	}
}

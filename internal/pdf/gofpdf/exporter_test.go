package gofpdf

import (
	"bytes"
	"testing"
	"time"

	"dentalstudio/internal/core"
)

func sampleSummary() core.QuotationSummary {
	q := core.Quotation{
		ID:         "q-42",
		ClientName: "Ana",
		Phone:      "70000000",
		Date:       time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC),
		Services: []core.ServiceLine{{
			ServiceID:     "brackets",
			ServiceName:   "Brackets",
			SpecialtyID:   "ortodoncia",
			SpecialtyName: "Ortodoncia",
			UnitPrice:     3500,
			Quantity:      1,
		}},
		Payments: []core.Payment{{
			ID:            "p1",
			Date:          time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC),
			Amount:        1000,
			PaymentMethod: core.Efectivo,
			CashAmount:    1000,
		}},
	}
	return core.Summarize(q)
}

func TestExportRendersSummary(t *testing.T) {
	e := New("Dental Studio")
	e.compress = false
	e.now = func() time.Time { return time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC) }

	out, err := e.Export(sampleSummary())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", out[:min(len(out), 16)])
	}
	for _, want := range []string{"Dental Studio", "q-42", "Brackets", "3.500", "2.500", "Efectivo"} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("PDF missing %q", want)
		}
	}
}

func TestExportEmptyQuotation(t *testing.T) {
	out, err := New("Dr.Dress").Export(core.Summarize(core.Quotation{ID: "q0", ClientName: "X"}))
	if err != nil || len(out) == 0 {
		t.Fatalf("Export: len=%d err=%v", len(out), err)
	}
}

func TestTrim(t *testing.T) {
	if got := trim("Limpieza", 20); got != "Limpieza" {
		t.Fatalf("unexpected %q", got)
	}
	if got := trim("Ortodoncia interceptiva", 10); len([]rune(got)) != 10 {
		t.Fatalf("unexpected %q", got)
	}
}

package gofpdf

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/jung-kurt/gofpdf"

	"dentalstudio/internal/core"
	"dentalstudio/internal/pdf"
)

var _ pdf.Exporter = (*Exporter)(nil)

type Exporter struct {
	businessName string
	compress     bool
	now          func() time.Time
}

func New(businessName string) *Exporter {
	return &Exporter{businessName: businessName, compress: true, now: time.Now}
}

func (e *Exporter) Export(s core.QuotationSummary) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(e.compress)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(tr("Cotización "+s.ID), false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.Cell(0, 10, tr(e.businessName))
	doc.Ln(9)

	doc.SetFont("Helvetica", "", 11)
	doc.Cell(0, 6, tr(fmt.Sprintf("Cotización %s - %s", s.ID, s.Date.Format("02/01/2006"))))
	doc.Ln(6)
	doc.Cell(0, 6, tr(fmt.Sprintf("Cliente: %s %s", s.ClientName, s.Phone)))
	doc.Ln(6)
	doc.Cell(0, 6, tr("Estado: "+string(s.Status)))
	doc.Ln(10)

	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(65, 7, tr("Servicio"), "B", 0, "", false, 0, "")
	doc.CellFormat(45, 7, tr("Especialidad"), "B", 0, "", false, 0, "")
	doc.CellFormat(15, 7, tr("Cant."), "B", 0, "R", false, 0, "")
	doc.CellFormat(30, 7, tr("Precio"), "B", 0, "R", false, 0, "")
	doc.CellFormat(30, 7, tr("Subtotal"), "B", 1, "R", false, 0, "")

	doc.SetFont("Helvetica", "", 10)
	for _, line := range s.Services {
		doc.CellFormat(65, 6, tr(trim(line.ServiceName, 38)), "", 0, "", false, 0, "")
		doc.CellFormat(45, 6, tr(trim(line.SpecialtyName, 26)), "", 0, "", false, 0, "")
		doc.CellFormat(15, 6, fmt.Sprintf("%d", line.Quantity), "", 0, "R", false, 0, "")
		doc.CellFormat(30, 6, core.FormatAmount(line.UnitPrice), "", 0, "R", false, 0, "")
		doc.CellFormat(30, 6, core.FormatAmount(line.Subtotal), "", 1, "R", false, 0, "")
	}

	doc.Ln(4)
	doc.SetFont("Helvetica", "B", 11)
	totals := []struct {
		label  string
		amount int64
	}{
		{"Total", s.Total},
		{"Pagado", s.Paid},
		{"Pendiente", s.Pending},
	}
	for _, t := range totals {
		doc.CellFormat(155, 7, tr(t.label), "", 0, "R", false, 0, "")
		doc.CellFormat(30, 7, core.FormatAmount(t.amount), "", 1, "R", false, 0, "")
	}

	if len(s.Payments) > 0 {
		doc.Ln(6)
		doc.SetFont("Helvetica", "B", 11)
		doc.Cell(0, 7, tr("Pagos"))
		doc.Ln(8)
		doc.SetFont("Helvetica", "", 10)
		for _, p := range s.Payments {
			doc.CellFormat(40, 6, p.Date.Format("02/01/2006"), "", 0, "", false, 0, "")
			doc.CellFormat(40, 6, tr(string(p.PaymentMethod)), "", 0, "", false, 0, "")
			doc.CellFormat(30, 6, core.FormatAmount(p.Amount), "", 1, "R", false, 0, "")
		}
	}

	doc.Ln(8)
	doc.SetFont("Helvetica", "", 8)
	doc.Cell(0, 5, tr("Generado: "+e.now().Format("02/01/2006 15:04")))

	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("render quotation %s: %w", s.ID, err)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		slog.Error("quotation pdf output failed", "quotation_id", s.ID, "error", err)
		return nil, err
	}
	return buf.Bytes(), nil
}

func trim(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

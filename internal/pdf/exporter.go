package pdf

import "dentalstudio/internal/core"

// Exporter renders a quotation summary as a PDF document.
type Exporter interface {
	Export(s core.QuotationSummary) ([]byte, error)
}

// FileName is the download name of a quotation PDF.
func FileName(s core.QuotationSummary) string {
	return "cotizacion-" + s.ID + ".pdf"
}

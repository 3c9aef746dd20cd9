package http

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dentalstudio/internal/core"
	"dentalstudio/internal/log"
	"dentalstudio/internal/pdf"
	"dentalstudio/internal/services"
)

// quotationResponse is a stored quotation plus its headline figures.
type quotationResponse struct {
	core.Quotation
	Total   int64                `json:"total"`
	Paid    int64                `json:"paid"`
	Pending int64                `json:"pending"`
	Status  core.QuotationStatus `json:"status"`
}

func newQuotationResponse(q core.Quotation) quotationResponse {
	if q.Services == nil {
		q.Services = []core.ServiceLine{}
	}
	if q.Payments == nil {
		q.Payments = []core.Payment{}
	}
	return quotationResponse{
		Quotation: q,
		Total:     q.Total(),
		Paid:      core.PaidAmount(q),
		Pending:   core.PendingAmount(q),
		Status:    q.Status(),
	}
}

type cachedPDF struct {
	version string
	doc     []byte
}

// summaryVersion fingerprints the data a PDF is rendered from.
func summaryVersion(sum core.QuotationSummary) string {
	raw, err := json.Marshal(sum)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}

// invalidate drops cached artifacts of a quotation after a mutation.
func (s *Server) invalidate(id string) {
	s.pdfCache.Delete(id)
}

func (s *Server) handleCreateQuotation(w http.ResponseWriter, r *http.Request) {
	var req createQuotationRequest
	if !s.decode(w, r, &req) {
		return
	}
	lines := make([]services.ServiceLineInput, 0, len(req.Services))
	for _, l := range req.Services {
		lines = append(lines, l.input())
	}
	q, err := s.svc.CreateQuotation(r.Context(), req.ClientName, req.Phone, lines)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Quotation created",
		log.NewFields().WithQuotation(q.ID, string(q.Status())).WithOperation(log.OpCreate).ToSlice()...)
	w.Header().Set("Location", "/api/quotations/"+q.ID)
	writeJSON(w, http.StatusCreated, newQuotationResponse(q))
}

func (s *Server) handleListQuotations(w http.ResponseWriter, r *http.Request) {
	quotations, err := s.svc.ListQuotations(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]quotationResponse, 0, len(quotations))
	for _, q := range quotations {
		out = append(out, newQuotationResponse(q))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetQuotation(w http.ResponseWriter, r *http.Request) {
	q, err := s.svc.GetQuotation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuotationResponse(q))
}

func (s *Server) handleDeleteQuotation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.DeleteQuotation(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidate(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddService(w http.ResponseWriter, r *http.Request) {
	var req serviceLineRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	q, err := s.svc.AddServiceLine(r.Context(), id, req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidate(id)
	writeJSON(w, http.StatusCreated, newQuotationResponse(q))
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	idx, ok := lineIndex(w, r)
	if !ok {
		return
	}
	var req updateServiceRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	q, err := s.svc.UpdateServiceLine(r.Context(), id, idx, services.ServiceLineUpdate{UnitPrice: req.UnitPrice, Quantity: req.Quantity})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidate(id)
	writeJSON(w, http.StatusOK, newQuotationResponse(q))
}

func (s *Server) handleRemoveService(w http.ResponseWriter, r *http.Request) {
	idx, ok := lineIndex(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	q, err := s.svc.RemoveServiceLine(r.Context(), id, idx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidate(id)
	writeJSON(w, http.StatusOK, newQuotationResponse(q))
}

func (s *Server) handleUpdateCommission(w http.ResponseWriter, r *http.Request) {
	idx, ok := lineIndex(w, r)
	if !ok {
		return
	}
	var req commissionRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	q, err := s.svc.UpdateCommission(r.Context(), id, idx, req.update(chi.URLParam(r, "doctorId")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidate(id)
	writeJSON(w, http.StatusOK, newQuotationResponse(q))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	sum, err := s.svc.Summary(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// A render that raced a mutation may have been cached after its
	// invalidation; the version check keeps it from being served.
	version := summaryVersion(sum)
	cached, found := s.pdfCache.Get(id)
	doc := cached.doc
	if !found || cached.version != version {
		doc, err = s.exporter.Export(sum)
		if err != nil {
			log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "PDF export failed", err, log.OpRender,
				log.NewFields().WithQuotation(id, string(sum.Status)))
			writeError(w, http.StatusInternalServerError, "Internal", "", "pdf export failed")
			return
		}
		s.pdfCache.Set(id, cachedPDF{version: version, doc: doc})
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pdf.FileName(sum)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

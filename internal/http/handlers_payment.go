package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dentalstudio/internal/core"
)

type paymentResponse struct {
	Payment   core.Payment      `json:"payment"`
	Quotation quotationResponse `json:"quotation"`
}

func (s *Server) handleRegisterPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	p, q, err := s.svc.RegisterPayment(r.Context(), id, req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidate(id)
	writeJSON(w, http.StatusCreated, paymentResponse{Payment: p, Quotation: newQuotationResponse(q)})
}

// handleSuggestSplit proposes per-doctor commissions for ?amount=N.
func (s *Server) handleSuggestSplit(w http.ResponseWriter, r *http.Request) {
	amount, err := core.ParseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "", "amount query parameter must be a non-negative number")
		return
	}
	split, err := s.svc.SuggestSplit(r.Context(), chi.URLParam(r, "id"), amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"amount":            amount,
		"doctorCommissions": split,
	})
}

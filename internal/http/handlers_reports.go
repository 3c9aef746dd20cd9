package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dentalstudio/internal/core"
)

func (s *Server) handleListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := s.svc.Doctors(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doctors)
}

func (s *Server) handleListSpecialties(w http.ResponseWriter, r *http.Request) {
	specialties, err := s.svc.Specialties(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, specialties)
}

// handleEligibleDoctors lists the doctors that earn commission on services
// of a specialty.
func (s *Server) handleEligibleDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := s.svc.EligibleDoctors(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doctors)
}

func (s *Server) handleCommissionReport(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.CommissionReport(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleExpenseReport(w http.ResponseWriter, r *http.Request) {
	groups, err := s.svc.CommissionExpenseReport(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleQuotationReport(w http.ResponseWriter, r *http.Request) {
	status := core.QuotationStatus(r.URL.Query().Get("status"))
	switch status {
	case "", core.StatusPendiente, core.StatusCompletado:
	default:
		writeError(w, http.StatusBadRequest, "BadRequest", "", "status must be pendiente or completado")
		return
	}
	summaries, err := s.svc.QuotationsByStatus(r.Context(), status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleCashBox totals a day's movements; the date defaults to today (UTC).
func (s *Server) handleCashBox(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("date")
	if day == "" {
		day = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "", "date must be YYYY-MM-DD")
		return
	}
	box, err := s.svc.CashBoxReport(r.Context(), day)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, box)
}

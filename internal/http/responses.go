package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"dentalstudio/internal/core"
	"dentalstudio/internal/log"
	"dentalstudio/internal/services"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error    string `json:"error"`
	DoctorID string `json:"doctorId,omitempty"`
	Message  string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, doctorID, message string) {
	writeJSON(w, status, errorBody{Error: kind, DoctorID: doctorID, Message: message})
}

// writeServiceError maps service and ledger errors to responses: rejections
// are 422 with their kind, missing entities 404, anything else 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := core.AsValidationError(err); ok {
		writeError(w, http.StatusUnprocessableEntity, ve.Kind(), ve.DoctorID, ve.Error())
		return
	}
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NotFound", "", err.Error())
		return
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.FieldError, err,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusInternalServerError, "Internal", "", "internal error")
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"dentalstudio/internal/core"
	"dentalstudio/internal/services"
)

const maxBodyBytes = 1 << 20

// Request bodies. The validator checks shape only; business rules such as
// positive amounts or known payment methods are left to the ledger so they
// come back as typed rejections.
type (
	serviceLineRequest struct {
		SpecialtyID string `json:"specialtyId" validate:"required,max=64"`
		ServiceID   string `json:"serviceId" validate:"required,max=64"`
		Quantity    int    `json:"quantity"`
		UnitPrice   *int64 `json:"unitPrice"`
	}

	createQuotationRequest struct {
		ClientName string               `json:"clientName" validate:"max=200"`
		Phone      string               `json:"phone" validate:"max=40"`
		Services   []serviceLineRequest `json:"services" validate:"max=100,dive"`
	}

	updateServiceRequest struct {
		UnitPrice *int64 `json:"unitPrice" validate:"required_without=Quantity"`
		Quantity  *int   `json:"quantity" validate:"required_without=UnitPrice"`
	}

	// commissionRequest carries the value matching mode: percentage for
	// percentage mode, amount for fixedAmount. Omitting it only switches
	// the mode.
	commissionRequest struct {
		Mode       core.CommissionMode `json:"mode" validate:"required"`
		Percentage *int64              `json:"percentage"`
		Amount     *int64              `json:"amount"`
	}

	paymentRequest struct {
		Amount            int64              `json:"amount"`
		PaymentMethod     core.PaymentMethod `json:"paymentMethod"`
		CashAmount        int64              `json:"cashAmount"`
		QRAmount          int64              `json:"qrAmount"`
		DoctorCommissions map[string]int64   `json:"doctorCommissions" validate:"dive,keys,required,max=64,endkeys"`
	}
)

func (r serviceLineRequest) input() services.ServiceLineInput {
	return services.ServiceLineInput{
		SpecialtyID: r.SpecialtyID,
		ServiceID:   r.ServiceID,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
	}
}

func (r commissionRequest) update(doctorID string) services.CommissionUpdate {
	upd := services.CommissionUpdate{DoctorID: doctorID, Mode: r.Mode}
	switch r.Mode {
	case core.ModePercentage:
		upd.Value = r.Percentage
	case core.ModeFixedAmount:
		upd.Value = r.Amount
	}
	return upd
}

func (r paymentRequest) input() services.PaymentInput {
	return services.PaymentInput{
		Amount:            r.Amount,
		PaymentMethod:     r.PaymentMethod,
		CashAmount:        r.CashAmount,
		QRAmount:          r.QRAmount,
		DoctorCommissions: r.DoctorCommissions,
	}
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. On failure it writes
// a 400 response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "", "malformed JSON body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// drop the struct type name in front of the JSON path
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// lineIndex parses the {index} path parameter.
func lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 {
		writeError(w, http.StatusBadRequest, "BadRequest", "", "service index must be a non-negative integer")
		return 0, false
	}
	return idx, true
}

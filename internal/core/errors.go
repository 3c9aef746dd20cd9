package core

import (
	"errors"
	"fmt"
)

// Ledger rejections. Callers match them with errors.Is; the concrete value
// returned is always a *ValidationError wrapping one of these.
var (
	ErrInvalidAmount                  = errors.New("invalid amount")
	ErrExceedsPendingTotal            = errors.New("payment exceeds pending total")
	ErrMixedAmountMismatch            = errors.New("cash and qr amounts do not add up to the payment amount")
	ErrCommissionExceedsPayment       = errors.New("doctor commissions exceed the payment amount")
	ErrCommissionExceedsDoctorPending = errors.New("commission exceeds the doctor's pending commission")
	ErrPercentageOutOfRange           = errors.New("percentage must be between 0 and 100")
	ErrAmountExceedsServiceSubtotal   = errors.New("commission amount exceeds the service subtotal")
	ErrInvalidQuantity                = errors.New("quantity must be at least 1")
	ErrUnknownPaymentMethod           = errors.New("unknown payment method")
	ErrUnknownCommissionMode          = errors.New("unknown commission mode")
	ErrEmptyClientName                = errors.New("empty client name")
	ErrServiceNotFound                = errors.New("service line not found")
	ErrDuplicateAllocation            = errors.New("doctor already has an allocation on this service")
)

var errorKinds = map[error]string{
	ErrInvalidAmount:                  "InvalidAmount",
	ErrExceedsPendingTotal:            "ExceedsPendingTotal",
	ErrMixedAmountMismatch:            "MixedAmountMismatch",
	ErrCommissionExceedsPayment:       "CommissionExceedsPayment",
	ErrCommissionExceedsDoctorPending: "CommissionExceedsDoctorPending",
	ErrPercentageOutOfRange:           "PercentageOutOfRange",
	ErrAmountExceedsServiceSubtotal:   "AmountExceedsServiceSubtotal",
	ErrInvalidQuantity:                "InvalidQuantity",
	ErrUnknownPaymentMethod:           "UnknownPaymentMethod",
	ErrUnknownCommissionMode:          "UnknownCommissionMode",
	ErrEmptyClientName:                "EmptyClientName",
	ErrServiceNotFound:                "ServiceNotFound",
	ErrDuplicateAllocation:            "DuplicateAllocation",
}

// ValidationError is the typed rejection returned by every ledger operation.
// DoctorID is set when the rule is scoped to a single doctor.
type ValidationError struct {
	Err      error
	DoctorID string
	Details  string
}

func (e *ValidationError) Error() string {
	msg := e.Err.Error()
	if e.DoctorID != "" {
		msg = fmt.Sprintf("%s (doctor %s)", msg, e.DoctorID)
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Kind returns the stable rule name, e.g. "MixedAmountMismatch".
func (e *ValidationError) Kind() string {
	if k, ok := errorKinds[e.Err]; ok {
		return k
	}
	return "ValidationError"
}

func reject(err error, format string, args ...any) *ValidationError {
	return &ValidationError{Err: err, Details: fmt.Sprintf(format, args...)}
}

func rejectDoctor(err error, doctorID string, format string, args ...any) *ValidationError {
	return &ValidationError{Err: err, DoctorID: doctorID, Details: fmt.Sprintf(format, args...)}
}

// AsValidationError reports whether err carries a ledger rejection.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

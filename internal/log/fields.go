package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorKind     = "error_kind"
	FieldOperation     = "operation"
	FieldQuotationID   = "quotation_id"
	FieldPaymentID     = "payment_id"
	FieldDoctorID      = "doctor_id"
	FieldAmount        = "amount"
	FieldPaymentMethod = "payment_method"
	FieldStatus        = "status"
	FieldSheetsRef     = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentQuotation = "quotation"
	ComponentWorker    = "worker"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpPay      = "pay"
	OpRender   = "render"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithQuotation adds the quotation id and, when known, its derived status.
func (f LogFields) WithQuotation(id, status string) LogFields {
	f[FieldQuotationID] = id
	if status != "" {
		f[FieldStatus] = status
	}
	return f
}

// WithPayment adds payment fields.
func (f LogFields) WithPayment(id string, amount int64, method string) LogFields {
	f[FieldPaymentID] = id
	f[FieldAmount] = amount
	f[FieldPaymentMethod] = method
	return f
}

// WithRejection adds the kind of a ledger rejection and the doctor it names.
func (f LogFields) WithRejection(kind, doctorID string) LogFields {
	f[FieldErrorKind] = kind
	if doctorID != "" {
		f[FieldDoctorID] = doctorID
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

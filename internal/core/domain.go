package core

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	Efectivo PaymentMethod = "Efectivo"
	QR       PaymentMethod = "QR"
	Mixto    PaymentMethod = "Mixto"
)

const (
	ModePercentage  CommissionMode = "percentage"
	ModeFixedAmount CommissionMode = "fixedAmount"
)

const (
	StatusPendiente  QuotationStatus = "pendiente"
	StatusCompletado QuotationStatus = "completado"
)

type (
	PaymentMethod   string
	CommissionMode  string
	QuotationStatus string

	// CommissionValue is what the user entered for a commission: either a
	// percentage of the service subtotal or a fixed amount. The other
	// representation is always derived from it.
	CommissionValue struct {
		Mode  CommissionMode
		Value int64
	}

	// CommissionAllocation is one doctor's share of one service line.
	// Amount and Percentage are resolved against the owning line's subtotal
	// and must only be changed through the allocation functions.
	CommissionAllocation struct {
		DoctorID   string
		Value      CommissionValue
		Amount     int64
		Percentage int64
	}

	ServiceLine struct {
		ServiceID     string                 `json:"serviceId"`
		ServiceName   string                 `json:"serviceName"`
		SpecialtyID   string                 `json:"specialtyId"`
		SpecialtyName string                 `json:"specialtyName"`
		UnitPrice     int64                  `json:"unitPrice"`
		Quantity      int                    `json:"quantity"`
		Commissions   []CommissionAllocation `json:"commissions"`
	}

	Payment struct {
		ID                string           `json:"id"`
		Date              time.Time        `json:"date"`
		Amount            int64            `json:"amount"`
		PaymentMethod     PaymentMethod    `json:"paymentMethod"`
		CashAmount        int64            `json:"cashAmount"`
		QRAmount          int64            `json:"qrAmount"`
		DoctorCommissions map[string]int64 `json:"doctorCommissions"`
	}

	// Quotation is owned by the caller; ledger functions never keep a
	// reference to it across calls.
	Quotation struct {
		ID         string        `json:"id"`
		ClientName string        `json:"clientName"`
		Phone      string        `json:"phone"`
		Date       time.Time     `json:"date"`
		Services   []ServiceLine `json:"services"`
		Payments   []Payment     `json:"payments"`
	}
)

// Percentage builds a percentage commission value.
func Percentage(pct int64) CommissionValue {
	return CommissionValue{Mode: ModePercentage, Value: pct}
}

// FixedAmount builds a fixed-amount commission value.
func FixedAmount(amount int64) CommissionValue {
	return CommissionValue{Mode: ModeFixedAmount, Value: amount}
}

// AmountFor resolves the value against a service subtotal.
func (v CommissionValue) AmountFor(subtotal int64) int64 {
	if v.Mode == ModePercentage {
		return percentOf(subtotal, v.Value)
	}
	return v.Value
}

// PercentageFor expresses the value as a percentage of a service subtotal.
func (v CommissionValue) PercentageFor(subtotal int64) int64 {
	if v.Mode == ModePercentage {
		return v.Value
	}
	return ratioPercent(v.Value, subtotal)
}

func (m CommissionMode) Valid() bool {
	return m == ModePercentage || m == ModeFixedAmount
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case Efectivo, QR, Mixto:
		return true
	}
	return false
}

// Mode returns the representation the allocation was last entered in.
func (a CommissionAllocation) Mode() CommissionMode {
	return a.Value.Mode
}

type allocationJSON struct {
	DoctorID   string         `json:"doctorId"`
	Mode       CommissionMode `json:"mode"`
	Percentage int64          `json:"percentage"`
	Amount     int64          `json:"amount"`
}

// MarshalJSON flattens the allocation into the API shape.
func (a CommissionAllocation) MarshalJSON() ([]byte, error) {
	return json.Marshal(allocationJSON{
		DoctorID:   a.DoctorID,
		Mode:       a.Value.Mode,
		Percentage: a.Percentage,
		Amount:     a.Amount,
	})
}

// UnmarshalJSON rebuilds the source value from the mode: the percentage
// field when mode is percentage, the amount field otherwise. Records without
// a mode are treated as percentage allocations.
func (a *CommissionAllocation) UnmarshalJSON(data []byte) error {
	var raw allocationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.DoctorID = raw.DoctorID
	a.Amount = raw.Amount
	a.Percentage = raw.Percentage
	switch raw.Mode {
	case ModeFixedAmount:
		a.Value = FixedAmount(raw.Amount)
	default:
		a.Value = Percentage(raw.Percentage)
	}
	return nil
}

// Subtotal returns round(unitPrice * quantity).
func (s ServiceLine) Subtotal() int64 {
	return ServiceSubtotal(s)
}

// CommissionTotal sums the resolved allocation amounts of the line.
func (s ServiceLine) CommissionTotal() int64 {
	var sum int64
	for _, c := range s.Commissions {
		sum += c.Amount
	}
	return sum
}

// Allocation returns the index of the doctor's allocation, or -1.
func (s ServiceLine) Allocation(doctorID string) int {
	for i, c := range s.Commissions {
		if c.DoctorID == doctorID {
			return i
		}
	}
	return -1
}

func (s ServiceLine) Validate() error {
	if s.Quantity < 1 {
		return reject(ErrInvalidQuantity, "service %s has quantity %d", s.ServiceID, s.Quantity)
	}
	if s.UnitPrice < 0 {
		return reject(ErrInvalidAmount, "service %s has negative unit price", s.ServiceID)
	}
	seen := make(map[string]struct{}, len(s.Commissions))
	for _, c := range s.Commissions {
		if _, dup := seen[c.DoctorID]; dup {
			return rejectDoctor(ErrDuplicateAllocation, c.DoctorID, "duplicate allocation on service %s", s.ServiceID)
		}
		seen[c.DoctorID] = struct{}{}
		if !c.Value.Mode.Valid() {
			return rejectDoctor(ErrUnknownCommissionMode, c.DoctorID, "mode %q", c.Value.Mode)
		}
		if c.Amount < 0 {
			return rejectDoctor(ErrInvalidAmount, c.DoctorID, "negative commission")
		}
		if c.Percentage < 0 || c.Percentage > 100 {
			return rejectDoctor(ErrPercentageOutOfRange, c.DoctorID, "percentage %d", c.Percentage)
		}
	}
	if total := s.CommissionTotal(); total > s.Subtotal() {
		return reject(ErrAmountExceedsServiceSubtotal, "commissions %d over subtotal %d on service %s", total, s.Subtotal(), s.ServiceID)
	}
	return nil
}

func (q Quotation) Validate() error {
	if strings.TrimSpace(q.ClientName) == "" {
		return reject(ErrEmptyClientName, "quotation %s", q.ID)
	}
	for _, s := range q.Services {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Total is the sum of the service subtotals.
func (q Quotation) Total() int64 {
	var total int64
	for _, s := range q.Services {
		total += s.Subtotal()
	}
	return total
}

// TotalCommissions is the sum of every allocation amount on the quotation.
func (q Quotation) TotalCommissions() int64 {
	var total int64
	for _, s := range q.Services {
		total += s.CommissionTotal()
	}
	return total
}

// TotalNet is what the clinic keeps once commissions are paid out.
func (q Quotation) TotalNet() int64 {
	return q.Total() - q.TotalCommissions()
}

// Status is derived from the pending amount; it is never stored.
func (q Quotation) Status() QuotationStatus {
	if PendingAmount(q) > 0 {
		return StatusPendiente
	}
	return StatusCompletado
}

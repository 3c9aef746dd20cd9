package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ServiceSubtotal returns round(unitPrice * quantity).
func ServiceSubtotal(s ServiceLine) int64 {
	if s.Quantity <= 0 || s.UnitPrice <= 0 {
		return 0
	}
	return roundHalfUp(decimal.NewFromInt(s.UnitPrice).Mul(decimal.NewFromInt(int64(s.Quantity))))
}

// DoctorCommissionTotals accumulates every allocation amount per doctor.
// Amounts are already rounded integers, so the sum of the map may drift from
// a total computed on unrounded values by up to one unit per allocation.
func DoctorCommissionTotals(q Quotation) map[string]int64 {
	totals := make(map[string]int64)
	for _, s := range q.Services {
		for _, c := range s.Commissions {
			totals[c.DoctorID] += c.Amount
		}
	}
	return totals
}

// DoctorCommissionPercentageOfTotal is informational only and must not be
// used to derive committed amounts.
func DoctorCommissionPercentageOfTotal(q Quotation, doctorID string) float64 {
	total := q.Total()
	if total == 0 {
		return 0
	}
	pct, _ := decimal.NewFromInt(DoctorCommissionTotals(q)[doctorID]).
		Mul(hundred).
		Div(decimal.NewFromInt(total)).
		Float64()
	return pct
}

func PaidAmount(q Quotation) int64 {
	var paid int64
	for _, p := range q.Payments {
		paid += p.Amount
	}
	return paid
}

// PendingAmount never goes below zero.
func PendingAmount(q Quotation) int64 {
	return max(0, q.Total()-PaidAmount(q))
}

func PaidCommissionsPerDoctor(q Quotation) map[string]int64 {
	paid := make(map[string]int64)
	for _, p := range q.Payments {
		for doctorID, amount := range p.DoctorCommissions {
			paid[doctorID] += amount
		}
	}
	return paid
}

// PendingCommissionsPerDoctor returns earned minus paid for every doctor with
// a nonzero earned total. Doctors who earned nothing are omitted.
func PendingCommissionsPerDoctor(q Quotation) map[string]int64 {
	paid := PaidCommissionsPerDoctor(q)
	pending := make(map[string]int64)
	for doctorID, earned := range DoctorCommissionTotals(q) {
		if earned == 0 {
			continue
		}
		pending[doctorID] = max(0, earned-paid[doctorID])
	}
	return pending
}

// SuggestPaymentSplit pre-fills the doctor commissions of a payment of the
// given amount, proportionally to each doctor's share of the quotation total.
// Each suggestion is clamped to the doctor's pending commission and the whole
// split never exceeds amount, so the result always passes ValidatePayment's
// commission rules.
func SuggestPaymentSplit(q Quotation, amount int64) map[string]int64 {
	split := make(map[string]int64)
	total := q.Total()
	if amount <= 0 || total == 0 {
		return split
	}
	earned := DoctorCommissionTotals(q)
	pending := PendingCommissionsPerDoctor(q)

	ids := make([]string, 0, len(pending))
	for doctorID, p := range pending {
		if p > 0 {
			ids = append(ids, doctorID)
		}
	}
	sort.Strings(ids)

	remaining := amount
	for _, doctorID := range ids {
		suggested := min(scale(amount, earned[doctorID], total), pending[doctorID], remaining)
		if suggested <= 0 {
			continue
		}
		split[doctorID] = suggested
		remaining -= suggested
	}
	return split
}

// DoctorCommission is one row of the per-doctor commission breakdown.
type DoctorCommission struct {
	DoctorID string `json:"doctorId"`
	Earned   int64  `json:"earned"`
	Paid     int64  `json:"paid"`
	Pending  int64  `json:"pending"`
}

type ServiceSummary struct {
	ServiceID       string `json:"serviceId"`
	ServiceName     string `json:"serviceName"`
	SpecialtyName   string `json:"specialtyName"`
	UnitPrice       int64  `json:"unitPrice"`
	Quantity        int    `json:"quantity"`
	Subtotal        int64  `json:"subtotal"`
	CommissionTotal int64  `json:"commissionTotal"`
}

// QuotationSummary is the fully computed view of a quotation, shared by the
// API and the PDF exporter.
type QuotationSummary struct {
	ID               string             `json:"id"`
	ClientName       string             `json:"clientName"`
	Phone            string             `json:"phone"`
	Date             time.Time          `json:"date"`
	Services         []ServiceSummary   `json:"services"`
	Payments         []Payment          `json:"payments"`
	Total            int64              `json:"total"`
	TotalCommissions int64              `json:"totalCommissions"`
	TotalNet         int64              `json:"totalNet"`
	Paid             int64              `json:"paid"`
	Pending          int64              `json:"pending"`
	Status           QuotationStatus    `json:"status"`
	Doctors          []DoctorCommission `json:"doctors"`
}

// Summarize computes every derived figure of q. Doctor rows are sorted by id.
func Summarize(q Quotation) QuotationSummary {
	sum := QuotationSummary{
		ID:               q.ID,
		ClientName:       q.ClientName,
		Phone:            q.Phone,
		Date:             q.Date,
		Services:         make([]ServiceSummary, 0, len(q.Services)),
		Payments:         append([]Payment(nil), q.Payments...),
		Total:            q.Total(),
		TotalCommissions: q.TotalCommissions(),
		TotalNet:         q.TotalNet(),
		Paid:             PaidAmount(q),
		Pending:          PendingAmount(q),
		Status:           q.Status(),
	}
	for _, s := range q.Services {
		sum.Services = append(sum.Services, ServiceSummary{
			ServiceID:       s.ServiceID,
			ServiceName:     s.ServiceName,
			SpecialtyName:   s.SpecialtyName,
			UnitPrice:       s.UnitPrice,
			Quantity:        s.Quantity,
			Subtotal:        s.Subtotal(),
			CommissionTotal: s.CommissionTotal(),
		})
	}

	earned := DoctorCommissionTotals(q)
	paid := PaidCommissionsPerDoctor(q)
	ids := make([]string, 0, len(earned))
	for doctorID := range earned {
		ids = append(ids, doctorID)
	}
	sort.Strings(ids)
	for _, doctorID := range ids {
		sum.Doctors = append(sum.Doctors, DoctorCommission{
			DoctorID: doctorID,
			Earned:   earned[doctorID],
			Paid:     paid[doctorID],
			Pending:  max(0, earned[doctorID]-paid[doctorID]),
		})
	}
	return sum
}

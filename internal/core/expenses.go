package core

import (
	"fmt"
	"sort"
	"time"
)

// CommissionExpense records a commission paid to a doctor out of a payment.
type CommissionExpense struct {
	ID          string    `json:"id"`
	QuotationID string    `json:"quotationId"`
	PaymentID   string    `json:"paymentId"`
	DoctorID    string    `json:"doctorId"`
	DoctorName  string    `json:"doctorName"`
	Amount      int64     `json:"amount"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// Validate reports expenses that cannot be exported.
func (e CommissionExpense) Validate() error {
	if e.ID == "" || e.DoctorID == "" {
		return reject(ErrInvalidAmount, "commission expense without id or doctor")
	}
	if e.Amount <= 0 {
		return rejectDoctor(ErrInvalidAmount, e.DoctorID, "commission expense %s amount %d", e.ID, e.Amount)
	}
	return nil
}

// CommissionExpenses derives one expense per doctor paid in p. names maps
// doctor ids to display names; unknown ids fall back to the id itself.
// The result is ordered by doctor id.
func CommissionExpenses(q Quotation, p Payment, names map[string]string) []CommissionExpense {
	ids := make([]string, 0, len(p.DoctorCommissions))
	for doctorID, amount := range p.DoctorCommissions {
		if amount > 0 {
			ids = append(ids, doctorID)
		}
	}
	sort.Strings(ids)

	out := make([]CommissionExpense, 0, len(ids))
	for _, doctorID := range ids {
		name := names[doctorID]
		if name == "" {
			name = doctorID
		}
		out = append(out, CommissionExpense{
			ID:          p.ID + "-" + doctorID,
			QuotationID: q.ID,
			PaymentID:   p.ID,
			DoctorID:    doctorID,
			DoctorName:  name,
			Amount:      p.DoctorCommissions[doctorID],
			Date:        p.Date,
			Description: fmt.Sprintf("Comisión %s - %s", name, q.ClientName),
		})
	}
	return out
}

// DoctorCommissionGroup totals the commission expenses of one doctor.
type DoctorCommissionGroup struct {
	DoctorID   string              `json:"doctorId"`
	DoctorName string              `json:"doctorName"`
	Total      int64               `json:"total"`
	Expenses   []CommissionExpense `json:"expenses"`
}

// GroupCommissionExpenses groups expenses by doctor. Groups are sorted by
// doctor id and keep the input order of their expenses.
func GroupCommissionExpenses(expenses []CommissionExpense) []DoctorCommissionGroup {
	index := make(map[string]int)
	var groups []DoctorCommissionGroup
	for _, e := range expenses {
		i, ok := index[e.DoctorID]
		if !ok {
			i = len(groups)
			index[e.DoctorID] = i
			groups = append(groups, DoctorCommissionGroup{DoctorID: e.DoctorID, DoctorName: e.DoctorName})
		}
		groups[i].Total += e.Amount
		groups[i].Expenses = append(groups[i].Expenses, e)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].DoctorID < groups[b].DoctorID })
	return groups
}

// PendingCommissionsReport sums the pending commission of every doctor across
// quotations, sorted by doctor id.
func PendingCommissionsReport(quotations []Quotation) []DoctorCommission {
	rows := make(map[string]*DoctorCommission)
	for _, q := range quotations {
		paid := PaidCommissionsPerDoctor(q)
		for doctorID, earned := range DoctorCommissionTotals(q) {
			r, ok := rows[doctorID]
			if !ok {
				r = &DoctorCommission{DoctorID: doctorID}
				rows[doctorID] = r
			}
			r.Earned += earned
			r.Paid += paid[doctorID]
			r.Pending += max(0, earned-paid[doctorID])
		}
	}
	out := make([]DoctorCommission, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].DoctorID < out[b].DoctorID })
	return out
}

package core

import (
	"sort"
	"time"
)

// ValidatePayment checks a candidate payment against q without modifying it.
// Rules are applied in a fixed order and the first violation is returned:
// positive amount, within the pending total, cash and qr reconciled, doctor
// commissions within the payment, and each doctor commission within that
// doctor's pending commission.
func ValidatePayment(q Quotation, p Payment) error {
	if p.Amount <= 0 {
		return reject(ErrInvalidAmount, "payment amount %d", p.Amount)
	}
	if pending := PendingAmount(q); p.Amount > pending {
		return reject(ErrExceedsPendingTotal, "amount %d, pending %d", p.Amount, pending)
	}
	if !p.PaymentMethod.Valid() {
		return reject(ErrUnknownPaymentMethod, "%q", p.PaymentMethod)
	}

	p = normalizeMethodAmounts(p)
	if p.CashAmount < 0 || p.QRAmount < 0 || p.CashAmount+p.QRAmount != p.Amount {
		return reject(ErrMixedAmountMismatch, "cash %d + qr %d != %d", p.CashAmount, p.QRAmount, p.Amount)
	}
	switch {
	case p.PaymentMethod == Efectivo && p.QRAmount != 0:
		return reject(ErrMixedAmountMismatch, "cash payment with qr amount %d", p.QRAmount)
	case p.PaymentMethod == QR && p.CashAmount != 0:
		return reject(ErrMixedAmountMismatch, "qr payment with cash amount %d", p.CashAmount)
	}

	doctorIDs := make([]string, 0, len(p.DoctorCommissions))
	var commissions int64
	for doctorID, amount := range p.DoctorCommissions {
		if amount < 0 {
			return rejectDoctor(ErrInvalidAmount, doctorID, "negative commission %d", amount)
		}
		commissions += amount
		doctorIDs = append(doctorIDs, doctorID)
	}
	if commissions > p.Amount {
		return reject(ErrCommissionExceedsPayment, "commissions %d, payment %d", commissions, p.Amount)
	}

	sort.Strings(doctorIDs)
	pending := PendingCommissionsPerDoctor(q)
	for _, doctorID := range doctorIDs {
		if amount := p.DoctorCommissions[doctorID]; amount > pending[doctorID] {
			return rejectDoctor(ErrCommissionExceedsDoctorPending, doctorID, "commission %d, pending %d", amount, pending[doctorID])
		}
	}
	return nil
}

// AppendPayment validates p and, on success, appends it to q. Single-method
// payments submitted without a breakdown get their cash or qr amount filled
// in. Zero doctor commissions are dropped. On error q is left untouched.
//
// The caller must serialize AppendPayment per quotation and assign the
// payment id and date.
func AppendPayment(q *Quotation, p Payment) error {
	if err := ValidatePayment(*q, p); err != nil {
		return err
	}
	p = normalizeMethodAmounts(p)
	commissions := make(map[string]int64, len(p.DoctorCommissions))
	for doctorID, amount := range p.DoctorCommissions {
		if amount > 0 {
			commissions[doctorID] = amount
		}
	}
	p.DoctorCommissions = commissions
	q.Payments = append(q.Payments, p)
	return nil
}

func normalizeMethodAmounts(p Payment) Payment {
	if p.CashAmount != 0 || p.QRAmount != 0 {
		return p
	}
	switch p.PaymentMethod {
	case Efectivo:
		p.CashAmount = p.Amount
	case QR:
		p.QRAmount = p.Amount
	}
	return p
}

// CashMovement is one cash-box entry produced by a payment.
type CashMovement struct {
	QuotationID string        `json:"quotationId"`
	PaymentID   string        `json:"paymentId"`
	Date        time.Time     `json:"date"`
	Method      PaymentMethod `json:"method"`
	Amount      int64         `json:"amount"`
	Description string        `json:"description"`
}

// CashMovements splits an accepted payment into cash-box entries, one per
// nonzero channel. Mixed payments yield an Efectivo and a QR entry.
func CashMovements(q Quotation, p Payment) []CashMovement {
	desc := "Pago cotización " + q.ClientName
	var out []CashMovement
	if p.CashAmount > 0 {
		out = append(out, CashMovement{QuotationID: q.ID, PaymentID: p.ID, Date: p.Date, Method: Efectivo, Amount: p.CashAmount, Description: desc})
	}
	if p.QRAmount > 0 {
		out = append(out, CashMovement{QuotationID: q.ID, PaymentID: p.ID, Date: p.Date, Method: QR, Amount: p.QRAmount, Description: desc})
	}
	return out
}

// CashBox totals the movements of a day by channel.
type CashBox struct {
	Date      string `json:"date"`
	Efectivo  int64  `json:"efectivo"`
	QR        int64  `json:"qr"`
	Total     int64  `json:"total"`
	Movements int    `json:"movements"`
}

func TallyCashBox(date string, movements []CashMovement) CashBox {
	box := CashBox{Date: date, Movements: len(movements)}
	for _, m := range movements {
		switch m.Method {
		case Efectivo:
			box.Efectivo += m.Amount
		case QR:
			box.QR += m.Amount
		}
		box.Total += m.Amount
	}
	return box
}

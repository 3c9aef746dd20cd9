package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"dentalstudio/internal/core"
)

// PendingReceipt identifies a payment whose receipt has not been produced yet.
type PendingReceipt struct {
	QuotationID string
	PaymentID   string
	Amount      int64
	Date        time.Time
}

// AppendPayment stores an accepted payment, its doctor commissions and the
// cash movements it produced in one transaction.
func (r *SQLiteRepository) AppendPayment(ctx context.Context, quotationID string, p core.Payment, moves []core.CashMovement) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var position int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE quotation_id = ?`, quotationID).Scan(&position); err != nil {
			return fmt.Errorf("count payments: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, quotation_id, position, date, amount, payment_method, cash_amount, qr_amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, quotationID, position, formatTime(p.Date), p.Amount, string(p.PaymentMethod), p.CashAmount, p.QRAmount)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		for doctorID, amount := range p.DoctorCommissions {
			_, err := tx.ExecContext(ctx, `INSERT INTO payment_commissions (payment_id, doctor_id, amount) VALUES (?, ?, ?)`,
				p.ID, doctorID, amount)
			if err != nil {
				return fmt.Errorf("insert payment commission %s: %w", doctorID, err)
			}
		}
		for _, m := range moves {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO cash_movements (quotation_id, payment_id, day, date, method, amount, description)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				m.QuotationID, m.PaymentID, m.Date.Format("2006-01-02"), formatTime(m.Date), string(m.Method), m.Amount, m.Description)
			if err != nil {
				return fmt.Errorf("insert cash movement: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Payment saved to SQLite",
		"quotation_id", quotationID,
		"payment_id", p.ID,
		"amount", p.Amount,
		"method", p.PaymentMethod)
	return nil
}

func loadPayments(ctx context.Context, db queryer, quotationID string) ([]core.Payment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, date, amount, payment_method, cash_amount, qr_amount
		FROM payments WHERE quotation_id = ? ORDER BY position`, quotationID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	var payments []core.Payment
	index := map[string]int{}
	for rows.Next() {
		var (
			p      core.Payment
			date   string
			method string
		)
		if err := rows.Scan(&p.ID, &date, &p.Amount, &method, &p.CashAmount, &p.QRAmount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Date = parseTime(date)
		p.PaymentMethod = core.PaymentMethod(method)
		p.DoctorCommissions = map[string]int64{}
		index[p.ID] = len(payments)
		payments = append(payments, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	if len(payments) == 0 {
		return nil, nil
	}

	rows, err = db.QueryContext(ctx, `
		SELECT pc.payment_id, pc.doctor_id, pc.amount
		FROM payment_commissions pc JOIN payments p ON p.id = pc.payment_id
		WHERE p.quotation_id = ?`, quotationID)
	if err != nil {
		return nil, fmt.Errorf("list payment commissions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var paymentID, doctorID string
		var amount int64
		if err := rows.Scan(&paymentID, &doctorID, &amount); err != nil {
			return nil, fmt.Errorf("scan payment commission: %w", err)
		}
		if i, ok := index[paymentID]; ok {
			payments[i].DoctorCommissions[doctorID] = amount
		}
	}
	return payments, rows.Err()
}

// CashMovementsOn returns the cash-box movements of a day (YYYY-MM-DD).
func (r *SQLiteRepository) CashMovementsOn(ctx context.Context, day string) ([]core.CashMovement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT quotation_id, payment_id, date, method, amount, description
		FROM cash_movements WHERE day = ? ORDER BY id`, day)
	if err != nil {
		return nil, fmt.Errorf("list cash movements: %w", err)
	}
	defer rows.Close()
	var out []core.CashMovement
	for rows.Next() {
		var m core.CashMovement
		var date, method string
		if err := rows.Scan(&m.QuotationID, &m.PaymentID, &date, &method, &m.Amount, &m.Description); err != nil {
			return nil, fmt.Errorf("scan cash movement: %w", err)
		}
		m.Date = parseTime(date)
		m.Method = core.PaymentMethod(method)
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetPendingReceipts returns up to limit payments still waiting for a receipt,
// oldest first. Payments marked with an error are retried too.
func (r *SQLiteRepository) GetPendingReceipts(ctx context.Context, limit int) ([]PendingReceipt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT quotation_id, id, amount, date FROM payments
		WHERE receipt_status IN ('pending', 'error')
		ORDER BY date LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending receipts: %w", err)
	}
	defer rows.Close()
	var out []PendingReceipt
	for rows.Next() {
		var p PendingReceipt
		var date string
		if err := rows.Scan(&p.QuotationID, &p.PaymentID, &p.Amount, &date); err != nil {
			return nil, fmt.Errorf("scan pending receipt: %w", err)
		}
		p.Date = parseTime(date)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkReceiptDone records that the receipt of a payment was produced.
func (r *SQLiteRepository) MarkReceiptDone(ctx context.Context, paymentID string) error {
	return r.setReceiptStatus(ctx, paymentID, "done")
}

// MarkReceiptError flags a payment whose receipt failed; it stays eligible
// for the next pending sweep.
func (r *SQLiteRepository) MarkReceiptError(ctx context.Context, paymentID string) error {
	if err := r.setReceiptStatus(ctx, paymentID, "error"); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Payment receipt marked with error", "payment_id", paymentID)
	return nil
}

func (r *SQLiteRepository) setReceiptStatus(ctx context.Context, paymentID, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE payments SET receipt_status = ?, receipt_at = ? WHERE id = ?`,
		status, formatTime(time.Now()), paymentID)
	if err != nil {
		return fmt.Errorf("mark receipt %s: %w", status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

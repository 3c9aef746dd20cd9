package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"dentalstudio/internal/core"
)

// SaveCommissionExpenses stores expenses, ignoring ids already present so a
// redelivered payment event does not duplicate them. Returns how many were new.
func (r *SQLiteRepository) SaveCommissionExpenses(ctx context.Context, expenses []core.CommissionExpense) (int, error) {
	var inserted int
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range expenses {
			res, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO commission_expenses (id, quotation_id, payment_id, doctor_id, doctor_name, amount, date, description)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.QuotationID, e.PaymentID, e.DoctorID, e.DoctorName, e.Amount, formatTime(e.Date), e.Description)
			if err != nil {
				return fmt.Errorf("insert commission expense %s: %w", e.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	return inserted, err
}

// ListCommissionExpenses returns every recorded commission expense in date order.
func (r *SQLiteRepository) ListCommissionExpenses(ctx context.Context) ([]core.CommissionExpense, error) {
	return r.queryExpenses(ctx, `
		SELECT id, quotation_id, payment_id, doctor_id, doctor_name, amount, date, description
		FROM commission_expenses ORDER BY date, id`)
}

// GetPendingSyncExpenses returns expenses not yet exported to the sheet,
// including those whose last export failed.
func (r *SQLiteRepository) GetPendingSyncExpenses(ctx context.Context, limit int) ([]core.CommissionExpense, error) {
	return r.queryExpenses(ctx, `
		SELECT id, quotation_id, payment_id, doctor_id, doctor_name, amount, date, description
		FROM commission_expenses WHERE sync_status IN ('pending', 'error')
		ORDER BY date, id LIMIT ?`, limit)
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.CommissionExpense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query commission expenses: %w", err)
	}
	defer rows.Close()
	var out []core.CommissionExpense
	for rows.Next() {
		var e core.CommissionExpense
		var date string
		if err := rows.Scan(&e.ID, &e.QuotationID, &e.PaymentID, &e.DoctorID, &e.DoctorName, &e.Amount, &date, &e.Description); err != nil {
			return nil, fmt.Errorf("scan commission expense: %w", err)
		}
		e.Date = parseTime(date)
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkExpenseSynced records the sheet row an expense was exported to.
func (r *SQLiteRepository) MarkExpenseSynced(ctx context.Context, id, rowRef string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE commission_expenses SET sync_status = 'synced', sheet_row = ?, synced_at = ? WHERE id = ?`,
		rowRef, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Commission expense marked as synced", "id", id, "row", rowRef)
	return nil
}

func (r *SQLiteRepository) MarkExpenseSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE commission_expenses SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	slog.WarnContext(ctx, "Commission expense marked with sync error", "id", id)
	return nil
}

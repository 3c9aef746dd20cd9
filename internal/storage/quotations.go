package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"dentalstudio/internal/core"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SaveQuotation upserts the quotation header and replaces its service lines
// and allocations. Payments are append-only and never touched here.
func (r *SQLiteRepository) SaveQuotation(ctx context.Context, q core.Quotation) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO quotations (id, client_name, phone, date)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				client_name = excluded.client_name,
				phone = excluded.phone,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
			q.ID, q.ClientName, q.Phone, formatTime(q.Date))
		if err != nil {
			return fmt.Errorf("upsert quotation: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM service_lines WHERE quotation_id = ?`, q.ID); err != nil {
			return fmt.Errorf("clear service lines: %w", err)
		}
		for i, s := range q.Services {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO service_lines (quotation_id, position, service_id, service_name, specialty_id, specialty_name, unit_price, quantity)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				q.ID, i, s.ServiceID, s.ServiceName, s.SpecialtyID, s.SpecialtyName, s.UnitPrice, s.Quantity)
			if err != nil {
				return fmt.Errorf("insert service line %d: %w", i, err)
			}
			for j, c := range s.Commissions {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO commission_allocations (quotation_id, line_position, position, doctor_id, mode, value, amount, percentage)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					q.ID, i, j, c.DoctorID, string(c.Value.Mode), c.Value.Value, c.Amount, c.Percentage)
				if err != nil {
					return fmt.Errorf("insert allocation %d/%s: %w", i, c.DoctorID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "Quotation saved", "quotation_id", q.ID, "services", len(q.Services))
	return nil
}

// GetQuotation loads a quotation with its lines, allocations and payments.
func (r *SQLiteRepository) GetQuotation(ctx context.Context, id string) (core.Quotation, error) {
	return loadQuotation(ctx, r.db, id)
}

func loadQuotation(ctx context.Context, db queryer, id string) (core.Quotation, error) {
	var q core.Quotation
	var date string
	err := db.QueryRowContext(ctx, `SELECT id, client_name, phone, date FROM quotations WHERE id = ?`, id).
		Scan(&q.ID, &q.ClientName, &q.Phone, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Quotation{}, ErrNotFound
	}
	if err != nil {
		return core.Quotation{}, fmt.Errorf("get quotation %s: %w", id, err)
	}
	q.Date = parseTime(date)

	if q.Services, err = loadServiceLines(ctx, db, id); err != nil {
		return core.Quotation{}, err
	}
	if q.Payments, err = loadPayments(ctx, db, id); err != nil {
		return core.Quotation{}, err
	}
	return q, nil
}

func loadServiceLines(ctx context.Context, db queryer, quotationID string) ([]core.ServiceLine, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT service_id, service_name, specialty_id, specialty_name, unit_price, quantity
		FROM service_lines WHERE quotation_id = ? ORDER BY position`, quotationID)
	if err != nil {
		return nil, fmt.Errorf("list service lines: %w", err)
	}
	var lines []core.ServiceLine
	for rows.Next() {
		var s core.ServiceLine
		if err := rows.Scan(&s.ServiceID, &s.ServiceName, &s.SpecialtyID, &s.SpecialtyName, &s.UnitPrice, &s.Quantity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan service line: %w", err)
		}
		lines = append(lines, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service lines: %w", err)
	}

	rows, err = db.QueryContext(ctx, `
		SELECT line_position, doctor_id, mode, value, amount, percentage
		FROM commission_allocations WHERE quotation_id = ? ORDER BY line_position, position`, quotationID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pos  int
			mode string
			c    core.CommissionAllocation
		)
		if err := rows.Scan(&pos, &c.DoctorID, &mode, &c.Value.Value, &c.Amount, &c.Percentage); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		c.Value.Mode = core.CommissionMode(mode)
		if pos < 0 || pos >= len(lines) {
			continue
		}
		lines[pos].Commissions = append(lines[pos].Commissions, c)
	}
	return lines, rows.Err()
}

// ListQuotations returns every quotation, newest first.
func (r *SQLiteRepository) ListQuotations(ctx context.Context) ([]core.Quotation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM quotations ORDER BY date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list quotations: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan quotation id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]core.Quotation, 0, len(ids))
	for _, id := range ids {
		q, err := r.GetQuotation(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// DeleteQuotation removes a quotation with its lines and payments. Cash
// movements and commission expenses already recorded are kept.
func (r *SQLiteRepository) DeleteQuotation(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quotations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete quotation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Quotation deleted", "quotation_id", id)
	return nil
}

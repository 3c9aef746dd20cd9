package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"dentalstudio/internal/directory"
)

// ImportDirectory replaces the stored doctors and specialties with the
// content of src. Used to seed the database from JSON files.
func (r *SQLiteRepository) ImportDirectory(ctx context.Context, src directory.Directory) error {
	doctors, err := src.Doctors(ctx)
	if err != nil {
		return fmt.Errorf("read doctors: %w", err)
	}
	specialties, err := src.Specialties(ctx)
	if err != nil {
		return fmt.Errorf("read specialties: %w", err)
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{`DELETE FROM doctors`, `DELETE FROM specialties`} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("clear directory: %w", err)
			}
		}
		for _, sp := range specialties {
			if _, err := tx.ExecContext(ctx, `INSERT INTO specialties (id, name) VALUES (?, ?)`, sp.ID, sp.Name); err != nil {
				return fmt.Errorf("insert specialty %s: %w", sp.ID, err)
			}
			for i, svc := range sp.Services {
				_, err := tx.ExecContext(ctx, `INSERT INTO catalog_services (specialty_id, id, position, name, price) VALUES (?, ?, ?, ?, ?)`,
					sp.ID, svc.ID, i, svc.Name, svc.Price)
				if err != nil {
					return fmt.Errorf("insert service %s/%s: %w", sp.ID, svc.ID, err)
				}
			}
		}
		for i, d := range doctors {
			_, err := tx.ExecContext(ctx, `INSERT INTO doctors (id, position, name, payment_type, active) VALUES (?, ?, ?, ?, ?)`,
				d.ID, i, d.Name, string(d.PaymentType), d.Active)
			if err != nil {
				return fmt.Errorf("insert doctor %s: %w", d.ID, err)
			}
			for _, spID := range d.SpecialtyIDs {
				if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO doctor_specialties (doctor_id, specialty_id) VALUES (?, ?)`, d.ID, spID); err != nil {
					return fmt.Errorf("insert doctor specialty %s: %w", d.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Directory imported", "doctors", len(doctors), "specialties", len(specialties))
	return nil
}

// DirectoryEmpty reports whether no doctor has been stored yet.
func (r *SQLiteRepository) DirectoryEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&n); err != nil {
		return false, fmt.Errorf("count doctors: %w", err)
	}
	return n == 0, nil
}

func (r *SQLiteRepository) Doctors(ctx context.Context) ([]directory.Doctor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, payment_type, active FROM doctors ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	var doctors []directory.Doctor
	index := map[string]int{}
	for rows.Next() {
		var d directory.Doctor
		var pt string
		if err := rows.Scan(&d.ID, &d.Name, &pt, &d.Active); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		d.PaymentType = directory.PaymentType(pt)
		index[d.ID] = len(doctors)
		doctors = append(doctors, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `SELECT doctor_id, specialty_id FROM doctor_specialties ORDER BY doctor_id, specialty_id`)
	if err != nil {
		return nil, fmt.Errorf("list doctor specialties: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var doctorID, spID string
		if err := rows.Scan(&doctorID, &spID); err != nil {
			return nil, fmt.Errorf("scan doctor specialty: %w", err)
		}
		if i, ok := index[doctorID]; ok {
			doctors[i].SpecialtyIDs = append(doctors[i].SpecialtyIDs, spID)
		}
	}
	return doctors, rows.Err()
}

func (r *SQLiteRepository) Doctor(ctx context.Context, id string) (directory.Doctor, error) {
	doctors, err := r.Doctors(ctx)
	if err != nil {
		return directory.Doctor{}, err
	}
	for _, d := range doctors {
		if d.ID == id {
			return d, nil
		}
	}
	return directory.Doctor{}, directory.ErrNotFound
}

func (r *SQLiteRepository) Specialties(ctx context.Context) ([]directory.Specialty, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM specialties ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	var out []directory.Specialty
	index := map[string]int{}
	for rows.Next() {
		var sp directory.Specialty
		if err := rows.Scan(&sp.ID, &sp.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan specialty: %w", err)
		}
		index[sp.ID] = len(out)
		out = append(out, sp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `SELECT specialty_id, id, name, price FROM catalog_services ORDER BY specialty_id, position`)
	if err != nil {
		return nil, fmt.Errorf("list catalog services: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var spID string
		var svc directory.CatalogService
		if err := rows.Scan(&spID, &svc.ID, &svc.Name, &svc.Price); err != nil {
			return nil, fmt.Errorf("scan catalog service: %w", err)
		}
		if i, ok := index[spID]; ok {
			out[i].Services = append(out[i].Services, svc)
		}
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Specialty(ctx context.Context, id string) (directory.Specialty, error) {
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT name FROM specialties WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Specialty{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Specialty{}, fmt.Errorf("get specialty %s: %w", id, err)
	}
	all, err := r.Specialties(ctx)
	if err != nil {
		return directory.Specialty{}, err
	}
	for _, sp := range all {
		if sp.ID == id {
			return sp, nil
		}
	}
	return directory.Specialty{}, directory.ErrNotFound
}

// Package directory is the read-only doctor and specialty catalog the
// quotation ledger looks names and commission eligibility up in.
package directory

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"dentalstudio/internal/core"
)

const (
	Sueldo   PaymentType = "sueldo"
	Comision PaymentType = "comision"
)

var ErrNotFound = errors.New("directory: not found")

type (
	PaymentType string

	Doctor struct {
		ID           string      `json:"id"`
		Name         string      `json:"name"`
		SpecialtyIDs []string    `json:"specialtyIds"`
		PaymentType  PaymentType `json:"paymentType"`
		Active       bool        `json:"active"`
	}

	CatalogService struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Price int64  `json:"price"`
	}

	Specialty struct {
		ID       string           `json:"id"`
		Name     string           `json:"name"`
		Services []CatalogService `json:"services"`
	}
)

// Directory is the lookup port. Implementations return ErrNotFound for
// unknown ids.
type Directory interface {
	Doctor(ctx context.Context, id string) (Doctor, error)
	Doctors(ctx context.Context) ([]Doctor, error)
	Specialty(ctx context.Context, id string) (Specialty, error)
	Specialties(ctx context.Context) ([]Specialty, error)
}

// EarnsCommission reports whether d is auto-assigned commissions on services
// of the given specialty.
func (d Doctor) EarnsCommission(specialtyID string) bool {
	return d.Active && d.PaymentType == Comision && slices.Contains(d.SpecialtyIDs, specialtyID)
}

func (s Specialty) Service(id string) (CatalogService, bool) {
	for _, svc := range s.Services {
		if svc.ID == id {
			return svc, true
		}
	}
	return CatalogService{}, false
}

// EligibleCommissionDoctors lists the doctors of a specialty paid by commission.
func EligibleCommissionDoctors(ctx context.Context, dir Directory, specialtyID string) ([]Doctor, error) {
	doctors, err := dir.Doctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	var out []Doctor
	for _, d := range doctors {
		if d.EarnsCommission(specialtyID) {
			out = append(out, d)
		}
	}
	return out, nil
}

// NewServiceLine builds a quotation line from the catalog, priced at the
// catalog price, with a zero-percent allocation for every eligible doctor.
func NewServiceLine(ctx context.Context, dir Directory, specialtyID, serviceID string, quantity int) (core.ServiceLine, error) {
	if quantity < 1 {
		return core.ServiceLine{}, &core.ValidationError{Err: core.ErrInvalidQuantity, Details: fmt.Sprintf("quantity %d", quantity)}
	}
	sp, err := dir.Specialty(ctx, specialtyID)
	if err != nil {
		return core.ServiceLine{}, fmt.Errorf("specialty %s: %w", specialtyID, err)
	}
	svc, ok := sp.Service(serviceID)
	if !ok {
		return core.ServiceLine{}, fmt.Errorf("service %s in specialty %s: %w", serviceID, specialtyID, ErrNotFound)
	}
	line := core.ServiceLine{
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		SpecialtyID:   sp.ID,
		SpecialtyName: sp.Name,
		UnitPrice:     svc.Price,
		Quantity:      quantity,
	}
	doctors, err := EligibleCommissionDoctors(ctx, dir, specialtyID)
	if err != nil {
		return core.ServiceLine{}, err
	}
	ids := make([]string, 0, len(doctors))
	for _, d := range doctors {
		ids = append(ids, d.ID)
	}
	core.AssignDoctors(&line, ids...)
	return line, nil
}

// DoctorNames maps doctor ids to display names.
func DoctorNames(ctx context.Context, dir Directory) (map[string]string, error) {
	doctors, err := dir.Doctors(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(doctors))
	for _, d := range doctors {
		names[d.ID] = d.Name
	}
	return names, nil
}

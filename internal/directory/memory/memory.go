package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"dentalstudio/internal/directory"
)

// Store is an in-memory directory, used for local development and tests.
type Store struct {
	mu          sync.RWMutex
	doctors     []directory.Doctor
	specialties []directory.Specialty
}

func New(doctors []directory.Doctor, specialties []directory.Specialty) *Store {
	return &Store{doctors: dedupeDoctors(doctors), specialties: specialties}
}

// NewFromFiles loads seed_doctors.json and seed_specialties.json from base,
// falling back to a small default catalog when either file is missing or
// malformed.
func NewFromFiles(base string) *Store {
	var doctors []directory.Doctor
	var specialties []directory.Specialty
	if !readJSON(filepath.Join(base, "seed_doctors.json"), &doctors) || len(doctors) == 0 {
		doctors = defaultDoctors()
	}
	if !readJSON(filepath.Join(base, "seed_specialties.json"), &specialties) || len(specialties) == 0 {
		specialties = defaultSpecialties()
	}
	return New(doctors, specialties)
}

func (s *Store) Doctor(_ context.Context, id string) (directory.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.doctors {
		if d.ID == id {
			return d, nil
		}
	}
	return directory.Doctor{}, directory.ErrNotFound
}

func (s *Store) Doctors(_ context.Context) ([]directory.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]directory.Doctor(nil), s.doctors...), nil
}

func (s *Store) Specialty(_ context.Context, id string) (directory.Specialty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sp := range s.specialties {
		if sp.ID == id {
			return sp, nil
		}
	}
	return directory.Specialty{}, directory.ErrNotFound
}

func (s *Store) Specialties(_ context.Context) ([]directory.Specialty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]directory.Specialty(nil), s.specialties...), nil
}

func readJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// dedupeDoctors keeps the first record of each id, preserving order.
func dedupeDoctors(in []directory.Doctor) []directory.Doctor {
	seen := map[string]struct{}{}
	out := make([]directory.Doctor, 0, len(in))
	for _, d := range in {
		if d.ID == "" {
			continue
		}
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}

func defaultDoctors() []directory.Doctor {
	return []directory.Doctor{
		{ID: "doc-1", Name: "Dra. Valeria Rojas", SpecialtyIDs: []string{"odontologia-general", "ortodoncia"}, PaymentType: directory.Comision, Active: true},
		{ID: "doc-2", Name: "Dr. Martín Quispe", SpecialtyIDs: []string{"odontologia-general"}, PaymentType: directory.Sueldo, Active: true},
		{ID: "doc-3", Name: "Dra. Lucía Mamani", SpecialtyIDs: []string{"ortodoncia"}, PaymentType: directory.Comision, Active: true},
	}
}

func defaultSpecialties() []directory.Specialty {
	return []directory.Specialty{
		{ID: "odontologia-general", Name: "Odontología General", Services: []directory.CatalogService{
			{ID: "limpieza", Name: "Limpieza dental", Price: 150},
			{ID: "curacion", Name: "Curación", Price: 200},
		}},
		{ID: "ortodoncia", Name: "Ortodoncia", Services: []directory.CatalogService{
			{ID: "brackets", Name: "Brackets metálicos", Price: 3500},
			{ID: "control", Name: "Control mensual", Price: 250},
		}},
	}
}

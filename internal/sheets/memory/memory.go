package memory

import (
	"context"
	"fmt"
	"sync"

	"dentalstudio/internal/core"
	"dentalstudio/internal/sheets"
)

var _ sheets.CommissionExpenseWriter = (*Store)(nil)

// Store keeps exported commission expenses in process memory.
type Store struct {
	mu    sync.Mutex
	items []core.CommissionExpense
	refs  map[string]string
}

func New() *Store {
	return &Store{refs: make(map[string]string)}
}

// Append stores the expense and returns a synthetic row reference. Appending
// an expense id twice returns the first reference.
func (s *Store) Append(_ context.Context, e core.CommissionExpense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.refs[e.ID]; ok {
		return ref, nil
	}
	s.items = append(s.items, e)
	ref := fmt.Sprintf("mem:%d", len(s.items))
	s.refs[e.ID] = ref
	return ref, nil
}

// Expenses returns a copy of the stored expenses in append order.
func (s *Store) Expenses() []core.CommissionExpense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CommissionExpense(nil), s.items...)
}

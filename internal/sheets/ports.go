package sheets

import (
	"context"

	"dentalstudio/internal/core"
)

// Ports for outbound adapters.
type (
	// CommissionExpenseWriter appends a commission expense to the external
	// ledger and returns a reference to the written row.
	CommissionExpenseWriter interface {
		Append(ctx context.Context, e core.CommissionExpense) (rowRef string, err error)
	}
)

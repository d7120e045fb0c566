package balance

import (
	"context"
	"fmt"

	"hrleave/internal/domain/apperror"
)

// Store persists balance rows. When the store is bound to a transaction,
// GetOrCreate must lock the returned row until the transaction ends.
type Store interface {
	GetOrCreate(ctx context.Context, employeeID string, year int, defaults Totals) (EmployeeBalance, error)
	SaveUsed(ctx context.Context, b EmployeeBalance) error
}

type Ledger struct {
	Defaults Totals
}

func NewLedger(defaults Totals) Ledger {
	return Ledger{Defaults: defaults}
}

// CheckSufficient fails with InsufficientBalance when the requested amount
// exceeds what remains in the category's pool for the given year. Hour
// categories are measured in whole minutes.
func (l Ledger) CheckSufficient(ctx context.Context, store Store, employeeID string, category Category, days, minutes, year int) error {
	pool := PoolFor(category)
	if pool == PoolNone {
		return nil
	}
	b, err := store.GetOrCreate(ctx, employeeID, year, l.Defaults)
	if err != nil {
		return err
	}
	if requestedAmount(pool, days, minutes) > b.Remaining(pool) {
		return apperror.InsufficientBalance(string(category), b.Available(pool))
	}
	return nil
}

// Debit consumes the requested amount. Callers invoke it exactly once per
// request, inside the unit of work that marks the request approved.
func (l Ledger) Debit(ctx context.Context, store Store, employeeID string, category Category, days, minutes, year int) (EmployeeBalance, error) {
	pool := PoolFor(category)
	if pool == PoolNone {
		return EmployeeBalance{}, nil
	}
	if days < 0 || minutes < 0 {
		return EmployeeBalance{}, fmt.Errorf("debit: negative amount %d days / %d minutes", days, minutes)
	}

	b, err := store.GetOrCreate(ctx, employeeID, year, l.Defaults)
	if err != nil {
		return EmployeeBalance{}, err
	}
	if requestedAmount(pool, days, minutes) > b.Remaining(pool) {
		return EmployeeBalance{}, apperror.InsufficientBalance(string(category), b.Available(pool))
	}

	switch pool {
	case PoolVacation:
		b.VacationDaysUsed += days
	case PoolWFH:
		b.WFHDaysUsed += days
	case PoolLateEarly:
		b.LateEarlyMinutesUsed += minutes
	}

	if err := store.SaveUsed(ctx, b); err != nil {
		return EmployeeBalance{}, err
	}
	return b, nil
}

func requestedAmount(pool Pool, days, minutes int) int {
	if pool == PoolLateEarly {
		return minutes
	}
	return days
}

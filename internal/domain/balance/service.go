package balance

import (
	"context"
	"time"
)

type ReadStore interface {
	Store
	ListForEmployee(ctx context.Context, employeeID string) ([]EmployeeBalance, error)
}

type Service struct {
	Store  ReadStore
	Ledger Ledger
	Now    func() time.Time
}

func NewService(store ReadStore, ledger Ledger) *Service {
	return &Service{Store: store, Ledger: ledger, Now: time.Now}
}

// ForYear returns the balance for year, creating it with the ledger defaults
// on first use. A zero year means the current year.
func (s *Service) ForYear(ctx context.Context, employeeID string, year int) (EmployeeBalance, error) {
	if year == 0 {
		year = s.Now().Year()
	}
	return s.Store.GetOrCreate(ctx, employeeID, year, s.Ledger.Defaults)
}

// History returns every year opened for employeeID, newest first.
func (s *Service) History(ctx context.Context, employeeID string) ([]View, error) {
	balances, err := s.Store.ListForEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(balances))
	for _, b := range balances {
		out = append(out, b.View())
	}
	return out, nil
}

package memstore

import (
	"context"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/domain/balance"
	"hrleave/internal/domain/requests"
)

type tx struct {
	s        *Store
	releases []func()
	held     map[string]struct{}
	requests map[string]requests.Request
	balances map[balanceKey]balance.EmployeeBalance
}

// InTx runs fn as one unit of work. Rows are locked on first touch and
// held until fn returns; staged writes become visible only on success.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx requests.TxStore) error) error {
	t := &tx{
		s:        s,
		held:     map[string]struct{}{},
		requests: map[string]requests.Request{},
		balances: map[balanceKey]balance.EmployeeBalance{},
	}
	defer t.release()

	if err := fn(ctx, t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (t *tx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	release, err := t.s.locks.acquire(ctx, key)
	if err != nil {
		return err
	}
	t.held[key] = struct{}{}
	t.releases = append(t.releases, release)
	return nil
}

func (t *tx) release() {
	for i := len(t.releases) - 1; i >= 0; i-- {
		t.releases[i]()
	}
	t.releases = nil
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, r := range t.requests {
		t.s.requests[id] = r
	}
	for key, b := range t.balances {
		t.s.balances[key] = b
	}
}

func (t *tx) LockRequest(ctx context.Context, id string) (requests.Request, error) {
	if err := t.lock(ctx, "request:"+id); err != nil {
		return requests.Request{}, err
	}
	if r, ok := t.requests[id]; ok {
		return r, nil
	}
	t.s.mu.RLock()
	r, ok := t.s.requests[id]
	t.s.mu.RUnlock()
	if !ok {
		return requests.Request{}, apperror.NotFound("request")
	}
	return r, nil
}

func (t *tx) InsertRequest(ctx context.Context, r requests.Request) error {
	if err := t.lock(ctx, "request:"+r.ID); err != nil {
		return err
	}
	t.s.mu.RLock()
	_, exists := t.s.requests[r.ID]
	t.s.mu.RUnlock()
	if exists {
		return apperror.InvalidState("request already exists")
	}
	r.Employee, r.RequestType = nil, nil
	t.requests[r.ID] = r
	return nil
}

func (t *tx) UpdateRequest(_ context.Context, r requests.Request) error {
	if _, ok := t.held["request:"+r.ID]; !ok {
		return apperror.InvalidState("request must be locked before update")
	}
	r.Employee, r.RequestType = nil, nil
	r.ManagerApproval.Approver, r.HRApproval.Approver = nil, nil
	t.requests[r.ID] = r
	return nil
}

func (t *tx) GetOrCreate(ctx context.Context, employeeID string, year int, defaults balance.Totals) (balance.EmployeeBalance, error) {
	key := balanceKey{employeeID: employeeID, year: year}
	if err := t.lock(ctx, key.lockKey()); err != nil {
		return balance.EmployeeBalance{}, err
	}
	if b, ok := t.balances[key]; ok {
		return b, nil
	}
	t.s.mu.RLock()
	b, ok := t.s.balances[key]
	t.s.mu.RUnlock()
	if !ok {
		b = t.s.newBalance(employeeID, year, defaults)
		t.balances[key] = b
	}
	return b, nil
}

func (t *tx) SaveUsed(_ context.Context, b balance.EmployeeBalance) error {
	key := balanceKey{employeeID: b.EmployeeID, year: b.Year}
	if _, ok := t.held[key.lockKey()]; !ok {
		return apperror.InvalidState("balance must be locked before update")
	}
	current, ok := t.balances[key]
	if !ok {
		t.s.mu.RLock()
		current, ok = t.s.balances[key]
		t.s.mu.RUnlock()
		if !ok {
			return apperror.NotFound("balance")
		}
	}
	current.VacationDaysUsed = b.VacationDaysUsed
	current.WFHDaysUsed = b.WFHDaysUsed
	current.LateEarlyMinutesUsed = b.LateEarlyMinutesUsed
	current.UpdatedAt = t.s.now()
	t.balances[key] = current
	return nil
}

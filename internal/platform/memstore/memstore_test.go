package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/domain/audit"
	"hrleave/internal/domain/balance"
	"hrleave/internal/domain/employee"
	"hrleave/internal/domain/requests"
)

func seedEmployee(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.CreateEmployee(context.Background(), employee.Employee{
		ID:           id,
		EmployeeCode: "C-" + id,
		FirstName:    "F" + id,
		LastName:     "L" + id,
		Email:        id + "@example.com",
		IsActive:     true,
	}, 2024, balance.DefaultTotals)
	require.NoError(t, err)
}

func TestInTxDiscardsWritesOnError(t *testing.T) {
	s := New()
	seedEmployee(t, s, "e1")
	boom := errors.New("boom")

	err := s.InTx(context.Background(), func(ctx context.Context, tx requests.TxStore) error {
		require.NoError(t, tx.InsertRequest(ctx, requests.Request{ID: "r1", EmployeeID: "e1", Status: requests.StatusPending}))
		b, err := tx.GetOrCreate(ctx, "e1", 2024, balance.DefaultTotals)
		require.NoError(t, err)
		b.VacationDaysUsed = 5
		require.NoError(t, tx.SaveUsed(ctx, b))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetRequest(context.Background(), "r1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	b, err := s.GetOrCreate(context.Background(), "e1", 2024, balance.DefaultTotals)
	require.NoError(t, err)
	assert.Zero(t, b.VacationDaysUsed)
}

func TestInTxCommitsAndReadsOwnWrites(t *testing.T) {
	s := New()
	seedEmployee(t, s, "e1")

	err := s.InTx(context.Background(), func(ctx context.Context, tx requests.TxStore) error {
		if err := tx.InsertRequest(ctx, requests.Request{ID: "r1", EmployeeID: "e1", Status: requests.StatusPending}); err != nil {
			return err
		}
		r, err := tx.LockRequest(ctx, "r1")
		if err != nil {
			return err
		}
		r.Status = requests.StatusApproved
		return tx.UpdateRequest(ctx, r)
	})
	require.NoError(t, err)

	r, err := s.GetRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, requests.StatusApproved, r.Status)
	require.NotNil(t, r.Employee)
	assert.Equal(t, "C-e1", r.Employee.Code)
}

func TestUpdateRequiresLock(t *testing.T) {
	s := New()
	err := s.InTx(context.Background(), func(ctx context.Context, tx requests.TxStore) error {
		return tx.UpdateRequest(ctx, requests.Request{ID: "r1"})
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	err = s.InTx(context.Background(), func(ctx context.Context, tx requests.TxStore) error {
		return tx.SaveUsed(ctx, balance.EmployeeBalance{EmployeeID: "e1", Year: 2024})
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestLockedRowBlocksOtherUnits(t *testing.T) {
	s := New()
	seedEmployee(t, s, "e1")

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.InTx(context.Background(), func(ctx context.Context, tx requests.TxStore) error {
			if _, err := tx.GetOrCreate(ctx, "e1", 2024, balance.DefaultTotals); err != nil {
				return err
			}
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := s.InTx(ctx, func(ctx context.Context, tx requests.TxStore) error {
		_, err := tx.GetOrCreate(ctx, "e1", 2024, balance.DefaultTotals)
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)

	err = s.InTx(context.Background(), func(ctx context.Context, tx requests.TxStore) error {
		_, err := tx.GetOrCreate(ctx, "e1", 2024, balance.DefaultTotals)
		return err
	})
	assert.NoError(t, err, "lock is released when the unit ends")
}

func TestListRequestsFiltersAndPages(t *testing.T) {
	s := New()
	seedEmployee(t, s, "e1")
	seedEmployee(t, s, "e2")
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	err := s.InTx(context.Background(), func(ctx context.Context, tx requests.TxStore) error {
		for i, owner := range []string{"e1", "e1", "e2", "e1"} {
			status := requests.StatusPending
			if i == 1 {
				status = requests.StatusRejected
			}
			r := requests.Request{
				ID:         "r" + string(rune('a'+i)),
				EmployeeID: owner,
				Status:     status,
				CreatedAt:  base.Add(time.Duration(i) * time.Hour),
			}
			if err := tx.InsertRequest(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	mine, err := s.ListRequests(context.Background(), requests.Filter{EmployeeIDs: []string{"e1"}})
	require.NoError(t, err)
	assert.Equal(t, 3, mine.Total)
	assert.Equal(t, []string{"rd", "rb", "ra"}, requestIDs(mine.Items), "newest first")

	pending, err := s.ListRequests(context.Background(), requests.Filter{Status: requests.StatusPending, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, pending.Total)
	assert.Equal(t, []string{"rc", "ra"}, requestIDs(pending.Items))

	none, err := s.ListRequests(context.Background(), requests.Filter{EmployeeIDs: []string{}})
	require.NoError(t, err)
	assert.Zero(t, none.Total)
}

func TestEmployeesAndBalances(t *testing.T) {
	s := New()
	seedEmployee(t, s, "boss")
	manager := "boss"
	err := s.CreateEmployee(context.Background(), employee.Employee{ID: "e1", Email: "E1@example.com", IsActive: true, ManagerID: &manager}, 2024, balance.DefaultTotals)
	require.NoError(t, err)

	err = s.CreateEmployee(context.Background(), employee.Employee{ID: "e2", Email: "e1@EXAMPLE.com"}, 2024, balance.DefaultTotals)
	assert.ErrorIs(t, err, employee.ErrEmailTaken)

	taken, err := s.EmailTaken(context.Background(), "e1@example.com")
	require.NoError(t, err)
	assert.True(t, taken)

	found, err := s.FindActiveByEmail(context.Background(), "e1@example.com")
	require.NoError(t, err)
	assert.Equal(t, "e1", found.ID)

	subs, err := s.SubordinateIDs(context.Background(), "boss")
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, subs)

	balances, err := s.ListForEmployee(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, 21, balances[0].VacationDaysTotal)
}

func TestAuditEventsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, action := range []string{audit.ActionRequestSubmit, audit.ActionRequestApprove, audit.ActionRequestSubmit} {
		require.NoError(t, s.InsertEvent(ctx, audit.Event{Action: action, EntityType: "request", ActorID: "e1"}))
	}

	events, total, err := s.ListEvents(ctx, audit.Filter{Action: audit.ActionRequestSubmit}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)

	all, total, err := s.ListEvents(ctx, audit.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, audit.ActionRequestSubmit, all[0].Action)
	assert.Equal(t, audit.ActionRequestApprove, all[1].Action)
}

func requestIDs(list []requests.Request) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}

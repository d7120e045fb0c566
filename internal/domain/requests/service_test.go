package requests_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/domain/balance"
	"hrleave/internal/domain/employee"
	"hrleave/internal/domain/requests"
	"hrleave/internal/platform/memstore"
	"hrleave/internal/platform/metrics"
)

var fixedNow = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memstore.Store
	svc       *requests.Service
	collector *metrics.Collector
	employees *employee.Service

	hr      employee.Employee
	manager employee.Employee
	staff   employee.Employee
	peer    employee.Employee
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memstore.New()
	for _, rt := range requests.DefaultTypes() {
		rt.ID = rt.Name
		store.PutRequestType(rt)
	}
	store.PutRequestType(requests.RequestType{
		ID:             "wfh-self-service",
		Name:           string(balance.CategoryWorkFromHome),
		MaxAdvanceDays: 30,
	})

	employees := employee.NewService(store, balance.DefaultTotals)
	employees.Now = func() time.Time { return fixedNow }

	create := func(code, email string, isHR bool, managerID *string) employee.Employee {
		e, err := employees.Create(ctx, employee.CreateInput{
			EmployeeCode: code,
			FirstName:    code,
			LastName:     "Tester",
			Email:        email,
			Password:     "Passw0rd!",
			IsHR:         isHR,
			ManagerID:    managerID,
		})
		require.NoError(t, err)
		return e
	}

	f := &fixture{store: store, collector: metrics.New(), employees: employees}
	f.hr = create("HR-1", "hr@example.com", true, nil)
	f.manager = create("MGR-1", "manager@example.com", false, nil)
	f.staff = create("EMP-1", "staff@example.com", false, &f.manager.ID)
	f.peer = create("EMP-2", "peer@example.com", false, &f.hr.ID)

	ledger := balance.NewLedger(balance.DefaultTotals)
	f.svc = requests.NewService(store, requests.NewCatalog(store, time.Minute), employees, ledger)
	f.svc.Now = func() time.Time { return fixedNow }
	f.svc.Metrics = f.collector
	return f
}

func date(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", raw)
	require.NoError(t, err)
	return d
}

func (f *fixture) submit(t *testing.T, typeID, start, end string) requests.Request {
	t.Helper()
	req, err := f.svc.Submit(context.Background(), requests.Draft{
		EmployeeID:    f.staff.ID,
		RequestTypeID: typeID,
		StartDate:     date(t, start),
		EndDate:       date(t, end),
		Reason:        "  family trip ",
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) decide(id, approverID string, role requests.Role, approved bool) (requests.Request, error) {
	return f.svc.Decide(context.Background(), requests.Decision{
		RequestID:  id,
		ApproverID: approverID,
		Role:       role,
		Approved:   approved,
	})
}

func (f *fixture) balance(t *testing.T, employeeID string) balance.EmployeeBalance {
	t.Helper()
	b, err := f.store.GetOrCreate(context.Background(), employeeID, 2024, balance.DefaultTotals)
	require.NoError(t, err)
	return b
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	f := newFixture(t)

	req := f.submit(t, "vacation", "2024-06-10", "2024-06-14")

	assert.Equal(t, requests.StatusPending, req.Status)
	assert.Equal(t, requests.ApprovalPending, req.ManagerApproval.Status)
	assert.Equal(t, requests.ApprovalPending, req.HRApproval.Status)
	assert.Equal(t, 5, req.TotalDays)
	assert.Equal(t, "family trip", req.Reason)
	require.NotNil(t, req.Employee)
	assert.Equal(t, "EMP-1", req.Employee.Code)
	require.NotNil(t, req.RequestType)
	assert.Equal(t, "vacation", req.RequestType.Name)
	assert.Equal(t, 0, f.balance(t, f.staff.ID).VacationDaysUsed, "submission never debits")
}

func TestSubmitRejectsBadDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, requests.Draft{EmployeeID: f.staff.ID, RequestTypeID: "unknown", StartDate: date(t, "2024-06-10"), EndDate: date(t, "2024-06-10")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Submit(ctx, requests.Draft{EmployeeID: "ghost", RequestTypeID: "vacation", StartDate: date(t, "2024-06-10"), EndDate: date(t, "2024-06-10")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Submit(ctx, requests.Draft{EmployeeID: f.staff.ID, RequestTypeID: "vacation", StartDate: date(t, "2024-06-14"), EndDate: date(t, "2024-06-10")})
	assert.ErrorIs(t, err, apperror.ErrInvalidRange)

	_, err = f.svc.Submit(ctx, requests.Draft{EmployeeID: f.staff.ID, RequestTypeID: "work_from_home", StartDate: date(t, "2024-08-01"), EndDate: date(t, "2024-08-01")})
	assert.ErrorIs(t, err, apperror.ErrAdvanceWindowExceeded)

	_, err = f.svc.Submit(ctx, requests.Draft{EmployeeID: f.staff.ID, RequestTypeID: "vacation", StartDate: date(t, "2024-06-10"), EndDate: date(t, "2024-07-19")})
	assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)

	list, err := f.svc.ListForEmployee(ctx, f.staff.ID, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, list.Total, "failed submissions persist nothing")
}

func TestTwoStageApprovalDebitsOnce(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "vacation", "2024-06-10", "2024-06-14")

	afterManager, err := f.decide(req.ID, f.manager.ID, requests.RoleManager, true)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusPending, afterManager.Status)
	assert.Equal(t, requests.ApprovalApproved, afterManager.ManagerApproval.Status)
	require.NotNil(t, afterManager.ManagerApproval.Approver)
	assert.Equal(t, "MGR-1", afterManager.ManagerApproval.Approver.Code)
	assert.Equal(t, 0, f.balance(t, f.staff.ID).VacationDaysUsed)

	final, err := f.decide(req.ID, f.hr.ID, requests.RoleHR, true)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusApproved, final.Status)
	assert.Equal(t, 5, f.balance(t, f.staff.ID).VacationDaysUsed)

	_, err = f.decide(req.ID, f.hr.ID, requests.RoleHR, true)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	assert.Equal(t, 5, f.balance(t, f.staff.ID).VacationDaysUsed, "repeat decisions never debit again")

	snapshot := f.collector.Snapshot()["lifecycle"].(map[string]uint64)
	assert.EqualValues(t, 1, snapshot[requests.EventSubmitted])
	assert.EqualValues(t, 1, snapshot[requests.EventApproved])
}

func TestManagerOnlyTypeApprovesOnManagerDecision(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "work_from_home", "2024-06-10", "2024-06-11")

	_, err := f.decide(req.ID, f.hr.ID, requests.RoleHR, true)
	assert.ErrorIs(t, err, apperror.ErrInvalidState, "hr track is not used")

	approved, err := f.decide(req.ID, f.manager.ID, requests.RoleManager, true)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusApproved, approved.Status)
	assert.Equal(t, 2, f.balance(t, f.staff.ID).WFHDaysUsed)
}

func TestHourBasedApprovalDebitsHours(t *testing.T) {
	f := newFixture(t)
	start, err := requests.ParseTimeOfDay("09:00")
	require.NoError(t, err)
	end, err := requests.ParseTimeOfDay("11:30")
	require.NoError(t, err)

	req, err := f.svc.Submit(context.Background(), requests.Draft{
		EmployeeID:    f.staff.ID,
		RequestTypeID: "late_arrival",
		StartDate:     date(t, "2024-06-05"),
		EndDate:       date(t, "2024-06-05"),
		StartTime:     &start,
		EndTime:       &end,
	})
	require.NoError(t, err)
	assert.Equal(t, 150, req.TotalMinutes)
	assert.InDelta(t, 2.5, req.TotalHours, 1e-9)

	_, err = f.decide(req.ID, f.manager.ID, requests.RoleManager, true)
	require.NoError(t, err)
	assert.Equal(t, 150, f.balance(t, f.staff.ID).LateEarlyMinutesUsed)
}

func TestFractionalHourRequestsUseThePoolExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start, err := requests.ParseTimeOfDay("09:00")
	require.NoError(t, err)
	end, err := requests.ParseTimeOfDay("09:20")
	require.NoError(t, err)

	draft := requests.Draft{
		EmployeeID:    f.staff.ID,
		RequestTypeID: "late_arrival",
		StartDate:     date(t, "2024-06-05"),
		EndDate:       date(t, "2024-06-05"),
		StartTime:     &start,
		EndTime:       &end,
	}
	for i := 0; i < 120; i++ {
		req, err := f.svc.Submit(ctx, draft)
		require.NoError(t, err, "submit %d", i+1)
		assert.Equal(t, 20, req.TotalMinutes)
		_, err = f.decide(req.ID, f.manager.ID, requests.RoleManager, true)
		require.NoError(t, err, "approve %d", i+1)
	}

	b := f.balance(t, f.staff.ID)
	assert.Equal(t, b.LateEarlyMinutesTotal, b.LateEarlyMinutesUsed)
	assert.Equal(t, 40.0, b.View().LateEarlyHoursUsed)

	_, err = f.svc.Submit(ctx, draft)
	assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)
}

func TestRejectionNeverDebits(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "vacation", "2024-06-10", "2024-06-14")

	rejected, err := f.decide(req.ID, f.manager.ID, requests.RoleManager, false)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusRejected, rejected.Status)

	_, err = f.decide(req.ID, f.hr.ID, requests.RoleHR, true)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	assert.Equal(t, 0, f.balance(t, f.staff.ID).VacationDaysUsed)
}

func TestManagerDecisionRequiresDirectManager(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "vacation", "2024-06-10", "2024-06-11")

	_, err := f.decide(req.ID, f.hr.ID, requests.RoleManager, true)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.decide(req.ID, f.peer.ID, requests.RoleManager, true)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.decide(req.ID, f.manager.ID, requests.Role("owner"), true)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.decide("missing", f.manager.ID, requests.RoleManager, true)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCancelRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.submit(t, "vacation", "2024-06-10", "2024-06-11")

	_, err := f.svc.Cancel(ctx, req.ID, f.peer.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	cancelled, err := f.svc.Cancel(ctx, req.ID, f.staff.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, req.ID, f.staff.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	_, err = f.decide(req.ID, f.manager.ID, requests.RoleManager, true)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	approved := f.submit(t, "work_from_home", "2024-06-12", "2024-06-12")
	_, err = f.decide(approved.ID, f.manager.ID, requests.RoleManager, true)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, approved.ID, f.staff.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	assert.Equal(t, 1, f.balance(t, f.staff.ID).WFHDaysUsed)
}

func TestPendingApprovalViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vacation := f.submit(t, "vacation", "2024-06-10", "2024-06-11")
	wfh := f.submit(t, "work_from_home", "2024-06-12", "2024-06-12")

	managerView, err := f.svc.ListPendingApprovalsFor(ctx, f.manager.ID, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{vacation.ID, wfh.ID}, ids(managerView))

	hrView, err := f.svc.ListPendingApprovalsFor(ctx, f.hr.ID, true)
	require.NoError(t, err)
	assert.Empty(t, hrView, "hr acts after the manager")

	peerView, err := f.svc.ListPendingApprovalsFor(ctx, f.peer.ID, false)
	require.NoError(t, err)
	assert.Empty(t, peerView)

	_, err = f.decide(vacation.ID, f.manager.ID, requests.RoleManager, true)
	require.NoError(t, err)

	managerView, err = f.svc.ListPendingApprovalsFor(ctx, f.manager.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{wfh.ID}, ids(managerView))

	hrView, err = f.svc.ListPendingApprovalsFor(ctx, f.hr.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{vacation.ID}, ids(hrView))
}

func TestReadAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.submit(t, "vacation", "2024-06-10", "2024-06-11")

	for _, caller := range []requests.Caller{
		{EmployeeID: f.staff.ID},
		{EmployeeID: f.manager.ID},
		{EmployeeID: f.hr.ID, IsHR: true},
	} {
		got, err := f.svc.GetByID(ctx, req.ID, caller)
		require.NoError(t, err)
		assert.Equal(t, req.ID, got.ID)
	}

	_, err := f.svc.GetByID(ctx, req.ID, requests.Caller{EmployeeID: f.peer.ID})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.ListAll(ctx, requests.Caller{EmployeeID: f.manager.ID}, "", 10, 0)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	all, err := f.svc.ListAll(ctx, requests.Caller{EmployeeID: f.hr.ID, IsHR: true}, requests.StatusPending, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, all.Total)

	mine, err := f.svc.ListForEmployee(ctx, f.staff.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, mine.Total)
	others, err := f.svc.ListForEmployee(ctx, f.peer.ID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, others.Total)
}

func TestSelfServiceTypeApprovesOnSubmit(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, "wfh-self-service", "2024-06-10", "2024-06-12")

	assert.Equal(t, requests.StatusApproved, req.Status)
	assert.Equal(t, requests.ApprovalApproved, req.ManagerApproval.Status)
	assert.Equal(t, 3, f.balance(t, f.staff.ID).WFHDaysUsed)
}

func TestConcurrentFinalApprovalsCannotOverdraw(t *testing.T) {
	f := newFixture(t)
	first := f.submit(t, "vacation", "2024-06-10", "2024-06-28")
	second := f.submit(t, "vacation", "2024-07-01", "2024-07-19")
	require.Equal(t, 15, first.TotalDays)
	require.Equal(t, 15, second.TotalDays)

	for _, id := range []string{first.ID, second.ID} {
		_, err := f.decide(id, f.manager.ID, requests.RoleManager, true)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.decide(id, f.hr.ID, requests.RoleHR, true)
		}(i, id)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperror.KindOf(err) == apperror.KindInsufficientBalance:
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	assert.Equal(t, 15, f.balance(t, f.staff.ID).VacationDaysUsed)

	list, err := f.svc.ListForEmployee(context.Background(), f.staff.ID, 0, 0)
	require.NoError(t, err)
	statuses := map[requests.Status]int{}
	for _, r := range list.Items {
		statuses[r.Status]++
	}
	assert.Equal(t, map[requests.Status]int{requests.StatusApproved: 1, requests.StatusPending: 1}, statuses)

	snapshot := f.collector.Snapshot()["lifecycle"].(map[string]uint64)
	assert.EqualValues(t, 1, snapshot[requests.EventBalanceConflict])
}

func ids(list []requests.Request) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}

func TestDeactivatedEmployeeCannotSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.submit(t, "vacation", "2024-06-10", "2024-06-11")

	_, err := f.employees.Deactivate(ctx, f.hr.ID, f.staff.ID)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, requests.Draft{
		EmployeeID:    f.staff.ID,
		RequestTypeID: "vacation",
		StartDate:     date(t, "2024-06-17"),
		EndDate:       date(t, "2024-06-17"),
	})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Contains(t, err.Error(), "inactive")

	list, err := f.svc.ListForEmployee(ctx, f.staff.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total, "the refused draft is not stored")

	// requests filed before deactivation still move through approval
	_, err = f.decide(pending.ID, f.manager.ID, requests.RoleManager, true)
	require.NoError(t, err)
}

func TestDeactivatedApproverCannotDecide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.submit(t, "vacation", "2024-06-10", "2024-06-10")

	_, err := f.employees.Deactivate(ctx, f.hr.ID, f.manager.ID)
	require.NoError(t, err)

	_, err = f.decide(req.ID, f.manager.ID, requests.RoleManager, true)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	got, err := f.store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.ApprovalPending, got.ManagerApproval.Status)
}

func TestReassignedManagerDecidesImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.submit(t, "vacation", "2024-06-10", "2024-06-10")

	_, err := f.employees.Update(ctx, f.staff.ID, employee.UpdateInput{ManagerID: &f.peer.ID})
	require.NoError(t, err)

	_, err = f.decide(req.ID, f.manager.ID, requests.RoleManager, true)
	assert.ErrorIs(t, err, apperror.ErrForbidden, "the previous manager lost the report")

	queue, err := f.svc.ListPendingApprovalsFor(ctx, f.peer.ID, false)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, req.ID, queue[0].ID)

	decided, err := f.decide(req.ID, f.peer.ID, requests.RoleManager, true)
	require.NoError(t, err)
	assert.Equal(t, requests.ApprovalApproved, decided.ManagerApproval.Status)
}

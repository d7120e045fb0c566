package requests

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/domain/balance"
	"hrleave/internal/domain/employee"
)

// Directory resolves employees and their one-hop reporting line.
type Directory interface {
	Get(ctx context.Context, id string) (employee.Employee, error)
	SubordinateIDs(ctx context.Context, managerID string) ([]string, error)
}

// Recorder receives lifecycle events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Lifecycle(event string)
}

const (
	EventSubmitted       = "submitted"
	EventApproved        = "approved"
	EventRejected        = "rejected"
	EventCancelled       = "cancelled"
	EventBalanceConflict = "balance_conflict"
)

type Service struct {
	Store     StoreAPI
	Catalog   *Catalog
	Directory Directory
	Ledger    balance.Ledger
	Metrics   Recorder
	Now       func() time.Time
}

func NewService(store StoreAPI, catalog *Catalog, directory Directory, ledger balance.Ledger) *Service {
	return &Service{Store: store, Catalog: catalog, Directory: directory, Ledger: ledger, Now: time.Now}
}

func (s *Service) RequestTypes(ctx context.Context) ([]RequestType, error) {
	return s.Catalog.List(ctx)
}

// Submit validates a draft and persists it as pending. Types that skip the
// manager stage start with that track approved; if no stage is required at
// all the request is approved and debited in the same unit of work.
func (s *Service) Submit(ctx context.Context, d Draft) (Request, error) {
	rt, err := s.Catalog.Get(ctx, d.RequestTypeID)
	if err != nil {
		return Request{}, err
	}
	emp, err := s.Directory.Get(ctx, d.EmployeeID)
	if err != nil {
		return Request{}, err
	}
	if !emp.IsActive {
		return Request{}, apperror.Forbidden("employee is inactive")
	}

	now := s.now()
	validator := Validator{Ledger: s.Ledger, Now: func() time.Time { return now }}

	var created Request
	err = s.Store.InTx(ctx, func(ctx context.Context, tx TxStore) error {
		dur, err := validator.Validate(ctx, tx, rt, d)
		if err != nil {
			return err
		}

		req := Request{
			ID:              uuid.NewString(),
			EmployeeID:      d.EmployeeID,
			RequestTypeID:   rt.ID,
			StartDate:       d.StartDate,
			EndDate:         d.EndDate,
			StartTime:       d.StartTime,
			EndTime:         d.EndTime,
			Reason:          strings.TrimSpace(d.Reason),
			Status:          StatusPending,
			ManagerApproval: Approval{Status: ApprovalPending},
			HRApproval:      Approval{Status: ApprovalPending},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		req.setTotals(dur)
		if !rt.RequiresManagerApproval {
			decidedAt := now
			req.ManagerApproval = Approval{Status: ApprovalApproved, DecidedAt: &decidedAt, Comment: "manager approval not required"}
			req.Status = Combine(rt.RequiresHRApproval, req.ManagerApproval.Status, req.HRApproval.Status)
		}
		if req.Status == StatusApproved {
			if _, err := s.Ledger.Debit(ctx, tx, req.EmployeeID, rt.Category(), req.TotalDays, req.TotalMinutes, req.BalanceYear()); err != nil {
				return err
			}
		}

		if err := tx.InsertRequest(ctx, req); err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	s.record(EventSubmitted)
	if created.Status == StatusApproved {
		s.record(EventApproved)
	}
	summary := emp.Summary()
	typeSummary := rt.Summary()
	created.Employee = &summary
	created.RequestType = &typeSummary
	return created, nil
}

// ListForEmployee returns the caller's own requests, newest first.
func (s *Service) ListForEmployee(ctx context.Context, employeeID string, limit, offset int) (ListResult, error) {
	return s.Store.ListRequests(ctx, Filter{EmployeeIDs: []string{employeeID}, Limit: limit, Offset: offset})
}

// ListAll returns every request. Only HR callers may see it.
func (s *Service) ListAll(ctx context.Context, caller Caller, status Status, limit, offset int) (ListResult, error) {
	if !caller.IsHR {
		return ListResult{}, apperror.Forbidden("hr access required")
	}
	return s.Store.ListRequests(ctx, Filter{Status: status, Limit: limit, Offset: offset})
}

// ListPendingApprovalsFor returns the requests on which approverID is the
// next one to act: the HR stage for HR callers, otherwise the manager stage
// of their direct reports.
func (s *Service) ListPendingApprovalsFor(ctx context.Context, approverID string, isHR bool) ([]Request, error) {
	filter := Filter{Status: StatusPending}
	var subordinates map[string]struct{}
	if !isHR {
		ids, err := s.Directory.SubordinateIDs(ctx, approverID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []Request{}, nil
		}
		subordinates = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			subordinates[id] = struct{}{}
		}
		filter.EmployeeIDs = ids
	}

	candidates, err := s.Store.ListRequests(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]Request, 0, len(candidates.Items))
	for _, r := range candidates.Items {
		if isHR && AwaitingHR(r) {
			out = append(out, r)
		}
		if !isHR && AwaitingManager(r, subordinates) {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetByID returns the request when the caller owns it, is HR, or manages
// its owner. Anyone else gets NotFound.
func (s *Service) GetByID(ctx context.Context, id string, caller Caller) (Request, error) {
	req, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if caller.IsHR || req.EmployeeID == caller.EmployeeID {
		return req, nil
	}
	owner, err := s.Directory.Get(ctx, req.EmployeeID)
	if err != nil {
		return Request{}, err
	}
	if owner.ManagedBy(caller.EmployeeID) {
		return req, nil
	}
	return Request{}, apperror.NotFound("request")
}

// Decide applies a manager or HR decision. Final approval debits the ledger
// in the same unit of work as the status write; if the debit fails nothing
// is committed and the request stays pending.
func (s *Service) Decide(ctx context.Context, d Decision) (Request, error) {
	if !d.Role.Valid() {
		return Request{}, apperror.Validation("role must be manager or hr")
	}
	approver, err := s.Directory.Get(ctx, d.ApproverID)
	if err != nil {
		return Request{}, err
	}
	if !approver.IsActive {
		return Request{}, apperror.Forbidden("approver is inactive")
	}

	var decided Request
	err = s.Store.InTx(ctx, func(ctx context.Context, tx TxStore) error {
		req, err := tx.LockRequest(ctx, d.RequestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return apperror.InvalidState("request is already " + string(req.Status))
		}

		if d.Role == RoleManager {
			owner, err := s.Directory.Get(ctx, req.EmployeeID)
			if err != nil {
				return err
			}
			if !owner.ManagedBy(d.ApproverID) {
				return apperror.Forbidden("only the employee's manager can decide this request")
			}
		}

		rt, err := s.Catalog.Get(ctx, req.RequestTypeID)
		if err != nil {
			return err
		}

		approved, err := req.applyDecision(d, rt.RequiresHRApproval, s.now())
		if err != nil {
			return err
		}
		if approved {
			if _, err := s.Ledger.Debit(ctx, tx, req.EmployeeID, rt.Category(), req.TotalDays, req.TotalMinutes, req.BalanceYear()); err != nil {
				return err
			}
		}

		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		decided = req
		return nil
	})
	if err != nil {
		if errors.Is(err, apperror.ErrInsufficientBalance) {
			s.record(EventBalanceConflict)
		}
		return Request{}, err
	}

	switch decided.Status {
	case StatusApproved:
		s.record(EventApproved)
	case StatusRejected:
		s.record(EventRejected)
	}
	return s.reload(ctx, decided), nil
}

// Cancel withdraws a pending request on behalf of its owner.
func (s *Service) Cancel(ctx context.Context, requestID, employeeID string) (Request, error) {
	var cancelled Request
	err := s.Store.InTx(ctx, func(ctx context.Context, tx TxStore) error {
		req, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.EmployeeID != employeeID {
			return apperror.NotFound("request")
		}
		if req.Status != StatusPending {
			return apperror.InvalidState("only pending requests can be cancelled")
		}
		req.Status = StatusCancelled
		req.UpdatedAt = s.now()
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		cancelled = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.record(EventCancelled)
	return s.reload(ctx, cancelled), nil
}

// reload fetches the committed read model with summaries; on failure the
// in-memory copy is good enough for the response.
func (s *Service) reload(ctx context.Context, r Request) Request {
	fresh, err := s.Store.GetRequest(ctx, r.ID)
	if err != nil {
		return r
	}
	return fresh
}

func (s *Service) record(event string) {
	if s.Metrics != nil {
		s.Metrics.Lifecycle(event)
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

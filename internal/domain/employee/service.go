package employee

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/domain/auth"
	"hrleave/internal/domain/balance"
)

var (
	ErrEmailTaken          = errors.New("email already in use")
	ErrDepartmentNameTaken = errors.New("department name already in use")
	ErrDepartmentInUse     = apperror.InvalidState("cannot delete a department that has employees")
)

type Service struct {
	Store    StoreAPI
	Defaults balance.Totals
	Now      func() time.Time
}

func NewService(store StoreAPI, defaults balance.Totals) *Service {
	return &Service{Store: store, Defaults: defaults, Now: time.Now}
}

func (s *Service) Get(ctx context.Context, id string) (Employee, error) {
	return s.Store.GetEmployee(ctx, id)
}

func (s *Service) SubordinateIDs(ctx context.Context, managerID string) ([]string, error) {
	return s.Store.SubordinateIDs(ctx, managerID)
}

func (s *Service) Subordinates(ctx context.Context, managerID string) ([]Employee, error) {
	return s.Store.ListSubordinates(ctx, managerID)
}

// Create onboards an employee and opens their balance for the current year.
func (s *Service) Create(ctx context.Context, in CreateInput) (Employee, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	taken, err := s.Store.EmailTaken(ctx, email)
	if err != nil {
		return Employee{}, err
	}
	if taken {
		return Employee{}, ErrEmailTaken
	}

	managerID, err := s.resolveManager(ctx, "", in.ManagerID)
	if err != nil {
		return Employee{}, err
	}
	departmentID, err := s.resolveDepartment(ctx, in.DepartmentID)
	if err != nil {
		return Employee{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Employee{}, err
	}

	now := s.Now()
	e := Employee{
		ID:           uuid.NewString(),
		EmployeeCode: strings.TrimSpace(in.EmployeeCode),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		IsHR:         in.IsHR,
		IsActive:     true,
		ManagerID:    managerID,
		DepartmentID: departmentID,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if err := s.Store.CreateEmployee(ctx, e, now.Year(), s.Defaults); err != nil {
		return Employee{}, err
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Employee, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.Store.ListEmployees(ctx, filter)
}

// Update applies a partial change. Email stays unique, a new manager must
// be an active employee outside e's own reporting line, and a new password
// is hashed before it is stored.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Employee, error) {
	e, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}

	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return Employee{}, apperror.Validation("email must not be empty")
		}
		if !strings.EqualFold(email, e.Email) {
			taken, err := s.Store.EmailTaken(ctx, email)
			if err != nil {
				return Employee{}, err
			}
			if taken {
				return Employee{}, ErrEmailTaken
			}
		}
		e.Email = email
	}
	if in.ManagerID != nil {
		if e.ManagerID, err = s.resolveManager(ctx, e.ID, in.ManagerID); err != nil {
			return Employee{}, err
		}
	}
	if in.DepartmentID != nil {
		if e.DepartmentID, err = s.resolveDepartment(ctx, in.DepartmentID); err != nil {
			return Employee{}, err
		}
	}
	if in.Password != nil {
		if e.PasswordHash, err = auth.HashPassword(*in.Password); err != nil {
			return Employee{}, err
		}
	}
	if in.EmployeeCode != nil {
		e.EmployeeCode = strings.TrimSpace(*in.EmployeeCode)
	}
	if in.FirstName != nil {
		e.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		e.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.IsHR != nil {
		e.IsHR = *in.IsHR
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}

	if err := s.Store.UpdateEmployee(ctx, e); err != nil {
		return Employee{}, err
	}
	return e, nil
}

// Deactivate is the soft delete: the record, its requests and its audit
// trail stay, but the employee can no longer sign in or file requests.
func (s *Service) Deactivate(ctx context.Context, actorID, id string) (Employee, error) {
	if actorID == id {
		return Employee{}, apperror.InvalidState("cannot deactivate your own account")
	}
	e, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	if !e.IsActive {
		return e, nil
	}
	e.IsActive = false
	if err := s.Store.UpdateEmployee(ctx, e); err != nil {
		return Employee{}, err
	}
	return e, nil
}

// resolveManager validates a requested manager link for employee selfID
// ("" while onboarding). An empty value clears the link.
func (s *Service) resolveManager(ctx context.Context, selfID string, raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id := strings.TrimSpace(*raw)
	if id == selfID {
		return nil, apperror.Validation("an employee cannot manage themselves")
	}
	mgr, err := s.Store.GetEmployee(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound("manager")
	}
	if err != nil {
		return nil, err
	}
	if !mgr.IsActive {
		return nil, apperror.Validation("manager is inactive")
	}
	if selfID != "" {
		if err := s.checkReportingLine(ctx, selfID, mgr); err != nil {
			return nil, err
		}
	}
	return &id, nil
}

// checkReportingLine walks up from mgr and fails if it reaches selfID.
func (s *Service) checkReportingLine(ctx context.Context, selfID string, mgr Employee) error {
	seen := map[string]bool{mgr.ID: true}
	for mgr.ManagerID != nil && *mgr.ManagerID != "" {
		next := *mgr.ManagerID
		if next == selfID {
			return apperror.Validation("manager change would create a reporting cycle")
		}
		if seen[next] {
			return nil
		}
		seen[next] = true
		var err error
		if mgr, err = s.Store.GetEmployee(ctx, next); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *Service) resolveDepartment(ctx context.Context, raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id := strings.TrimSpace(*raw)
	if _, err := s.Store.GetDepartment(ctx, id); err != nil {
		return nil, err
	}
	return &id, nil
}

// AccountByEmail resolves login credentials for the identity layer.
func (s *Service) AccountByEmail(ctx context.Context, email string) (auth.Account, error) {
	e, err := s.Store.FindActiveByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return auth.Account{}, err
	}
	reports, err := s.Store.SubordinateIDs(ctx, e.ID)
	if err != nil {
		return auth.Account{}, err
	}
	return auth.Account{
		EmployeeID:   e.ID,
		PasswordHash: e.PasswordHash,
		IsHR:         e.IsHR,
		HasReports:   len(reports) > 0,
	}, nil
}

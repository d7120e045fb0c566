// Package memstore is an in-process storage substrate used with STORE=memory
// and in tests. Units of work lock the rows they touch (one request, one
// balance) and stage their writes until commit.
package memstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/domain/audit"
	"hrleave/internal/domain/balance"
	"hrleave/internal/domain/employee"
	"hrleave/internal/domain/requests"
)

type balanceKey struct {
	employeeID string
	year       int
}

func (k balanceKey) lockKey() string {
	return "balance:" + k.employeeID + "/" + strconv.Itoa(k.year)
}

type Store struct {
	mu        sync.RWMutex
	employees map[string]employee.Employee
	depts     map[string]employee.Department
	types     map[string]requests.RequestType
	requests  map[string]requests.Request
	balances  map[balanceKey]balance.EmployeeBalance
	events    []audit.Event
	locks     *keyedLocks
	now       func() time.Time
}

func New() *Store {
	return &Store{
		employees: map[string]employee.Employee{},
		depts:     map[string]employee.Department{},
		types:     map[string]requests.RequestType{},
		requests:  map[string]requests.Request{},
		balances:  map[balanceKey]balance.EmployeeBalance{},
		locks:     newKeyedLocks(),
		now:       time.Now,
	}
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// PutRequestType adds or replaces a catalog entry.
func (s *Store) PutRequestType(rt requests.RequestType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = s.now()
	}
	s.types[rt.ID] = rt
}

func (s *Store) ListRequestTypes(context.Context) ([]requests.RequestType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]requests.RequestType, 0, len(s.types))
	for _, rt := range s.types {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// requests

func (s *Store) GetRequest(_ context.Context, id string) (requests.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return requests.Request{}, apperror.NotFound("request")
	}
	return s.withSummaries(r), nil
}

func (s *Store) ListRequests(_ context.Context, filter requests.Filter) (requests.ListResult, error) {
	var owners map[string]struct{}
	if filter.EmployeeIDs != nil {
		owners = make(map[string]struct{}, len(filter.EmployeeIDs))
		for _, id := range filter.EmployeeIDs {
			owners[id] = struct{}{}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []requests.Request{}
	for _, r := range s.requests {
		if owners != nil {
			if _, ok := owners[r.EmployeeID]; !ok {
				continue
			}
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Limit > 0 {
		start := min(filter.Offset, total)
		end := min(start+filter.Limit, total)
		matched = matched[start:end]
	}

	items := make([]requests.Request, 0, len(matched))
	for _, r := range matched {
		items = append(items, s.withSummaries(r))
	}
	return requests.ListResult{Items: items, Total: total}, nil
}

// withSummaries must be called with s.mu held.
func (s *Store) withSummaries(r requests.Request) requests.Request {
	if e, ok := s.employees[r.EmployeeID]; ok {
		summary := e.Summary()
		r.Employee = &summary
	}
	if rt, ok := s.types[r.RequestTypeID]; ok {
		summary := rt.Summary()
		r.RequestType = &summary
	}
	r.ManagerApproval.Approver = s.approver(r.ManagerApproval.ApproverID)
	r.HRApproval.Approver = s.approver(r.HRApproval.ApproverID)
	return r
}

func (s *Store) approver(id *string) *employee.Summary {
	if id == nil {
		return nil
	}
	e, ok := s.employees[*id]
	if !ok {
		return nil
	}
	summary := e.Summary()
	return &summary
}

// employees

func (s *Store) GetEmployee(_ context.Context, id string) (employee.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return employee.Employee{}, apperror.NotFound("employee")
	}
	return e, nil
}

func (s *Store) FindActiveByEmail(_ context.Context, email string) (employee.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.employees {
		if e.IsActive && strings.EqualFold(e.Email, email) {
			return e, nil
		}
	}
	return employee.Employee{}, apperror.NotFound("employee")
}

func (s *Store) EmailTaken(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emailTakenLocked(email), nil
}

func (s *Store) emailTakenLocked(email string) bool {
	for _, e := range s.employees {
		if strings.EqualFold(e.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) SubordinateIDs(ctx context.Context, managerID string) ([]string, error) {
	subs, err := s.ListSubordinates(ctx, managerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(subs))
	for _, e := range subs {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (s *Store) ListSubordinates(_ context.Context, managerID string) ([]employee.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []employee.Employee
	for _, e := range s.employees {
		if e.ManagedBy(managerID) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName == out[j].LastName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].LastName < out[j].LastName
	})
	return out, nil
}

func (s *Store) CreateEmployee(ctx context.Context, e employee.Employee, year int, totals balance.Totals) error {
	key := balanceKey{employeeID: e.ID, year: year}
	release, err := s.locks.acquire(ctx, key.lockKey())
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTakenLocked(e.Email) {
		return employee.ErrEmailTaken
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.employees[e.ID] = e
	if _, ok := s.balances[key]; !ok {
		s.balances[key] = s.newBalance(e.ID, year, totals)
	}
	return nil
}

func (s *Store) ListEmployees(_ context.Context, filter employee.ListFilter) ([]employee.Employee, int, error) {
	s.mu.RLock()
	var out []employee.Employee
	for _, e := range s.employees {
		if filter.DepartmentID != "" && (e.DepartmentID == nil || *e.DepartmentID != filter.DepartmentID) {
			continue
		}
		if filter.Active != nil && e.IsActive != *filter.Active {
			continue
		}
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID < out[j].ID
	})
	total := len(out)
	if filter.Offset >= total {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (s *Store) UpdateEmployee(_ context.Context, e employee.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.employees[e.ID]
	if !ok {
		return apperror.NotFound("employee")
	}
	if !strings.EqualFold(prev.Email, e.Email) && s.emailTakenLocked(e.Email) {
		return employee.ErrEmailTaken
	}
	if e.DepartmentID != nil {
		if _, ok := s.depts[*e.DepartmentID]; !ok {
			return apperror.NotFound("department")
		}
	}
	e.CreatedAt = prev.CreatedAt
	s.employees[e.ID] = e
	return nil
}

// departments

func (s *Store) ListDepartments(context.Context) ([]employee.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]employee.Department, 0, len(s.depts))
	for _, d := range s.depts {
		out = append(out, s.withHeadcountLocked(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetDepartment(_ context.Context, id string) (employee.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.depts[id]
	if !ok {
		return employee.Department{}, apperror.NotFound("department")
	}
	return s.withHeadcountLocked(d), nil
}

func (s *Store) CreateDepartment(_ context.Context, d employee.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.departmentNameTakenLocked(d.Name, "") {
		return employee.ErrDepartmentNameTaken
	}
	d.EmployeeCount = 0
	s.depts[d.ID] = d
	return nil
}

func (s *Store) UpdateDepartment(_ context.Context, d employee.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.depts[d.ID]; !ok {
		return apperror.NotFound("department")
	}
	if s.departmentNameTakenLocked(d.Name, d.ID) {
		return employee.ErrDepartmentNameTaken
	}
	d.EmployeeCount = 0
	s.depts[d.ID] = d
	return nil
}

func (s *Store) DeleteDepartment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.depts[id]
	if !ok {
		return apperror.NotFound("department")
	}
	if s.withHeadcountLocked(d).EmployeeCount > 0 {
		return employee.ErrDepartmentInUse
	}
	delete(s.depts, id)
	return nil
}

func (s *Store) departmentNameTakenLocked(name, exceptID string) bool {
	for id, d := range s.depts {
		if id != exceptID && strings.EqualFold(d.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) withHeadcountLocked(d employee.Department) employee.Department {
	d.EmployeeCount = 0
	for _, e := range s.employees {
		if e.DepartmentID != nil && *e.DepartmentID == d.ID {
			d.EmployeeCount++
		}
	}
	return d
}

// balances outside a unit of work

func (s *Store) GetOrCreate(ctx context.Context, employeeID string, year int, defaults balance.Totals) (balance.EmployeeBalance, error) {
	key := balanceKey{employeeID: employeeID, year: year}
	release, err := s.locks.acquire(ctx, key.lockKey())
	if err != nil {
		return balance.EmployeeBalance{}, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[key]
	if !ok {
		b = s.newBalance(employeeID, year, defaults)
		s.balances[key] = b
	}
	return b, nil
}

func (s *Store) SaveUsed(ctx context.Context, b balance.EmployeeBalance) error {
	key := balanceKey{employeeID: b.EmployeeID, year: b.Year}
	release, err := s.locks.acquire(ctx, key.lockKey())
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveUsedLocked(key, b)
}

func (s *Store) saveUsedLocked(key balanceKey, b balance.EmployeeBalance) error {
	current, ok := s.balances[key]
	if !ok {
		return apperror.NotFound("balance")
	}
	current.VacationDaysUsed = b.VacationDaysUsed
	current.WFHDaysUsed = b.WFHDaysUsed
	current.LateEarlyMinutesUsed = b.LateEarlyMinutesUsed
	current.UpdatedAt = s.now()
	s.balances[key] = current
	return nil
}

func (s *Store) ListForEmployee(_ context.Context, employeeID string) ([]balance.EmployeeBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []balance.EmployeeBalance
	for key, b := range s.balances {
		if key.employeeID == employeeID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

func (s *Store) newBalance(employeeID string, year int, totals balance.Totals) balance.EmployeeBalance {
	b := balance.NewEmployeeBalance(employeeID, year, totals)
	b.ID = uuid.NewString()
	b.CreatedAt = s.now()
	b.UpdatedAt = b.CreatedAt
	return b
}

// audit

func (s *Store) InsertEvent(_ context.Context, evt audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = s.now()
	}
	s.events = append(s.events, evt)
	return nil
}

func (s *Store) ListEvents(_ context.Context, filter audit.Filter, limit, offset int) ([]audit.Event, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []audit.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		evt := s.events[i]
		if filter.Matches(evt) {
			matched = append(matched, evt)
		}
	}
	total := len(matched)
	if limit > 0 {
		start := min(offset, total)
		end := min(start+limit, total)
		matched = matched[start:end]
	}
	return matched, total, nil
}

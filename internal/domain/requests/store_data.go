package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/domain/balance"
	"hrleave/internal/domain/employee"
	"hrleave/internal/platform/querier"
)

const requestSelect = `
    SELECT r.id, r.employee_id, e.first_name, e.last_name, e.employee_code,
           r.request_type_id, t.name,
           r.start_date, r.end_date, to_char(r.start_time, 'HH24:MI'), to_char(r.end_time, 'HH24:MI'),
           r.reason, r.status,
           r.manager_approval_status, r.manager_decided_at, r.manager_comment, r.manager_approver_id,
           ma.first_name, ma.last_name, ma.employee_code,
           r.hr_approval_status, r.hr_decided_at, r.hr_comment, r.hr_approver_id,
           ha.first_name, ha.last_name, ha.employee_code,
           r.total_days, r.total_minutes, r.created_at, r.updated_at
    FROM requests r
    JOIN employees e ON e.id = r.employee_id
    JOIN request_types t ON t.id = r.request_type_id
    LEFT JOIN employees ma ON ma.id = r.manager_approver_id
    LEFT JOIN employees ha ON ha.id = r.hr_approver_id
`

func (s *Store) ListRequestTypes(ctx context.Context) ([]RequestType, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, description, requires_manager_approval, requires_hr_approval, max_advance_days, created_at
    FROM request_types
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []RequestType
	for rows.Next() {
		var t RequestType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.RequiresManagerApproval, &t.RequiresHRApproval, &t.MaxAdvanceDays, &t.CreatedAt); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *Store) GetRequest(ctx context.Context, id string) (Request, error) {
	return getRequest(ctx, s.DB, id, false)
}

func (s *Store) ListRequests(ctx context.Context, filter Filter) (ListResult, error) {
	where, args := buildRequestFilter(filter)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM requests r"+where, args...).Scan(&total); err != nil {
		return ListResult{}, err
	}

	query := requestSelect + where + " ORDER BY r.created_at DESC, r.id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()

	items := []Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return ListResult{}, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

func buildRequestFilter(filter Filter) (string, []any) {
	var clauses []string
	var args []any
	if filter.EmployeeIDs != nil {
		args = append(args, filter.EmployeeIDs)
		clauses = append(clauses, fmt.Sprintf("r.employee_id = ANY($%d::uuid[])", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func getRequest(ctx context.Context, db querier.Querier, id string, forUpdate bool) (Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, apperror.NotFound("request")
	}
	query := requestSelect + " WHERE r.id = $1"
	if forUpdate {
		query += " FOR UPDATE OF r"
	}
	r, err := scanRequest(db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, apperror.NotFound("request")
	}
	return r, err
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		r                               Request
		empFirst, empLast, empCode      string
		typeName                        string
		startTime, endTime              *string
		managerStatus, hrStatus, status string
		maFirst, maLast, maCode         *string
		haFirst, haLast, haCode         *string
	)
	err := row.Scan(
		&r.ID, &r.EmployeeID, &empFirst, &empLast, &empCode,
		&r.RequestTypeID, &typeName,
		&r.StartDate, &r.EndDate, &startTime, &endTime,
		&r.Reason, &status,
		&managerStatus, &r.ManagerApproval.DecidedAt, &r.ManagerApproval.Comment, &r.ManagerApproval.ApproverID,
		&maFirst, &maLast, &maCode,
		&hrStatus, &r.HRApproval.DecidedAt, &r.HRApproval.Comment, &r.HRApproval.ApproverID,
		&haFirst, &haLast, &haCode,
		&r.TotalDays, &r.TotalMinutes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return Request{}, err
	}

	r.TotalHours = balance.MinutesToHours(r.TotalMinutes)
	r.Status = Status(status)
	r.ManagerApproval.Status = ApprovalStatus(managerStatus)
	r.HRApproval.Status = ApprovalStatus(hrStatus)
	r.Employee = &employee.Summary{ID: r.EmployeeID, Name: empFirst + " " + empLast, Code: empCode}
	r.RequestType = &TypeSummary{ID: r.RequestTypeID, Name: typeName}
	r.ManagerApproval.Approver = approverSummary(r.ManagerApproval.ApproverID, maFirst, maLast, maCode)
	r.HRApproval.Approver = approverSummary(r.HRApproval.ApproverID, haFirst, haLast, haCode)

	if r.StartTime, err = parseOptionalTime(startTime); err != nil {
		return Request{}, err
	}
	if r.EndTime, err = parseOptionalTime(endTime); err != nil {
		return Request{}, err
	}
	return r, nil
}

func approverSummary(id, first, last, code *string) *employee.Summary {
	if id == nil || first == nil {
		return nil
	}
	summary := employee.Summary{ID: *id, Name: *first + " " + deref(last)}
	summary.Code = deref(code)
	return &summary
}

func parseOptionalTime(raw *string) (*TimeOfDay, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := ParseTimeOfDay(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalTime(t *TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func insertRequest(ctx context.Context, db querier.Querier, r Request) error {
	_, err := db.Exec(ctx, `
    INSERT INTO requests (
      id, employee_id, request_type_id, start_date, end_date, start_time, end_time, reason, status,
      manager_approval_status, manager_decided_at, manager_comment, manager_approver_id,
      hr_approval_status, hr_decided_at, hr_comment, hr_approver_id,
      total_days, total_minutes, created_at, updated_at
    )
    VALUES ($1,$2,$3,$4,$5,$6::time,$7::time,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
  `,
		r.ID, r.EmployeeID, r.RequestTypeID, dateParam(r.StartDate), dateParam(r.EndDate),
		optionalTime(r.StartTime), optionalTime(r.EndTime), r.Reason, string(r.Status),
		string(r.ManagerApproval.Status), r.ManagerApproval.DecidedAt, r.ManagerApproval.Comment, r.ManagerApproval.ApproverID,
		string(r.HRApproval.Status), r.HRApproval.DecidedAt, r.HRApproval.Comment, r.HRApproval.ApproverID,
		r.TotalDays, r.TotalMinutes, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

// updateRequest writes the mutable lifecycle columns. Dates, times and
// totals are frozen at submission and never rewritten.
func updateRequest(ctx context.Context, db querier.Querier, r Request) error {
	tag, err := db.Exec(ctx, `
    UPDATE requests
    SET status = $2,
        manager_approval_status = $3, manager_decided_at = $4, manager_comment = $5, manager_approver_id = $6,
        hr_approval_status = $7, hr_decided_at = $8, hr_comment = $9, hr_approver_id = $10,
        updated_at = $11
    WHERE id = $1
  `,
		r.ID, string(r.Status),
		string(r.ManagerApproval.Status), r.ManagerApproval.DecidedAt, r.ManagerApproval.Comment, r.ManagerApproval.ApproverID,
		string(r.HRApproval.Status), r.HRApproval.DecidedAt, r.HRApproval.Comment, r.HRApproval.ApproverID,
		r.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("request")
	}
	return nil
}

func dateParam(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

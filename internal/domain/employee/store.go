package employee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/domain/balance"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const employeeColumns = `id, employee_code, first_name, last_name, email, is_hr, is_active, manager_id, department_id, password_hash, created_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.EmployeeCode, &e.FirstName, &e.LastName, &e.Email, &e.IsHR, &e.IsActive, &e.ManagerID, &e.DepartmentID, &e.PasswordHash, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, apperror.NotFound("employee")
	}
	return e, err
}

func (s *Store) GetEmployee(ctx context.Context, id string) (Employee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Employee{}, apperror.NotFound("employee")
	}
	return scanEmployee(s.DB.QueryRow(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE id = $1
  `, id))
}

func (s *Store) FindActiveByEmail(ctx context.Context, email string) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE lower(email) = lower($1) AND is_active = true
  `, email))
}

func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees WHERE lower(email) = lower($1)", email).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) SubordinateIDs(ctx context.Context, managerID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM employees WHERE manager_id = $1", managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListSubordinates(ctx context.Context, managerID string) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE manager_id = $1
    ORDER BY last_name, first_name
  `, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListEmployees(ctx context.Context, filter ListFilter) ([]Employee, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.DepartmentID != "" {
		if _, err := uuid.Parse(filter.DepartmentID); err != nil {
			return nil, 0, nil
		}
		args = append(args, filter.DepartmentID)
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.DB.Query(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE `+clause+fmt.Sprintf(`
    ORDER BY last_name, first_name, id
    LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (s *Store) CreateEmployee(ctx context.Context, e Employee, year int, totals balance.Totals) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Warn("employee create rollback failed", "err", err)
		}
	}()

	if _, err := tx.Exec(ctx, `
    INSERT INTO employees (id, employee_code, first_name, last_name, email, password_hash, is_hr, is_active, manager_id, department_id)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
  `, e.ID, e.EmployeeCode, e.FirstName, e.LastName, e.Email, e.PasswordHash, e.IsHR, e.IsActive, e.ManagerID, e.DepartmentID); err != nil {
		return uniqueViolation(err)
	}

	if _, err := balance.NewPGStore(tx).GetOrCreate(ctx, e.ID, year, totals); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) UpdateEmployee(ctx context.Context, e Employee) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET employee_code = $2, first_name = $3, last_name = $4, email = $5, password_hash = $6,
        is_hr = $7, is_active = $8, manager_id = $9, department_id = $10
    WHERE id = $1
  `, e.ID, e.EmployeeCode, e.FirstName, e.LastName, e.Email, e.PasswordHash, e.IsHR, e.IsActive, e.ManagerID, e.DepartmentID)
	if err != nil {
		return uniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("employee")
	}
	return nil
}

// uniqueViolation turns a lost race on the email or code indexes into the
// same errors the pre-insert checks return.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "idx_employees_email":
		return ErrEmailTaken
	case "idx_departments_name":
		return ErrDepartmentNameTaken
	}
	return apperror.InvalidState("employee code already in use")
}

package employee

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"hrleave/internal/domain/apperror"
)

const departmentColumns = `d.id, d.name, d.description, d.created_at, d.updated_at,
    (SELECT COUNT(1) FROM employees e WHERE e.department_id = d.id)`

func scanDepartment(row pgx.Row) (Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt, &d.EmployeeCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, apperror.NotFound("department")
	}
	return d, err
}

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+departmentColumns+`
    FROM departments d
    ORDER BY d.name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetDepartment(ctx context.Context, id string) (Department, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Department{}, apperror.NotFound("department")
	}
	return scanDepartment(s.DB.QueryRow(ctx, `
    SELECT `+departmentColumns+`
    FROM departments d
    WHERE d.id = $1
  `, id))
}

func (s *Store) CreateDepartment(ctx context.Context, d Department) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO departments (id, name, description, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5)
  `, d.ID, d.Name, d.Description, d.CreatedAt, d.UpdatedAt)
	return uniqueViolation(err)
}

func (s *Store) UpdateDepartment(ctx context.Context, d Department) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE departments
    SET name = $2, description = $3, updated_at = $4
    WHERE id = $1
  `, d.ID, d.Name, d.Description, d.UpdatedAt)
	if err != nil {
		return uniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("department")
	}
	return nil
}

// DeleteDepartment removes d only when no employee row references it. The
// foreign key catches an employee assigned between the check and the delete.
func (s *Store) DeleteDepartment(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.NotFound("department")
	}
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM departments d
    WHERE d.id = $1
      AND NOT EXISTS (SELECT 1 FROM employees e WHERE e.department_id = d.id)
  `, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrDepartmentInUse
		}
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetDepartment(ctx, id); err != nil {
		return err
	}
	return ErrDepartmentInUse
}

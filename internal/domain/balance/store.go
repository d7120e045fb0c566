package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/platform/querier"
)

// PGStore reads and writes employee_balances. Bound to a pgx.Tx, the row
// returned by GetOrCreate stays locked until commit or rollback.
type PGStore struct {
	DB querier.Querier
}

func NewPGStore(db querier.Querier) *PGStore {
	return &PGStore{DB: db}
}

const balanceColumns = `id, employee_id, year, vacation_days_total, vacation_days_used, wfh_days_total, wfh_days_used,
    late_early_minutes_total, late_early_minutes_used, created_at, updated_at`

func (s *PGStore) GetOrCreate(ctx context.Context, employeeID string, year int, defaults Totals) (EmployeeBalance, error) {
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO employee_balances (id, employee_id, year, vacation_days_total, wfh_days_total, late_early_minutes_total)
    VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (employee_id, year) DO NOTHING
  `, uuid.NewString(), employeeID, year, defaults.VacationDays, defaults.WFHDays, defaults.LateEarlyMinutes); err != nil {
		return EmployeeBalance{}, fmt.Errorf("ensure balance: %w", err)
	}

	var b EmployeeBalance
	err := s.DB.QueryRow(ctx, `
    SELECT `+balanceColumns+`
    FROM employee_balances
    WHERE employee_id = $1 AND year = $2
    FOR UPDATE
  `, employeeID, year).Scan(
		&b.ID, &b.EmployeeID, &b.Year,
		&b.VacationDaysTotal, &b.VacationDaysUsed,
		&b.WFHDaysTotal, &b.WFHDaysUsed,
		&b.LateEarlyMinutesTotal, &b.LateEarlyMinutesUsed,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return EmployeeBalance{}, apperror.NotFound("balance")
	}
	if err != nil {
		return EmployeeBalance{}, err
	}
	return b, nil
}

func (s *PGStore) SaveUsed(ctx context.Context, b EmployeeBalance) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employee_balances
    SET vacation_days_used = $3, wfh_days_used = $4, late_early_minutes_used = $5, updated_at = now()
    WHERE employee_id = $1 AND year = $2
  `, b.EmployeeID, b.Year, b.VacationDaysUsed, b.WFHDaysUsed, b.LateEarlyMinutesUsed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("balance")
	}
	return nil
}

func (s *PGStore) ListForEmployee(ctx context.Context, employeeID string) ([]EmployeeBalance, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+balanceColumns+`
    FROM employee_balances
    WHERE employee_id = $1
    ORDER BY year DESC
  `, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmployeeBalance
	for rows.Next() {
		var b EmployeeBalance
		if err := rows.Scan(
			&b.ID, &b.EmployeeID, &b.Year,
			&b.VacationDaysTotal, &b.VacationDaysUsed,
			&b.WFHDaysTotal, &b.WFHDaysUsed,
			&b.LateEarlyMinutesTotal, &b.LateEarlyMinutesUsed,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

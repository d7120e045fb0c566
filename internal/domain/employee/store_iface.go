package employee

import (
	"context"

	"hrleave/internal/domain/balance"
)

type StoreAPI interface {
	GetEmployee(ctx context.Context, id string) (Employee, error)
	FindActiveByEmail(ctx context.Context, email string) (Employee, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	SubordinateIDs(ctx context.Context, managerID string) ([]string, error)
	ListSubordinates(ctx context.Context, managerID string) ([]Employee, error)
	ListEmployees(ctx context.Context, filter ListFilter) ([]Employee, int, error)
	// CreateEmployee inserts e and its balance row for year in one transaction.
	CreateEmployee(ctx context.Context, e Employee, year int, totals balance.Totals) error
	UpdateEmployee(ctx context.Context, e Employee) error

	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, id string) (Department, error)
	CreateDepartment(ctx context.Context, d Department) error
	UpdateDepartment(ctx context.Context, d Department) error
	// DeleteDepartment fails with ErrDepartmentInUse while any employee,
	// active or not, still belongs to it.
	DeleteDepartment(ctx context.Context, id string) error
}

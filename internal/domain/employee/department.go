package employee

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"hrleave/internal/domain/apperror"
)

func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.Store.ListDepartments(ctx)
}

func (s *Service) GetDepartment(ctx context.Context, id string) (Department, error) {
	return s.Store.GetDepartment(ctx, id)
}

func (s *Service) CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return Department{}, apperror.Validation("department name is required")
	}
	now := s.Now()
	d := Department{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(*in.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Description != nil {
		d.Description = strings.TrimSpace(*in.Description)
	}
	if err := s.Store.CreateDepartment(ctx, d); err != nil {
		return Department{}, err
	}
	return d, nil
}

func (s *Service) UpdateDepartment(ctx context.Context, id string, in DepartmentInput) (Department, error) {
	d, err := s.Store.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Department{}, apperror.Validation("department name is required")
		}
		d.Name = name
	}
	if in.Description != nil {
		d.Description = strings.TrimSpace(*in.Description)
	}
	d.UpdatedAt = s.Now()
	if err := s.Store.UpdateDepartment(ctx, d); err != nil {
		return Department{}, err
	}
	return d, nil
}

func (s *Service) DeleteDepartment(ctx context.Context, id string) error {
	return s.Store.DeleteDepartment(ctx, id)
}

package db

import (
	"context"

	"github.com/google/uuid"

	"hrleave/internal/domain/requests"
	"hrleave/internal/platform/querier"
)

// SeedRequestTypes inserts the default catalog. Existing names are left untouched.
func SeedRequestTypes(ctx context.Context, q querier.Querier) error {
	for _, rt := range requests.DefaultTypes() {
		_, err := q.Exec(ctx, `
      INSERT INTO request_types (id, name, description, requires_manager_approval, requires_hr_approval, max_advance_days)
      VALUES ($1, $2, $3, $4, $5, $6)
      ON CONFLICT (name) DO NOTHING
    `, uuid.NewString(), rt.Name, rt.Description, rt.RequiresManagerApproval, rt.RequiresHRApproval, rt.MaxAdvanceDays)
		if err != nil {
			return err
		}
	}
	return nil
}

package requests

import (
	"context"
	"math"
	"time"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/domain/balance"
)

// Validator enforces submission-time policy for a draft whose request type
// has already been resolved.
type Validator struct {
	Ledger balance.Ledger
	Now    func() time.Time
}

// Validate checks range, advance notice, duration and balance, in that
// order, and returns the frozen cost of the request.
func (v Validator) Validate(ctx context.Context, store balance.Store, rt RequestType, d Draft) (Duration, error) {
	if d.StartDate.IsZero() || d.EndDate.IsZero() {
		return Duration{}, apperror.Validation("start and end date are required")
	}
	if d.StartDate.After(d.EndDate) {
		return Duration{}, apperror.InvalidRange()
	}

	if DaysUntil(v.now(), d.StartDate) > rt.MaxAdvanceDays {
		return Duration{}, apperror.AdvanceWindowExceeded(rt.MaxAdvanceDays)
	}

	dur, err := ComputeDuration(rt.Category(), d.StartDate, d.EndDate, d.StartTime, d.EndTime)
	if err != nil {
		return Duration{}, err
	}

	if err := v.Ledger.CheckSufficient(ctx, store, d.EmployeeID, rt.Category(), dur.Days, dur.Minutes, d.StartDate.Year()); err != nil {
		return Duration{}, err
	}
	return dur, nil
}

// DaysUntil is the number of days from now to start, rounded up. Past
// dates yield zero or a negative count.
func DaysUntil(now, start time.Time) int {
	return int(math.Ceil(start.Sub(now).Hours() / 24))
}

func (v Validator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

package balance

import (
	"math"
	"time"
)

// Category is the request-type name that selects duration semantics and
// the entitlement pool a request draws from.
type Category string

const (
	CategoryVacation       Category = "vacation"
	CategoryWorkFromHome   Category = "work_from_home"
	CategoryLateArrival    Category = "late_arrival"
	CategoryEarlyDeparture Category = "early_departure"
)

type Pool string

const (
	PoolNone      Pool = ""
	PoolVacation  Pool = "vacation"
	PoolWFH       Pool = "work_from_home"
	PoolLateEarly Pool = "late_early"
)

func PoolFor(category Category) Pool {
	switch category {
	case CategoryVacation:
		return PoolVacation
	case CategoryWorkFromHome:
		return PoolWFH
	case CategoryLateArrival, CategoryEarlyDeparture:
		return PoolLateEarly
	default:
		return PoolNone
	}
}

// IsHourBased reports whether the category is measured in hours rather than working days.
func (c Category) IsHourBased() bool {
	return PoolFor(c) == PoolLateEarly
}

func (c Category) IsDayBased() bool {
	p := PoolFor(c)
	return p == PoolVacation || p == PoolWFH
}

type Totals struct {
	VacationDays     int `json:"vacationDays"`
	WFHDays          int `json:"wfhDays"`
	LateEarlyMinutes int `json:"lateEarlyMinutes"`
}

var DefaultTotals = Totals{VacationDays: 21, WFHDays: 24, LateEarlyMinutes: 40 * 60}

// HoursToMinutes converts a configured hour quota to whole minutes.
func HoursToMinutes(hours float64) int {
	return int(math.Round(hours * 60))
}

// MinutesToHours is for presentation only. Quotas are counted in minutes.
func MinutesToHours(minutes int) float64 {
	return float64(minutes) / 60
}

// EmployeeBalance holds one employee's quotas for one year. The late/early
// pool is kept in whole minutes so that sums of fractional-hour requests
// stay exact.
type EmployeeBalance struct {
	ID                    string    `json:"id"`
	EmployeeID            string    `json:"employeeId"`
	Year                  int       `json:"year"`
	VacationDaysTotal     int       `json:"vacationDaysTotal"`
	VacationDaysUsed      int       `json:"vacationDaysUsed"`
	WFHDaysTotal          int       `json:"wfhDaysTotal"`
	WFHDaysUsed           int       `json:"wfhDaysUsed"`
	LateEarlyMinutesTotal int       `json:"lateEarlyMinutesTotal"`
	LateEarlyMinutesUsed  int       `json:"lateEarlyMinutesUsed"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func NewEmployeeBalance(employeeID string, year int, totals Totals) EmployeeBalance {
	return EmployeeBalance{
		EmployeeID:            employeeID,
		Year:                  year,
		VacationDaysTotal:     totals.VacationDays,
		WFHDaysTotal:          totals.WFHDays,
		LateEarlyMinutesTotal: totals.LateEarlyMinutes,
	}
}

func (b EmployeeBalance) VacationDaysRemaining() int {
	return b.VacationDaysTotal - b.VacationDaysUsed
}

func (b EmployeeBalance) WFHDaysRemaining() int {
	return b.WFHDaysTotal - b.WFHDaysUsed
}

func (b EmployeeBalance) LateEarlyMinutesRemaining() int {
	return b.LateEarlyMinutesTotal - b.LateEarlyMinutesUsed
}

// Remaining returns the remaining quota of pool p in the pool's own unit:
// days for vacation and WFH, minutes for late/early.
func (b EmployeeBalance) Remaining(p Pool) int {
	switch p {
	case PoolVacation:
		return b.VacationDaysRemaining()
	case PoolWFH:
		return b.WFHDaysRemaining()
	case PoolLateEarly:
		return b.LateEarlyMinutesRemaining()
	default:
		return 0
	}
}

// Available is Remaining expressed the way clients read it: days, or
// fractional hours for the late/early pool.
func (b EmployeeBalance) Available(p Pool) float64 {
	if p == PoolLateEarly {
		return MinutesToHours(b.Remaining(p))
	}
	return float64(b.Remaining(p))
}

// View is the read model returned to clients, with remaining amounts derived.
type View struct {
	EmployeeBalance
	VacationDaysRemaining     int     `json:"vacationDaysRemaining"`
	WFHDaysRemaining          int     `json:"wfhDaysRemaining"`
	LateEarlyMinutesRemaining int     `json:"lateEarlyMinutesRemaining"`
	LateEarlyHoursTotal       float64 `json:"lateEarlyHoursTotal"`
	LateEarlyHoursUsed        float64 `json:"lateEarlyHoursUsed"`
	LateEarlyHoursRemaining   float64 `json:"lateEarlyHoursRemaining"`
}

func (b EmployeeBalance) View() View {
	return View{
		EmployeeBalance:           b,
		VacationDaysRemaining:     b.VacationDaysRemaining(),
		WFHDaysRemaining:          b.WFHDaysRemaining(),
		LateEarlyMinutesRemaining: b.LateEarlyMinutesRemaining(),
		LateEarlyHoursTotal:       MinutesToHours(b.LateEarlyMinutesTotal),
		LateEarlyHoursUsed:        MinutesToHours(b.LateEarlyMinutesUsed),
		LateEarlyHoursRemaining:   MinutesToHours(b.LateEarlyMinutesRemaining()),
	}
}

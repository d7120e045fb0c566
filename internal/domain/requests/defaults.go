package requests

import "hrleave/internal/domain/balance"

// DefaultTypes is the seeded catalog. IDs are assigned by the store.
func DefaultTypes() []RequestType {
	return []RequestType{
		{
			Name:                    string(balance.CategoryVacation),
			Description:             "Paid annual leave, counted in working days",
			RequiresManagerApproval: true,
			RequiresHRApproval:      true,
			MaxAdvanceDays:          90,
		},
		{
			Name:                    string(balance.CategoryWorkFromHome),
			Description:             "Working remotely, counted in working days",
			RequiresManagerApproval: true,
			MaxAdvanceDays:          30,
		},
		{
			Name:                    string(balance.CategoryLateArrival),
			Description:             "Arriving late, counted in hours",
			RequiresManagerApproval: true,
			MaxAdvanceDays:          30,
		},
		{
			Name:                    string(balance.CategoryEarlyDeparture),
			Description:             "Leaving early, counted in hours",
			RequiresManagerApproval: true,
			MaxAdvanceDays:          30,
		},
		{
			Name:                    "sick_leave",
			Description:             "Sick leave, not drawn from any balance",
			RequiresManagerApproval: true,
			RequiresHRApproval:      true,
			MaxAdvanceDays:          7,
		},
	}
}

package auth

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
)

const (
	PermRequestsRead     = "requests.read"
	PermRequestsWrite    = "requests.write"
	PermRequestsApprove  = "requests.approve"
	PermRequestsReadAll  = "requests.read_all"
	PermBalancesRead     = "balances.read"
	PermBalancesReadTeam = "balances.read_team"
	PermEmployeesRead    = "employees.read"
	PermEmployeesReadAll = "employees.read_all"
	PermEmployeesWrite   = "employees.write"
	PermDepartmentsRead  = "departments.read"
	PermDepartmentsWrite = "departments.write"
	PermAuditRead        = "audit.read"
	PermMetricsRead      = "metrics.read"
)

// RolePermissions lists the grants each role adds on top of the roles it
// inherits through RoleInheritance.
//
// Approving and viewing a report's balance are granted to every employee:
// the role in a token is fixed at login, so whether the caller manages the
// subject is decided per request against the current reporting line.
var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermRequestsRead,
		PermRequestsWrite,
		PermRequestsApprove,
		PermBalancesRead,
		PermBalancesReadTeam,
		PermEmployeesRead,
		PermDepartmentsRead,
	},
	RoleManager: {},
	RoleHR: {
		PermRequestsReadAll,
		PermEmployeesReadAll,
		PermEmployeesWrite,
		PermDepartmentsWrite,
		PermAuditRead,
		PermMetricsRead,
	},
}

// RoleInheritance maps a role to the role whose grants it also holds.
var RoleInheritance = map[string]string{
	RoleManager: RoleEmployee,
	RoleHR:      RoleManager,
}

// RoleFor picks the coarse role carried in the token. Only the "is HR"
// flag and the existence of direct reports are considered.
func RoleFor(isHR, hasReports bool) string {
	switch {
	case isHR:
		return RoleHR
	case hasReports:
		return RoleManager
	default:
		return RoleEmployee
	}
}

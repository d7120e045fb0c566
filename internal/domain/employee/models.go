package employee

import "time"

type Employee struct {
	ID           string    `json:"id"`
	EmployeeCode string    `json:"employeeCode"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	IsHR         bool      `json:"isHr"`
	IsActive     bool      `json:"isActive"`
	ManagerID    *string   `json:"managerId,omitempty"`
	DepartmentID *string   `json:"departmentId,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (e Employee) DisplayName() string {
	return e.FirstName + " " + e.LastName
}

func (e Employee) Summary() Summary {
	return Summary{ID: e.ID, Name: e.DisplayName(), Code: e.EmployeeCode}
}

// ManagedBy reports whether managerID is e's direct manager.
func (e Employee) ManagedBy(managerID string) bool {
	return e.ManagerID != nil && *e.ManagerID != "" && *e.ManagerID == managerID
}

// Summary is the non-sensitive projection embedded in request read models.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type CreateInput struct {
	EmployeeCode string
	FirstName    string
	LastName     string
	Email        string
	Password     string
	IsHR         bool
	ManagerID    *string
	DepartmentID *string
}

// UpdateInput is a partial change: nil fields are left alone. An empty
// ManagerID or DepartmentID clears the link.
type UpdateInput struct {
	EmployeeCode *string
	FirstName    *string
	LastName     *string
	Email        *string
	Password     *string
	IsHR         *bool
	IsActive     *bool
	ManagerID    *string
	DepartmentID *string
}

type ListFilter struct {
	DepartmentID string

	// Active narrows to active (true) or inactive (false) employees when set.
	Active *bool

	Limit  int
	Offset int
}

type Department struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	EmployeeCount int       `json:"employeeCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type DepartmentInput struct {
	Name        *string
	Description *string
}

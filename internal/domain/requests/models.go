package requests

import (
	"time"

	"hrleave/internal/domain/balance"
	"hrleave/internal/domain/employee"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type RequestType struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Description             string    `json:"description,omitempty"`
	RequiresManagerApproval bool      `json:"requiresManagerApproval"`
	RequiresHRApproval      bool      `json:"requiresHrApproval"`
	MaxAdvanceDays          int       `json:"maxAdvanceDays"`
	CreatedAt               time.Time `json:"createdAt"`
}

func (t RequestType) Category() balance.Category {
	return balance.Category(t.Name)
}

func (t RequestType) Summary() TypeSummary {
	return TypeSummary{ID: t.ID, Name: t.Name}
}

type TypeSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Approval is one of the two inline decision tracks of a request.
type Approval struct {
	Status     ApprovalStatus    `json:"status"`
	DecidedAt  *time.Time        `json:"decidedAt,omitempty"`
	Comment    string            `json:"comment,omitempty"`
	ApproverID *string           `json:"approverId,omitempty"`
	Approver   *employee.Summary `json:"approver,omitempty"`
}

type Request struct {
	ID              string            `json:"id"`
	EmployeeID      string            `json:"employeeId"`
	Employee        *employee.Summary `json:"employee,omitempty"`
	RequestTypeID   string            `json:"requestTypeId"`
	RequestType     *TypeSummary      `json:"requestType,omitempty"`
	StartDate       time.Time         `json:"startDate"`
	EndDate         time.Time         `json:"endDate"`
	StartTime       *TimeOfDay        `json:"startTime,omitempty"`
	EndTime         *TimeOfDay        `json:"endTime,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	Status          Status            `json:"status"`
	ManagerApproval Approval          `json:"managerApproval"`
	HRApproval      Approval          `json:"hrApproval"`
	TotalDays       int               `json:"totalDays"`
	TotalMinutes    int               `json:"totalMinutes"`
	TotalHours      float64           `json:"totalHours"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// setTotals freezes the request's cost. TotalHours is derived from
// TotalMinutes and only ever read by clients.
func (r *Request) setTotals(d Duration) {
	r.TotalDays = d.Days
	r.TotalMinutes = d.Minutes
	r.TotalHours = d.Hours()
}

// BalanceYear is the entitlement year a request draws from.
func (r Request) BalanceYear() int {
	return r.StartDate.Year()
}

// Draft is the submitter's input.
type Draft struct {
	EmployeeID    string
	RequestTypeID string
	StartDate     time.Time
	EndDate       time.Time
	StartTime     *TimeOfDay
	EndTime       *TimeOfDay
	Reason        string
}

type Filter struct {
	// EmployeeIDs restricts results to these owners. Nil means every employee.
	EmployeeIDs []string
	Status      Status
	Limit       int
	Offset      int
}

type ListResult struct {
	Items []Request `json:"items"`
	Total int       `json:"total"`
}

// Caller is the authenticated actor as asserted by the identity layer.
type Caller struct {
	EmployeeID string
	IsHR       bool
}

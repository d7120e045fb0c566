package requests

import (
	"time"

	"hrleave/internal/domain/apperror"
)

type Role string

const (
	RoleManager Role = "manager"
	RoleHR      Role = "hr"
)

func (r Role) Valid() bool {
	return r == RoleManager || r == RoleHR
}

type Decision struct {
	RequestID  string
	ApproverID string
	Role       Role
	Approved   bool
	Comment    string
}

// Combine derives the overall status from the two approval tracks.
//
//	requiresHR  manager   hr        overall
//	false       approved  -         approved
//	false       rejected  -         rejected
//	true        approved  approved  approved
//	true        rejected  any       rejected
//	true        any       rejected  rejected
//	any         otherwise           pending
func Combine(requiresHR bool, manager, hr ApprovalStatus) Status {
	if manager == ApprovalRejected {
		return StatusRejected
	}
	if requiresHR && hr == ApprovalRejected {
		return StatusRejected
	}
	if manager != ApprovalApproved {
		return StatusPending
	}
	if !requiresHR || hr == ApprovalApproved {
		return StatusApproved
	}
	return StatusPending
}

// applyDecision records d on the matching track and recomputes the overall
// status. It reports whether the request has just become approved.
// Authorisation of the approver is the caller's job.
func (r *Request) applyDecision(d Decision, requiresHR bool, now time.Time) (bool, error) {
	if r.Status != StatusPending {
		return false, apperror.InvalidState("request is already " + string(r.Status))
	}

	var track *Approval
	switch d.Role {
	case RoleManager:
		track = &r.ManagerApproval
	case RoleHR:
		if !requiresHR {
			return false, apperror.InvalidState("request type does not require hr approval")
		}
		track = &r.HRApproval
	default:
		return false, apperror.Validation("unknown approver role " + string(d.Role))
	}
	if track.Status != ApprovalPending {
		return false, apperror.InvalidState(string(d.Role) + " has already decided this request")
	}

	decidedAt := now
	approverID := d.ApproverID
	track.Status = ApprovalRejected
	if d.Approved {
		track.Status = ApprovalApproved
	}
	track.DecidedAt = &decidedAt
	track.Comment = d.Comment
	track.ApproverID = &approverID
	track.Approver = nil

	r.Status = Combine(requiresHR, r.ManagerApproval.Status, r.HRApproval.Status)
	r.UpdatedAt = now
	return r.Status == StatusApproved, nil
}

// AwaitingHR reports whether r sits at the HR stage.
func AwaitingHR(r Request) bool {
	return r.Status == StatusPending &&
		r.HRApproval.Status == ApprovalPending &&
		r.ManagerApproval.Status == ApprovalApproved
}

// AwaitingManager reports whether r waits for a decision from the manager
// whose direct reports are in subordinates.
func AwaitingManager(r Request, subordinates map[string]struct{}) bool {
	if _, ok := subordinates[r.EmployeeID]; !ok {
		return false
	}
	return r.Status == StatusPending && r.ManagerApproval.Status == ApprovalPending
}

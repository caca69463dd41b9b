package models

import (
	"fmt"
	"strings"
	"time"
)

// RequestStatus captures workflow states for schedule change requests.
type RequestStatus string

const (
	RequestStatusPending     RequestStatus = "PENDING"
	RequestStatusUnderReview RequestStatus = "UNDER_REVIEW"
	RequestStatusApproved    RequestStatus = "APPROVED"
	RequestStatusRejected    RequestStatus = "REJECTED"
	RequestStatusCancelled   RequestStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is legal.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo centralises the legality of status transitions.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch s {
	case RequestStatusPending:
		switch next {
		case RequestStatusUnderReview, RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled:
			return true
		}
	case RequestStatusUnderReview:
		switch next {
		case RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled:
			return true
		}
	}
	return false
}

// Description maps each status to its fixed user-facing label.
func (s RequestStatus) Description() string {
	switch s {
	case RequestStatusPending:
		return "Pendiente de revisión"
	case RequestStatusUnderReview:
		return "En revisión"
	case RequestStatusApproved:
		return "Aprobada"
	case RequestStatusRejected:
		return "Rechazada"
	case RequestStatusCancelled:
		return "Cancelada"
	}
	return "Estado desconocido"
}

// ReviewStep is a single immutable entry in a request's review ledger.
type ReviewStep struct {
	ReviewerID   string    `db:"reviewer_id" json:"reviewer_id"`
	ReviewerRole UserRole  `db:"reviewer_role" json:"reviewer_role"`
	Action       string    `db:"action" json:"action"`
	Timestamp    time.Time `db:"created_at" json:"timestamp"`
	Comments     string    `db:"comments" json:"comments,omitempty"`
}

// RecentStepAge bounds how old a review step may be to count as recent.
const RecentStepAge = 7 * 24 * time.Hour

// IsRecent reports whether the step happened strictly less than seven days
// before now. A step exactly seven days old is not recent.
func (s ReviewStep) IsRecent(now time.Time) bool {
	return now.Sub(s.Timestamp) < RecentStepAge
}

// Description renders "{role} - {action}" with fixed fallbacks. A missing
// action dominates a missing role.
func (s ReviewStep) Description() string {
	action := strings.TrimSpace(s.Action)
	role := strings.TrimSpace(string(s.ReviewerRole))
	if action == "" {
		return "Sin acción"
	}
	if role == "" {
		return fmt.Sprintf("Sin rol - %s", action)
	}
	return fmt.Sprintf("%s - %s", role, action)
}

// ReviewHistory is an append-only ledger of review steps in insertion order.
// Steps are appended through the aggregate, never reordered or removed.
type ReviewHistory []ReviewStep

// StepCount returns the number of recorded steps.
func (h ReviewHistory) StepCount() int {
	return len(h)
}

// HasHistory reports whether at least one step was recorded.
func (h ReviewHistory) HasHistory() bool {
	return len(h) > 0
}

// LastStep returns the most recent step, nil when the ledger is empty.
func (h ReviewHistory) LastStep() *ReviewStep {
	if len(h) == 0 {
		return nil
	}
	step := h[len(h)-1]
	return &step
}

// ChangeRequest is the aggregate root for a student's move between groups.
type ChangeRequest struct {
	ID               string        `db:"id" json:"id"`
	StudentID        string        `db:"student_id" json:"student_id"`
	CurrentGroupID   string        `db:"current_group_id" json:"current_group_id"`
	RequestedGroupID string        `db:"requested_group_id" json:"requested_group_id"`
	Reason           string        `db:"reason" json:"reason"`
	Status           RequestStatus `db:"status" json:"status"`
	SubmissionDate   time.Time     `db:"submission_date" json:"submission_date"`
	ResolutionDate   *time.Time    `db:"resolution_date" json:"resolution_date,omitempty"`
	ReviewHistory    ReviewHistory `db:"-" json:"review_history"`
}

// NewChangeRequest establishes all aggregate invariants at construction.
func NewChangeRequest(studentID, currentGroupID, requestedGroupID, reason string, now time.Time) (*ChangeRequest, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, fmt.Errorf("student id is required")
	}
	if strings.TrimSpace(currentGroupID) == "" || strings.TrimSpace(requestedGroupID) == "" {
		return nil, fmt.Errorf("current and requested group ids are required")
	}
	if currentGroupID == requestedGroupID {
		return nil, fmt.Errorf("requested group must differ from current group")
	}
	return &ChangeRequest{
		StudentID:        studentID,
		CurrentGroupID:   currentGroupID,
		RequestedGroupID: requestedGroupID,
		Reason:           strings.TrimSpace(reason),
		Status:           RequestStatusPending,
		SubmissionDate:   now,
	}, nil
}

// IsResolved reports whether the request reached a reviewer decision.
// A cancelled request is closed but deliberately not "resolved".
func (r *ChangeRequest) IsResolved() bool {
	return r.Status == RequestStatusApproved || r.Status == RequestStatusRejected
}

// IsPendingOrUnderReview reports whether the request is still active.
func (r *ChangeRequest) IsPendingOrUnderReview() bool {
	return r.Status == RequestStatusPending || r.Status == RequestStatusUnderReview
}

// IsCancelled reports whether the student withdrew the request.
func (r *ChangeRequest) IsCancelled() bool {
	return r.Status == RequestStatusCancelled
}

// ProcessingDurationDays is the whole number of days between submission and
// resolution. Open requests are measured against now; a missing submission
// date yields zero.
func (r *ChangeRequest) ProcessingDurationDays(now time.Time) int {
	if r.SubmissionDate.IsZero() {
		return 0
	}
	end := now
	if r.ResolutionDate != nil {
		end = *r.ResolutionDate
	}
	return int(end.Sub(r.SubmissionDate) / (24 * time.Hour))
}

// StatusDescription returns the fixed label for the current status.
func (r *ChangeRequest) StatusDescription() string {
	return r.Status.Description()
}

// AppendReview adds a step to the ledger. Terminal requests reject appends.
func (r *ChangeRequest) AppendReview(step ReviewStep) error {
	if r.Status.IsTerminal() {
		return fmt.Errorf("cannot append review to %s request", r.Status)
	}
	r.ReviewHistory = append(r.ReviewHistory, step)
	return nil
}

// Transition moves the request to next, setting the resolution date exactly
// once when the new status is terminal.
func (r *ChangeRequest) Transition(next RequestStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal transition %s -> %s", r.Status, next)
	}
	r.Status = next
	if next.IsTerminal() {
		resolved := now
		r.ResolutionDate = &resolved
	}
	return nil
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	StudentID string
	GroupID   string
	Status    []RequestStatus
	Limit     int
	Offset    int
}

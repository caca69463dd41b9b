package models

// Eligibility rule identifiers surfaced when a request is refused.
const (
	EligibilityRuleAlreadyApproved   = "ALREADY_APPROVED"
	EligibilityRuleCurrentlyEnrolled = "CURRENTLY_ENROLLED"
	EligibilityRuleNoAvailableGroups = "NO_AVAILABLE_GROUPS"
)

// EligibilityResult is the outcome of evaluating whether a student may
// request a move into a course. Conflict detection is a separate check
// applied at request creation, not part of this verdict.
type EligibilityResult struct {
	StudentID            string `json:"student_id"`
	CourseID             string `json:"course_id"`
	Eligible             bool   `json:"eligible"`
	AlreadyApproved      bool   `json:"already_approved"`
	CurrentlyEnrolled    bool   `json:"currently_enrolled"`
	HasAvailableGroups   bool   `json:"has_available_groups"`
	AvailableGroupsCount int    `json:"available_groups_count"`
}

// FailedRule names the first rule that blocked eligibility, empty when eligible.
func (r EligibilityResult) FailedRule() string {
	switch {
	case r.Eligible:
		return ""
	case r.AlreadyApproved:
		return EligibilityRuleAlreadyApproved
	case r.CurrentlyEnrolled:
		return EligibilityRuleCurrentlyEnrolled
	case !r.HasAvailableGroups:
		return EligibilityRuleNoAvailableGroups
	}
	return ""
}

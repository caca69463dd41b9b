package dto

import "github.com/campus-adp/schedule-change-api/internal/models"

// CreateChangeRequest payload for opening a schedule change request.
type CreateChangeRequest struct {
	CurrentGroupID   string `json:"current_group_id" validate:"required"`
	RequestedGroupID string `json:"requested_group_id" validate:"required"`
	Reason           string `json:"reason" validate:"required"`
}

// RecordReviewRequest captures a reviewer's step on a request.
type RecordReviewRequest struct {
	Action   string `json:"action" validate:"required"`
	Comments string `json:"comments"`
}

// ResolveRequest carries the terminal reviewer decision.
type ResolveRequest struct {
	Decision models.RequestStatus `json:"decision" validate:"required"`
	Comments string               `json:"comments"`
}

// RequestQuery mirrors supported listing filters.
type RequestQuery struct {
	Status    []models.RequestStatus
	StudentID string
	GroupID   string
	Limit     int
	Offset    int
}

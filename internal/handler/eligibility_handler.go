package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campus-adp/schedule-change-api/internal/models"
	appErrors "github.com/campus-adp/schedule-change-api/pkg/errors"
	"github.com/campus-adp/schedule-change-api/pkg/response"
)

type eligibilityService interface {
	Evaluate(ctx context.Context, studentID, groupID string) (*models.EligibilityResult, error)
}

type capacityService interface {
	CapacityOf(ctx context.Context, group models.Group) (models.GroupCapacity, error)
}

type groupFinder interface {
	GroupByID(ctx context.Context, id string) (*models.Group, error)
}

// EligibilityHandler exposes the eligibility verdict and group capacity reads.
type EligibilityHandler struct {
	eligibility eligibilityService
	capacity    capacityService
	groups      groupFinder
}

// NewEligibilityHandler constructs the handler.
func NewEligibilityHandler(eligibility eligibilityService, capacity capacityService, groups groupFinder) *EligibilityHandler {
	return &EligibilityHandler{eligibility: eligibility, capacity: capacity, groups: groups}
}

// Evaluate godoc
// @Summary Evaluate change eligibility for a group
// @Tags Eligibility
// @Produce json
// @Param groupId path string true "Target group ID"
// @Param student_id query string false "Student ID (reviewers only)"
// @Success 200 {object} response.Envelope
// @Router /eligibility/{groupId} [get]
func (h *EligibilityHandler) Evaluate(c *gin.Context) {
	if h.eligibility == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "eligibility service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	studentID := claims.UserID
	if override := strings.TrimSpace(c.Query("student_id")); override != "" {
		if !claims.Role.IsReviewer() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only check their own eligibility"))
			return
		}
		studentID = override
	}

	result, err := h.eligibility.Evaluate(c.Request.Context(), studentID, c.Param("groupId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Capacity godoc
// @Summary Get capacity figures for a group
// @Tags Eligibility
// @Produce json
// @Param groupId path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{groupId}/capacity [get]
func (h *EligibilityHandler) Capacity(c *gin.Context) {
	if h.capacity == nil || h.groups == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "capacity service not configured"))
		return
	}
	group, err := h.groups.GroupByID(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "group not found"))
		return
	}
	capacity, err := h.capacity.CapacityOf(c.Request.Context(), *group)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity, nil)
}

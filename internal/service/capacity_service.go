package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/campus-adp/schedule-change-api/internal/models"
	appErrors "github.com/campus-adp/schedule-change-api/pkg/errors"
)

type enrollmentCounter interface {
	CountActive(ctx context.Context, groupID string) (int, error)
}

// CapacityService derives occupancy and availability for course groups.
// Enrollment counts are owned by the enrollment store; this service only reads.
type CapacityService struct {
	enrollment enrollmentCounter
	logger     *zap.Logger
}

// NewCapacityService constructs the service.
func NewCapacityService(enrollment enrollmentCounter, logger *zap.Logger) *CapacityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityService{enrollment: enrollment, logger: logger}
}

// CapacityOf computes the capacity summary for a group.
func (s *CapacityService) CapacityOf(ctx context.Context, group models.Group) (models.GroupCapacity, error) {
	current, err := s.enrollment.CountActive(ctx, group.ID)
	if err != nil {
		return models.GroupCapacity{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollment")
	}
	capacity := ComputeCapacity(group.Capacity, current)
	capacity.GroupID = group.ID
	return capacity, nil
}

// ComputeCapacity derives the capacity figures from raw counts. Available is
// signed so administrative over-enrollment shows as a negative number, and a
// zero-capacity group reports a 0.0 occupancy rate instead of dividing by zero.
func ComputeCapacity(max, current int) models.GroupCapacity {
	rate := 0.0
	if max > 0 {
		rate = 100.0 * float64(current) / float64(max)
	}
	return models.GroupCapacity{
		Max:           max,
		Current:       current,
		Available:     max - current,
		IsAvailable:   current < max,
		OccupancyRate: rate,
	}
}

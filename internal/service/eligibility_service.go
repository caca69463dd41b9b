package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campus-adp/schedule-change-api/internal/models"
	appErrors "github.com/campus-adp/schedule-change-api/pkg/errors"
)

type catalogStore interface {
	GroupByID(ctx context.Context, id string) (*models.Group, error)
	SectionsForCourse(ctx context.Context, courseID string) ([]models.Group, error)
}

type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, studentID, groupID string) (bool, error)
}

type academicHistory interface {
	HasApproved(ctx context.Context, studentID, courseID string) (bool, error)
}

type eligibilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// EligibilityService decides whether a student may request a move into a
// course group. It deliberately does not inspect the student's timetable:
// slot conflicts are a separate gate applied when the request is created.
type EligibilityService struct {
	catalog    catalogStore
	enrollment enrollmentChecker
	history    academicHistory
	capacity   *CapacityService
	cache      eligibilityCache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewEligibilityService constructs the service. Cache may be nil.
func NewEligibilityService(
	catalog catalogStore,
	enrollment enrollmentChecker,
	history academicHistory,
	capacity *CapacityService,
	cache eligibilityCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{
		catalog:    catalog,
		enrollment: enrollment,
		history:    history,
		capacity:   capacity,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Evaluate applies the eligibility rules for the target group. Unknown
// students or groups surface as lookup failures, never as a verdict.
func (s *EligibilityService) Evaluate(ctx context.Context, studentID, groupID string) (*models.EligibilityResult, error) {
	group, err := s.catalog.GroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	cacheKey := eligibilityCacheKey(studentID, group.ID)
	if s.cache != nil {
		var cached models.EligibilityResult
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	approved, err := s.history.HasApproved(ctx, studentID, group.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check academic history")
	}

	enrolled, err := s.enrollment.IsEnrolled(ctx, studentID, group.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	availableCount, err := s.countAvailableSections(ctx, group.CourseID)
	if err != nil {
		return nil, err
	}

	result := &models.EligibilityResult{
		StudentID:            studentID,
		CourseID:             group.CourseID,
		AlreadyApproved:      approved,
		CurrentlyEnrolled:    enrolled,
		HasAvailableGroups:   availableCount > 0,
		AvailableGroupsCount: availableCount,
	}
	result.Eligible = !approved && !enrolled && availableCount > 0

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache eligibility result", zap.Error(err))
		}
	}
	return result, nil
}

// InvalidateStudent drops cached eligibility verdicts for a student. Called
// after a request resolves, since the enrollment picture may have changed.
func (s *EligibilityService) InvalidateStudent(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("eligibility:%s:*", studentID)); err != nil {
		s.logger.Warn("failed to invalidate eligibility cache", zap.String("student_id", studentID), zap.Error(err))
	}
}

func (s *EligibilityService) countAvailableSections(ctx context.Context, courseID string) (int, error) {
	sections, err := s.catalog.SectionsForCourse(ctx, courseID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course sections")
	}
	count := 0
	for _, section := range sections {
		capacity, err := s.capacity.CapacityOf(ctx, section)
		if err != nil {
			return 0, err
		}
		if capacity.IsAvailable {
			count++
		}
	}
	return count, nil
}

func eligibilityCacheKey(studentID, groupID string) string {
	return fmt.Sprintf("eligibility:%s:%s", studentID, groupID)
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-adp/schedule-change-api/internal/dto"
	"github.com/campus-adp/schedule-change-api/internal/models"
	"github.com/campus-adp/schedule-change-api/internal/repository"
	appErrors "github.com/campus-adp/schedule-change-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, request *models.ChangeRequest) error
	GetByID(ctx context.Context, id string) (*models.ChangeRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.ChangeRequest, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
	AppendReviewStep(ctx context.Context, requestID string, step models.ReviewStep) error
}

type eligibilityEvaluator interface {
	Evaluate(ctx context.Context, studentID, groupID string) (*models.EligibilityResult, error)
	InvalidateStudent(ctx context.Context, studentID string)
}

type scheduleReader interface {
	ActiveGroupsOf(ctx context.Context, studentID string) ([]models.Group, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type decisionRecorder interface {
	RecordDecision(decision string)
}

// EnrollmentMover performs the actual group move once a request is approved.
// The move belongs to the enrollment system; the engine only hands over the
// approved request.
type EnrollmentMover interface {
	Apply(ctx context.Context, request *models.ChangeRequest) error
}

// EnrollmentMoverFunc allows using plain functions.
type EnrollmentMoverFunc func(ctx context.Context, request *models.ChangeRequest) error

// Apply implements EnrollmentMover.
func (f EnrollmentMoverFunc) Apply(ctx context.Context, request *models.ChangeRequest) error {
	return f(ctx, request)
}

// RequestService owns the change-request lifecycle: creation gates, review
// recording, terminal resolution and cancellation.
type RequestService struct {
	repo        requestStore
	catalog     catalogStore
	schedule    scheduleReader
	eligibility eligibilityEvaluator
	audit       auditLogger
	mover       EnrollmentMover
	decisions   decisionRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
	maxPageSize int
}

// RequestServiceOption configures the service.
type RequestServiceOption func(*RequestService)

// WithEnrollmentMover sets the collaborator invoked on approval.
func WithEnrollmentMover(mover EnrollmentMover) RequestServiceOption {
	return func(s *RequestService) {
		if mover != nil {
			s.mover = mover
		}
	}
}

// WithDecisionRecorder sets the collector notified on terminal decisions.
func WithDecisionRecorder(rec decisionRecorder) RequestServiceOption {
	return func(s *RequestService) {
		if rec != nil {
			s.decisions = rec
		}
	}
}

// WithMaxListPageSize caps the page size accepted by List.
func WithMaxListPageSize(size int) RequestServiceOption {
	return func(s *RequestService) {
		if size > 0 {
			s.maxPageSize = size
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) RequestServiceOption {
	return func(s *RequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRequestService constructs the service with defaults.
func NewRequestService(
	repo requestStore,
	catalog catalogStore,
	schedule scheduleReader,
	eligibility eligibilityEvaluator,
	audit auditLogger,
	validate *validator.Validate,
	logger *zap.Logger,
	opts ...RequestServiceOption,
) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RequestService{
		repo:        repo,
		catalog:     catalog,
		schedule:    schedule,
		eligibility: eligibility,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create opens a new request after the full gate: eligibility for the target
// course, no slot conflict against the rest of the student's schedule, and no
// other active request for the same pair. The duplicate check is atomic with
// the insert at the storage layer.
func (s *RequestService) Create(ctx context.Context, req dto.CreateChangeRequest, studentID string) (*models.ChangeRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change request payload")
	}

	request, err := models.NewChangeRequest(studentID, req.CurrentGroupID, req.RequestedGroupID, req.Reason, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	requested, err := s.catalog.GroupByID(ctx, req.RequestedGroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requested group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requested group")
	}
	if _, err := s.catalog.GroupByID(ctx, req.CurrentGroupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "current group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current group")
	}

	eligibility, err := s.eligibility.Evaluate(ctx, studentID, req.RequestedGroupID)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, appErrors.Clone(appErrors.ErrIneligible, ineligibleMessage(eligibility.FailedRule()))
	}

	if err := s.ensureNoConflict(ctx, studentID, req.CurrentGroupID, requested.Slot); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveRequest) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create change request")
	}

	s.emitAudit(ctx, studentID, models.AuditActionRequestCreate, request)
	return request, nil
}

// Get returns a request enforcing scope: students only see their own.
func (s *RequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && request.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// List returns accessible requests respecting actor role.
func (s *RequestService) List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.ChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.RequestFilter{
		Status:  query.Status,
		GroupID: query.GroupID,
		Limit:   query.Limit,
		Offset:  query.Offset,
	}
	if s.maxPageSize > 0 && (filter.Limit <= 0 || filter.Limit > s.maxPageSize) {
		filter.Limit = s.maxPageSize
	}
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.UserID
	} else {
		filter.StudentID = query.StudentID
	}
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list change requests")
	}
	return requests, nil
}

// RecordReview appends a step to the ledger. A reviewer's first step on a
// PENDING request also moves it to UNDER_REVIEW; a student step never does.
func (s *RequestService) RecordReview(ctx context.Context, id string, req dto.RecordReviewRequest, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	step := models.ReviewStep{
		ReviewerID:   actor.UserID,
		ReviewerRole: actor.Role,
		Action:       req.Action,
		Comments:     req.Comments,
		Timestamp:    s.now(),
	}
	if err := request.AppendReview(step); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cannot review a closed request")
	}
	if err := s.repo.AppendReviewStep(ctx, request.ID, step); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review step")
	}

	if request.Status == models.RequestStatusPending && actor.Role.IsReviewer() {
		err := s.repo.UpdateStatus(ctx, repository.UpdateStatusParams{
			ID:             request.ID,
			Status:         models.RequestStatusUnderReview,
			ExpectedStatus: []models.RequestStatus{models.RequestStatusPending},
		})
		switch {
		case err == nil:
			request.Status = models.RequestStatusUnderReview
		case errors.Is(err, sql.ErrNoRows):
			// a concurrent reviewer already moved it; the append still stands
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
		}
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionRequestReview, request)
	return request, nil
}

// Resolve applies the terminal reviewer decision. Resolving a request that is
// already terminal fails rather than silently succeeding.
func (s *RequestService) Resolve(ctx context.Context, id string, req dto.ResolveRequest, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsReviewer() {
		return nil, appErrors.ErrForbidden
	}
	if req.Decision != models.RequestStatusApproved && req.Decision != models.RequestStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrAlreadyResolved, "")
	}

	resolvedAt := s.now()
	if err := s.repo.UpdateStatus(ctx, repository.UpdateStatusParams{
		ID:             request.ID,
		Status:         req.Decision,
		ResolutionDate: &resolvedAt,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyResolved, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve request")
	}
	request.Status = req.Decision
	request.ResolutionDate = &resolvedAt

	if s.decisions != nil {
		s.decisions.RecordDecision(string(req.Decision))
	}

	if req.Decision == models.RequestStatusApproved {
		s.eligibility.InvalidateStudent(ctx, request.StudentID)
		if s.mover != nil {
			if err := s.mover.Apply(ctx, request); err != nil {
				s.logger.Error("enrollment move failed after approval",
					zap.String("request_id", request.ID), zap.Error(err))
			}
		}
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionRequestResolve, request)
	return request, nil
}

// Cancel withdraws the request. Only the owning student may cancel, and only
// while the request is still active.
func (s *RequestService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning student may cancel the request")
	}
	if request.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "request is already closed")
	}

	cancelledAt := s.now()
	if err := s.repo.UpdateStatus(ctx, repository.UpdateStatusParams{
		ID:             request.ID,
		Status:         models.RequestStatusCancelled,
		ResolutionDate: &cancelledAt,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "request is already closed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}
	request.Status = models.RequestStatusCancelled
	request.ResolutionDate = &cancelledAt

	s.emitAudit(ctx, actor.UserID, models.AuditActionRequestCancel, request)
	return request, nil
}

// ActiveScheduleOf returns the student's current weekly slots.
func (s *RequestService) ActiveScheduleOf(ctx context.Context, studentID string) ([]models.TimeSlot, error) {
	groups, err := s.schedule.ActiveGroupsOf(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student schedule")
	}
	slots := make([]models.TimeSlot, 0, len(groups))
	for _, group := range groups {
		slots = append(slots, group.Slot)
	}
	return slots, nil
}

// ensureNoConflict checks the requested slot against the student's active
// schedule, excluding the slot of the group being vacated.
func (s *RequestService) ensureNoConflict(ctx context.Context, studentID, vacatedGroupID string, candidate models.TimeSlot) error {
	groups, err := s.schedule.ActiveGroupsOf(ctx, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student schedule")
	}
	slots := make([]models.TimeSlot, 0, len(groups))
	for _, group := range groups {
		if group.ID == vacatedGroupID {
			continue
		}
		slots = append(slots, group.Slot)
	}
	conflicts := FindConflicts(candidate, slots)
	if len(conflicts) == 0 {
		return nil
	}
	domainErr := &models.SlotConflictError{Requested: candidate, Conflicts: conflicts}
	return appErrors.Wrap(domainErr, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status,
		fmt.Sprintf("schedule conflict: %s", domainErr.Error()))
}

func (s *RequestService) loadRequest(ctx context.Context, id string) (*models.ChangeRequest, error) {
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}
	return request, nil
}

func (s *RequestService) emitAudit(ctx context.Context, userID, action string, request *models.ChangeRequest) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(request)
	if err != nil {
		payload = nil
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "change_request",
		ResourceID: &request.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "request-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func ineligibleMessage(rule string) string {
	switch rule {
	case models.EligibilityRuleAlreadyApproved:
		return "student already approved this course"
	case models.EligibilityRuleCurrentlyEnrolled:
		return "student is already enrolled in the requested group"
	case models.EligibilityRuleNoAvailableGroups:
		return "no available sections for the requested course"
	}
	return ""
}

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campus-adp/schedule-change-api/internal/dto"
	"github.com/campus-adp/schedule-change-api/internal/models"
	"github.com/campus-adp/schedule-change-api/internal/repository"
	appErrors "github.com/campus-adp/schedule-change-api/pkg/errors"
)

var fixedNow = time.Date(2026, time.April, 6, 9, 0, 0, 0, time.UTC)

type requestStoreStub struct {
	requests  map[string]*models.ChangeRequest
	duplicate bool
	filter    models.RequestFilter
}

func newRequestStoreStub() *requestStoreStub {
	return &requestStoreStub{requests: make(map[string]*models.ChangeRequest)}
}

func (s *requestStoreStub) Create(ctx context.Context, request *models.ChangeRequest) error {
	if s.duplicate {
		return repository.ErrDuplicateActiveRequest
	}
	if request.ID == "" {
		request.ID = "req-1"
	}
	stored := *request
	s.requests[request.ID] = &stored
	return nil
}

func (s *requestStoreStub) GetByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	if request, ok := s.requests[id]; ok {
		copy := *request
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *requestStoreStub) List(ctx context.Context, filter models.RequestFilter) ([]models.ChangeRequest, error) {
	s.filter = filter
	result := make([]models.ChangeRequest, 0, len(s.requests))
	for _, request := range s.requests {
		result = append(result, *request)
	}
	return result, nil
}

func (s *requestStoreStub) UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error {
	request, ok := s.requests[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	expected := params.ExpectedStatus
	if len(expected) == 0 {
		expected = []models.RequestStatus{models.RequestStatusPending, models.RequestStatusUnderReview}
	}
	match := false
	for _, status := range expected {
		if request.Status == status {
			match = true
			break
		}
	}
	if !match {
		return sql.ErrNoRows
	}
	request.Status = params.Status
	if params.ResolutionDate != nil {
		request.ResolutionDate = params.ResolutionDate
	}
	return nil
}

func (s *requestStoreStub) AppendReviewStep(ctx context.Context, requestID string, step models.ReviewStep) error {
	request, ok := s.requests[requestID]
	if !ok {
		return sql.ErrNoRows
	}
	request.ReviewHistory = append(request.ReviewHistory, step)
	return nil
}

type eligibilityStub struct {
	result      *models.EligibilityResult
	err         error
	invalidated []string
}

func (s *eligibilityStub) Evaluate(ctx context.Context, studentID, groupID string) (*models.EligibilityResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *eligibilityStub) InvalidateStudent(ctx context.Context, studentID string) {
	s.invalidated = append(s.invalidated, studentID)
}

type decisionRecorderStub struct {
	decisions []string
}

func (d *decisionRecorderStub) RecordDecision(decision string) {
	d.decisions = append(d.decisions, decision)
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func requestFixtureCatalog(t *testing.T) *catalogStub {
	t.Helper()
	monday8to10, err := models.NewTimeSlot(models.Monday, 480, 600, "A")
	require.NoError(t, err)
	monday10to12, err := models.NewTimeSlot(models.Monday, 600, 720, "B")
	require.NoError(t, err)
	return &catalogStub{
		groups: map[string]*models.Group{
			"g-current":   {ID: "g-current", CourseID: "c-old", Capacity: 30, Slot: monday8to10},
			"g-requested": {ID: "g-requested", CourseID: "c-new", Capacity: 30, Slot: monday10to12},
		},
	}
}

func eligibleVerdict(studentID string) *models.EligibilityResult {
	return &models.EligibilityResult{
		StudentID:            studentID,
		CourseID:             "c-new",
		Eligible:             true,
		HasAvailableGroups:   true,
		AvailableGroupsCount: 1,
	}
}

func newRequestFixture(t *testing.T) (*RequestService, *requestStoreStub, *enrollmentStub, *eligibilityStub, *auditStub) {
	t.Helper()
	catalog := requestFixtureCatalog(t)
	store := newRequestStoreStub()
	enrollment := &enrollmentStub{
		active: map[string][]models.Group{
			"s-1": {*catalog.groups["g-current"]},
		},
	}
	eligibility := &eligibilityStub{result: eligibleVerdict("s-1")}
	audit := &auditStub{}
	svc := NewRequestService(store, catalog, enrollment, eligibility, audit, nil, nil, WithClock(func() time.Time { return fixedNow }))
	return svc, store, enrollment, eligibility, audit
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func reviewerClaims(id string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: role}
}

func TestRequestCreateBoundaryTouchSucceeds(t *testing.T) {
	svc, store, _, _, audit := newRequestFixture(t)

	// current group ends 10:00, requested starts 10:00: legal
	request, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, request.Status)
	require.Equal(t, fixedNow, request.SubmissionDate)
	require.Len(t, store.requests, 1)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionRequestCreate, audit.logs[0].Action)
}

func TestRequestCreateScheduleConflict(t *testing.T) {
	svc, _, enrollment, _, _ := newRequestFixture(t)

	overlapping, err := models.NewTimeSlot(models.Monday, 660, 780, "C") // 11:00-13:00
	require.NoError(t, err)
	enrollment.active["s-1"] = append(enrollment.active["s-1"],
		models.Group{ID: "g-other", CourseID: "c-other", Slot: overlapping})

	_, err = svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrScheduleConflict.Code, appErr.Code)

	var conflictErr *models.SlotConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Len(t, conflictErr.Conflicts, 1)
	require.Equal(t, overlapping, conflictErr.Conflicts[0])
}

func TestRequestCreateIgnoresVacatedSlot(t *testing.T) {
	svc, store, enrollment, _, _ := newRequestFixture(t)

	// requested slot overlaps the current group's slot, but that slot is vacated
	overlapsCurrent, err := models.NewTimeSlot(models.Monday, 480, 600, "B")
	require.NoError(t, err)
	catalogSvc := svc.catalog.(*catalogStub)
	catalogSvc.groups["g-requested"].Slot = overlapsCurrent
	enrollment.active["s-1"] = []models.Group{*catalogSvc.groups["g-current"]}

	request, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "prefer morning",
	}, "s-1")
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, request.Status)
	require.Len(t, store.requests, 1)
}

func TestRequestCreateIneligible(t *testing.T) {
	svc, _, _, eligibility, _ := newRequestFixture(t)
	eligibility.result = &models.EligibilityResult{
		StudentID:       "s-1",
		CourseID:        "c-new",
		AlreadyApproved: true,
	}

	_, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "retake",
	}, "s-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrIneligible.Code, appErr.Code)
}

func TestRequestCreateDuplicate(t *testing.T) {
	svc, store, _, _, _ := newRequestFixture(t)
	store.duplicate = true

	_, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrDuplicateRequest.Code, appErr.Code)
}

func TestRequestCreateSameGroupRejected(t *testing.T) {
	svc, _, _, _, _ := newRequestFixture(t)

	_, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-current",
		Reason:           "nothing changes",
	}, "s-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestRequestReviewMovesPendingToUnderReview(t *testing.T) {
	svc, store, _, _, audit := newRequestFixture(t)
	request, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.NoError(t, err)

	reviewed, err := svc.RecordReview(context.Background(), request.ID, dto.RecordReviewRequest{
		Action:   "COMMENTED",
		Comments: "checking seats",
	}, reviewerClaims("coord-1", models.RoleCoordinator))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusUnderReview, reviewed.Status)
	require.Equal(t, models.RequestStatusUnderReview, store.requests[request.ID].Status)
	require.Equal(t, 1, store.requests[request.ID].ReviewHistory.StepCount())
	require.Equal(t, "COORDINATOR - COMMENTED", store.requests[request.ID].ReviewHistory.LastStep().Description())
	require.Len(t, audit.logs, 2)
}

func TestRequestReviewByStudentKeepsPending(t *testing.T) {
	svc, store, _, _, _ := newRequestFixture(t)
	request, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.NoError(t, err)

	reviewed, err := svc.RecordReview(context.Background(), request.ID, dto.RecordReviewRequest{
		Action: "ADDED_CONTEXT",
	}, studentClaims("s-1"))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, reviewed.Status)
	require.Equal(t, models.RequestStatusPending, store.requests[request.ID].Status)
}

func TestRequestReviewOnClosedRequest(t *testing.T) {
	svc, store, _, _, _ := newRequestFixture(t)
	request, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.NoError(t, err)
	store.requests[request.ID].Status = models.RequestStatusRejected

	_, err = svc.RecordReview(context.Background(), request.ID, dto.RecordReviewRequest{
		Action: "LATE",
	}, reviewerClaims("coord-1", models.RoleCoordinator))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestRequestResolveApproved(t *testing.T) {
	svc, _, _, eligibility, audit := newRequestFixture(t)
	request, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), request.ID, dto.ResolveRequest{
		Decision: models.RequestStatusApproved,
	}, reviewerClaims("dean-1", models.RoleDean))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, resolved.Status)
	require.NotNil(t, resolved.ResolutionDate)
	require.Equal(t, fixedNow, *resolved.ResolutionDate)
	require.True(t, resolved.IsResolved())
	require.Equal(t, []string{"s-1"}, eligibility.invalidated)
	require.Equal(t, models.AuditActionRequestResolve, audit.logs[len(audit.logs)-1].Action)

	// second decision on the same request must fail
	_, err = svc.Resolve(context.Background(), request.ID, dto.ResolveRequest{
		Decision: models.RequestStatusRejected,
	}, reviewerClaims("dean-1", models.RoleDean))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrAlreadyResolved.Code, appErr.Code)
}

func TestRequestResolveInvokesEnrollmentMover(t *testing.T) {
	catalog := requestFixtureCatalog(t)
	store := newRequestStoreStub()
	enrollment := &enrollmentStub{active: map[string][]models.Group{"s-1": {*catalog.groups["g-current"]}}}
	eligibility := &eligibilityStub{result: eligibleVerdict("s-1")}
	audit := &auditStub{}

	var moved *models.ChangeRequest
	mover := EnrollmentMoverFunc(func(ctx context.Context, request *models.ChangeRequest) error {
		moved = request
		return nil
	})
	svc := NewRequestService(store, catalog, enrollment, eligibility, audit, nil, nil,
		WithClock(func() time.Time { return fixedNow }), WithEnrollmentMover(mover))

	request, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), request.ID, dto.ResolveRequest{
		Decision: models.RequestStatusApproved,
	}, reviewerClaims("dean-1", models.RoleDean))
	require.NoError(t, err)
	require.NotNil(t, moved)
	require.Equal(t, request.ID, moved.ID)
}

func TestRequestResolveRecordsDecision(t *testing.T) {
	catalog := requestFixtureCatalog(t)
	store := newRequestStoreStub()
	enrollment := &enrollmentStub{active: map[string][]models.Group{"s-1": {*catalog.groups["g-current"]}}}
	eligibility := &eligibilityStub{result: eligibleVerdict("s-1")}
	recorder := &decisionRecorderStub{}

	svc := NewRequestService(store, catalog, enrollment, eligibility, &auditStub{}, nil, nil,
		WithClock(func() time.Time { return fixedNow }), WithDecisionRecorder(recorder))

	request, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.NoError(t, err)
	require.Empty(t, recorder.decisions, "creation is not a decision")

	_, err = svc.Resolve(context.Background(), request.ID, dto.ResolveRequest{
		Decision: models.RequestStatusApproved,
	}, reviewerClaims("dean-1", models.RoleDean))
	require.NoError(t, err)
	require.Equal(t, []string{"APPROVED"}, recorder.decisions)
}

func TestRequestResolveRejectsBadDecision(t *testing.T) {
	svc, _, _, _, _ := newRequestFixture(t)

	_, err := svc.Resolve(context.Background(), "req-1", dto.ResolveRequest{
		Decision: models.RequestStatusCancelled,
	}, reviewerClaims("dean-1", models.RoleDean))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestRequestResolveRequiresReviewer(t *testing.T) {
	svc, _, _, _, _ := newRequestFixture(t)

	_, err := svc.Resolve(context.Background(), "req-1", dto.ResolveRequest{
		Decision: models.RequestStatusApproved,
	}, studentClaims("s-1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRequestCancel(t *testing.T) {
	svc, store, _, _, _ := newRequestFixture(t)
	request, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), request.ID, studentClaims("s-1"))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusCancelled, cancelled.Status)
	require.True(t, cancelled.IsCancelled())
	require.False(t, cancelled.IsResolved())
	require.Equal(t, models.RequestStatusCancelled, store.requests[request.ID].Status)

	// a second cancel is an invalid state, not a no-op
	_, err = svc.Cancel(context.Background(), request.ID, studentClaims("s-1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestRequestCancelOwnerOnly(t *testing.T) {
	svc, _, _, _, _ := newRequestFixture(t)
	request, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), request.ID, studentClaims("s-2"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRequestListScopesStudents(t *testing.T) {
	svc, store, _, _, _ := newRequestFixture(t)

	_, err := svc.List(context.Background(), dto.RequestQuery{StudentID: "s-2"}, studentClaims("s-1"))
	require.NoError(t, err)
	require.Equal(t, "s-1", store.filter.StudentID, "students may only list their own requests")

	_, err = svc.List(context.Background(), dto.RequestQuery{StudentID: "s-2"}, reviewerClaims("coord-1", models.RoleCoordinator))
	require.NoError(t, err)
	require.Equal(t, "s-2", store.filter.StudentID)
}

func TestRequestListClampsPageSize(t *testing.T) {
	catalog := requestFixtureCatalog(t)
	store := newRequestStoreStub()
	enrollment := &enrollmentStub{active: map[string][]models.Group{}}
	svc := NewRequestService(store, catalog, enrollment, &eligibilityStub{}, &auditStub{}, nil, nil,
		WithMaxListPageSize(100))

	_, err := svc.List(context.Background(), dto.RequestQuery{Limit: 500}, reviewerClaims("coord-1", models.RoleCoordinator))
	require.NoError(t, err)
	require.Equal(t, 100, store.filter.Limit)

	_, err = svc.List(context.Background(), dto.RequestQuery{}, reviewerClaims("coord-1", models.RoleCoordinator))
	require.NoError(t, err)
	require.Equal(t, 100, store.filter.Limit, "missing limit falls back to the cap")

	_, err = svc.List(context.Background(), dto.RequestQuery{Limit: 25}, reviewerClaims("coord-1", models.RoleCoordinator))
	require.NoError(t, err)
	require.Equal(t, 25, store.filter.Limit)
}

func TestRequestGetScopesStudents(t *testing.T) {
	svc, _, _, _, _ := newRequestFixture(t)
	request, err := svc.Create(context.Background(), dto.CreateChangeRequest{
		CurrentGroupID:   "g-current",
		RequestedGroupID: "g-requested",
		Reason:           "work schedule",
	}, "s-1")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), request.ID, studentClaims("s-2"))
	require.Error(t, err)

	got, err := svc.Get(context.Background(), request.ID, reviewerClaims("coord-1", models.RoleCoordinator))
	require.NoError(t, err)
	require.Equal(t, request.ID, got.ID)
}

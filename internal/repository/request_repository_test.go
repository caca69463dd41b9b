package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campus-adp/schedule-change-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRequestRepositoryCreateGuardedInsert(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO change_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.ChangeRequest{
		StudentID:        "s-1",
		CurrentGroupID:   "g-1",
		RequestedGroupID: "g-2",
		Reason:           "work schedule",
	}
	require.NoError(t, repo.Create(context.Background(), request))
	require.NotEmpty(t, request.ID)
	require.Equal(t, models.RequestStatusPending, request.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	// the NOT EXISTS guard swallows the insert: zero rows affected
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO change_requests")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	request := &models.ChangeRequest{
		StudentID:        "s-1",
		CurrentGroupID:   "g-1",
		RequestedGroupID: "g-2",
		Reason:           "work schedule",
	}
	err := repo.Create(context.Background(), request)
	require.ErrorIs(t, err, ErrDuplicateActiveRequest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryGetByIDWithHistory(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	submitted := time.Date(2026, time.April, 6, 9, 0, 0, 0, time.UTC)

	requestRows := sqlmock.NewRows([]string{"id", "student_id", "current_group_id", "requested_group_id", "reason", "status", "submission_date", "resolution_date"}).
		AddRow("req-1", "s-1", "g-1", "g-2", "work schedule", "UNDER_REVIEW", submitted, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, current_group_id, requested_group_id")).
		WithArgs("req-1").
		WillReturnRows(requestRows)

	stepRows := sqlmock.NewRows([]string{"reviewer_id", "reviewer_role", "action", "comments", "created_at"}).
		AddRow("coord-1", "COORDINATOR", "COMMENTED", "checking seats", submitted.Add(time.Hour)).
		AddRow("dean-1", "DEAN", "ESCALATED", "", submitted.Add(2*time.Hour))
	// the ledger must come back in append order via the seq sequence
	mock.ExpectQuery(`SELECT reviewer_id, reviewer_role, action, comments, created_at\s+FROM review_steps WHERE request_id = \$1 ORDER BY seq ASC`).
		WithArgs("req-1").
		WillReturnRows(stepRows)

	request, err := repo.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusUnderReview, request.Status)
	require.Equal(t, 2, request.ReviewHistory.StepCount())
	require.Equal(t, "DEAN - ESCALATED", request.ReviewHistory.LastStep().Description())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	rows := sqlmock.NewRows([]string{"id", "student_id", "current_group_id", "requested_group_id", "reason", "status", "submission_date", "resolution_date"}).
		AddRow("req-1", "s-1", "g-1", "g-2", "work schedule", "PENDING", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, current_group_id, requested_group_id")).
		WithArgs("PENDING", "s-1").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.RequestFilter{
		Status:    []models.RequestStatus{models.RequestStatusPending},
		StudentID: "s-1",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "req-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	resolvedAt := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE change_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:             "req-1",
		Status:         models.RequestStatusApproved,
		ResolutionDate: &resolvedAt,
	}))

	// concurrent caller already moved the request out of the guarded statuses
	mock.ExpectExec(regexp.QuoteMeta("UPDATE change_requests")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:     "req-1",
		Status: models.RequestStatusRejected,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryAppendReviewStep(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO review_steps")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	step := models.ReviewStep{
		ReviewerID:   "coord-1",
		ReviewerRole: models.RoleCoordinator,
		Action:       "COMMENTED",
		Timestamp:    time.Now().UTC(),
	}
	require.NoError(t, repo.AppendReviewStep(context.Background(), "req-1", step))
	require.NoError(t, mock.ExpectationsWereMet())
}

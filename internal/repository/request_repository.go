package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-adp/schedule-change-api/internal/models"
)

// ErrDuplicateActiveRequest signals that an active request already exists for
// the same student/group pair. Surfaced by the guarded insert in Create.
var ErrDuplicateActiveRequest = errors.New("active request exists for student and group")

// RequestRepository persists schedule change requests and their review steps.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request. The insert is guarded so that no second
// active request for the same (student, requested group) pair can slip in
// between a check and the write: the NOT EXISTS predicate and the insert run
// as one statement.
func (r *RequestRepository) Create(ctx context.Context, request *models.ChangeRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	if request.SubmissionDate.IsZero() {
		request.SubmissionDate = time.Now().UTC()
	}
	const query = `INSERT INTO change_requests
	(id, student_id, current_group_id, requested_group_id, reason, status, submission_date, resolution_date)
	SELECT $1, $2, $3, $4, $5, $6, $7, NULL
	WHERE NOT EXISTS (
		SELECT 1 FROM change_requests
		WHERE student_id = $2 AND requested_group_id = $4 AND status IN ($8, $9)
	)`
	result, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.StudentID,
		request.CurrentGroupID,
		request.RequestedGroupID,
		request.Reason,
		request.Status,
		request.SubmissionDate,
		models.RequestStatusPending,
		models.RequestStatusUnderReview,
	)
	if err != nil {
		return fmt.Errorf("create change request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check change request insert rows: %w", err)
	}
	if rows == 0 {
		return ErrDuplicateActiveRequest
	}
	return nil
}

// GetByID fetches a request with its full review history.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	const query = `SELECT id, student_id, current_group_id, requested_group_id, reason, status, submission_date, resolution_date
	FROM change_requests WHERE id = $1`
	var request models.ChangeRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	history, err := r.listReviewSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	request.ReviewHistory = history
	return &request, nil
}

// List returns requests matching the filter, newest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.ChangeRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT id, student_id, current_group_id, requested_group_id, reason, status, submission_date, resolution_date
	FROM change_requests`)

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		conditions = append(conditions, fmt.Sprintf("requested_group_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY submission_date DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.ChangeRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	return requests, nil
}

// ExistsActiveRequest reports whether the pair already has a live request.
func (r *RequestRepository) ExistsActiveRequest(ctx context.Context, studentID, groupID string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM change_requests
		WHERE student_id = $1 AND requested_group_id = $2 AND status IN ($3, $4)
	)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, groupID,
		models.RequestStatusPending, models.RequestStatusUnderReview); err != nil {
		return false, fmt.Errorf("check active request: %w", err)
	}
	return exists, nil
}

// UpdateStatusParams groups mutable columns for lifecycle transitions.
type UpdateStatusParams struct {
	ID             string
	Status         models.RequestStatus
	ResolutionDate *time.Time
	// ExpectedStatus guards the transition: the update only applies while the
	// stored status is one of these, serialising concurrent resolutions.
	ExpectedStatus []models.RequestStatus
}

// UpdateStatus persists a transition. Returns sql.ErrNoRows when the request
// was already moved out of the expected statuses by a concurrent caller.
func (r *RequestRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	expected := params.ExpectedStatus
	if len(expected) == 0 {
		expected = []models.RequestStatus{models.RequestStatusPending, models.RequestStatusUnderReview}
	}
	args := []interface{}{params.Status, params.ResolutionDate, params.ID}
	placeholders := make([]string, len(expected))
	for i, status := range expected {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`UPDATE change_requests
	SET status = $1, resolution_date = COALESCE($2, resolution_date)
	WHERE id = $3 AND status IN (%s)`, strings.Join(placeholders, ","))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update change request status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check change request update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendReviewStep adds a ledger entry for the request. Steps are append-only;
// there is no update or delete path.
func (r *RequestRepository) AppendReviewStep(ctx context.Context, requestID string, step models.ReviewStep) error {
	const query = `INSERT INTO review_steps (id, request_id, reviewer_id, reviewer_role, action, comments, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		uuid.NewString(),
		requestID,
		step.ReviewerID,
		step.ReviewerRole,
		step.Action,
		step.Comments,
		step.Timestamp,
	); err != nil {
		return fmt.Errorf("append review step: %w", err)
	}
	return nil
}

// listReviewSteps reads the ledger in insertion order. seq is assigned by the
// database sequence, so equal timestamps still come back in append order.
func (r *RequestRepository) listReviewSteps(ctx context.Context, requestID string) (models.ReviewHistory, error) {
	const query = `SELECT reviewer_id, reviewer_role, action, comments, created_at
	FROM review_steps WHERE request_id = $1 ORDER BY seq ASC`
	var steps []models.ReviewStep
	if err := r.db.SelectContext(ctx, &steps, query, requestID); err != nil {
		return nil, fmt.Errorf("list review steps: %w", err)
	}
	return steps, nil
}

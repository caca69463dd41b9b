package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// HistoryRepository reads prior academic results. Only the approval facts the
// eligibility rules need are exposed.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// HasApproved reports whether the student already passed the course.
func (r *HistoryRepository) HasApproved(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM academic_history WHERE student_id = $1 AND course_id = $2 AND approved = TRUE
	)`
	var approved bool
	if err := r.db.GetContext(ctx, &approved, query, studentID, courseID); err != nil {
		return false, fmt.Errorf("check academic history: %w", err)
	}
	return approved, nil
}

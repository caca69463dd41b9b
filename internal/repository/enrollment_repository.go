package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campus-adp/schedule-change-api/internal/models"
)

// EnrollmentRepository reads a student's current enrollment state. The engine
// never writes enrollments; the move itself belongs to the enrollment system.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ActiveGroupsOf returns the groups the student is currently enrolled in,
// with their slots, so conflict checks can exclude the group being vacated.
func (r *EnrollmentRepository) ActiveGroupsOf(ctx context.Context, studentID string) ([]models.Group, error) {
	const query = `SELECT g.id, g.course_id, g.section, g.professor_id, g.room_id, g.capacity,
	       g.day_of_week, g.start_time, g.end_time, g.slot_label
	FROM enrollments e
	JOIN groups g ON g.id = e.group_id
	WHERE e.student_id = $1 AND e.status = $2
	ORDER BY g.id ASC`
	var rows []groupRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID, enrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active groups: %w", err)
	}
	groups := make([]models.Group, 0, len(rows))
	for _, row := range rows {
		group, err := row.toGroup()
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", row.ID, err)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// IsEnrolled reports whether the student has an active enrollment in the group.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, studentID, groupID string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM enrollments WHERE student_id = $1 AND group_id = $2 AND status = $3
	)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, groupID, enrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// CountActive returns the number of active enrollments in the group.
func (r *EnrollmentRepository) CountActive(ctx context.Context, groupID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE group_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, groupID, enrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

const enrollmentStatusActive = "ACTIVE"

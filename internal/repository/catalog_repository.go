package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campus-adp/schedule-change-api/internal/models"
)

// CatalogRepository reads course groups and their slots. The catalog is
// reference data owned elsewhere; this repository never writes it.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

type groupRow struct {
	ID          string `db:"id"`
	CourseID    string `db:"course_id"`
	Section     string `db:"section"`
	ProfessorID string `db:"professor_id"`
	RoomID      string `db:"room_id"`
	Capacity    int    `db:"capacity"`
	DayOfWeek   string `db:"day_of_week"`
	StartTime   string `db:"start_time"`
	EndTime     string `db:"end_time"`
	SlotLabel   string `db:"slot_label"`
}

const groupColumns = `id, course_id, section, professor_id, room_id, capacity, day_of_week, start_time, end_time, slot_label`

// GroupByID fetches a single group by identifier.
func (r *CatalogRepository) GroupByID(ctx context.Context, id string) (*models.Group, error) {
	query := fmt.Sprintf(`SELECT %s FROM groups WHERE id = $1`, groupColumns)
	var row groupRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	group, err := row.toGroup()
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", id, err)
	}
	return &group, nil
}

// SectionsForCourse returns every group section offered for the course.
func (r *CatalogRepository) SectionsForCourse(ctx context.Context, courseID string) ([]models.Group, error) {
	query := fmt.Sprintf(`SELECT %s FROM groups WHERE course_id = $1 ORDER BY section ASC`, groupColumns)
	var rows []groupRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list course sections: %w", err)
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

func (row groupRow) toGroup() (models.Group, error) {
	day, err := models.ParseDayOfWeek(row.DayOfWeek)
	if err != nil {
		return models.Group{}, err
	}
	start, err := models.ParseClock(row.StartTime)
	if err != nil {
		return models.Group{}, err
	}
	end, err := models.ParseClock(row.EndTime)
	if err != nil {
		return models.Group{}, err
	}
	slot, err := models.NewTimeSlot(day, start, end, row.SlotLabel)
	if err != nil {
		return models.Group{}, err
	}
	return models.Group{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Section:     row.Section,
		ProfessorID: row.ProfessorID,
		RoomID:      row.RoomID,
		Capacity:    row.Capacity,
		Slot:        slot,
	}, nil
}

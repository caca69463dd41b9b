package models

// Group is a course section offered at a fixed weekly slot. Catalog data is
// reference-only here; enrollment counts come from the enrollment store.
type Group struct {
	ID          string   `json:"id"`
	CourseID    string   `json:"course_id"`
	Section     string   `json:"section"`
	ProfessorID string   `json:"professor_id"`
	RoomID      string   `json:"room_id"`
	Capacity    int      `json:"capacity"`
	Slot        TimeSlot `json:"time_slot"`
}

// GroupCapacity summarises occupancy for a group. Available is signed: a
// group over-enrolled by administrative override reports a negative value,
// so callers must check IsAvailable rather than Available > 0.
type GroupCapacity struct {
	GroupID       string  `json:"group_id"`
	Max           int     `json:"max"`
	Current       int     `json:"current"`
	Available     int     `json:"available"`
	IsAvailable   bool    `json:"is_available"`
	OccupancyRate float64 `json:"occupancy_rate"`
}

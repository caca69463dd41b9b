package service

import "github.com/campus-adp/schedule-change-api/internal/models"

// FindConflicts returns every slot in against that overlaps the candidate.
// The scan is linear and preserves input order; an empty result is a normal
// outcome, not an error.
func FindConflicts(candidate models.TimeSlot, against []models.TimeSlot) []models.TimeSlot {
	var conflicts []models.TimeSlot
	for _, slot := range against {
		if candidate.Overlaps(slot) {
			conflicts = append(conflicts, slot)
		}
	}
	return conflicts
}

// HasConflict reports whether the candidate overlaps any slot in against.
func HasConflict(candidate models.TimeSlot, against []models.TimeSlot) bool {
	for _, slot := range against {
		if candidate.Overlaps(slot) {
			return true
		}
	}
	return false
}

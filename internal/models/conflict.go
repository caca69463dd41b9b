package models

import (
	"fmt"
	"strings"
)

// SlotConflictError reports that a candidate slot clashes with slots already
// on the student's schedule. The conflicting slots are carried for display.
type SlotConflictError struct {
	Requested TimeSlot   `json:"requested"`
	Conflicts []TimeSlot `json:"conflicts"`
}

// Error implements the error interface.
func (e *SlotConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	labels := make([]string, len(e.Conflicts))
	for i, slot := range e.Conflicts {
		labels[i] = slot.String()
	}
	return fmt.Sprintf("slot %s conflicts with %s", e.Requested, strings.Join(labels, ", "))
}

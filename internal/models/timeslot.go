package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DayOfWeek identifies the weekday a slot occupies.
type DayOfWeek string

// Supported weekdays.
const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

// ParseDayOfWeek normalises and validates a weekday string.
func ParseDayOfWeek(raw string) (DayOfWeek, error) {
	day := DayOfWeek(strings.ToUpper(strings.TrimSpace(raw)))
	switch day {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return day, nil
	}
	return "", fmt.Errorf("invalid day of week: %q", raw)
}

// ClockMinute is a time of day expressed as minutes since midnight.
type ClockMinute int

// ParseClock parses "HH:MM" into a ClockMinute.
func ParseClock(raw string) (ClockMinute, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time: %q", raw)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time out of range: %q", raw)
	}
	return ClockMinute(h*60 + m), nil
}

// String renders the minute as "HH:MM".
func (c ClockMinute) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalJSON encodes the clock minute as its "HH:MM" form.
func (c ClockMinute) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts the "HH:MM" form.
func (c *ClockMinute) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeSlot is an immutable (day, start, end) interval with an optional label.
// End is exclusive: back-to-back slots do not overlap.
type TimeSlot struct {
	Day   DayOfWeek   `json:"day_of_week"`
	Start ClockMinute `json:"start_time"`
	End   ClockMinute `json:"end_time"`
	Label string      `json:"label,omitempty"`
}

// NewTimeSlot validates the interval at construction; end must be after start.
func NewTimeSlot(day DayOfWeek, start, end ClockMinute, label string) (TimeSlot, error) {
	parsedDay, err := ParseDayOfWeek(string(day))
	if err != nil {
		return TimeSlot{}, err
	}
	if end <= start {
		return TimeSlot{}, fmt.Errorf("slot end %s must be after start %s", end, start)
	}
	return TimeSlot{Day: parsedDay, Start: start, End: end, Label: label}, nil
}

// Overlaps reports whether two slots intersect on the same day. The intervals
// are half-open, so a slot ending exactly when another begins does not clash.
func (t TimeSlot) Overlaps(other TimeSlot) bool {
	if t.Day != other.Day {
		return false
	}
	return t.Start < other.End && other.Start < t.End
}

// String renders the slot for conflict messages, e.g. "MONDAY 08:00-10:00".
func (t TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", t.Day, t.Start, t.End)
}

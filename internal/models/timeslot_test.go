package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustSlot(t *testing.T, day DayOfWeek, start, end string) TimeSlot {
	t.Helper()
	s, err := ParseClock(start)
	require.NoError(t, err)
	e, err := ParseClock(end)
	require.NoError(t, err)
	slot, err := NewTimeSlot(day, s, e, "")
	require.NoError(t, err)
	return slot
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		raw     string
		want    ClockMinute
		wantErr bool
	}{
		{raw: "08:00", want: 480},
		{raw: "00:00", want: 0},
		{raw: "23:59", want: 1439},
		{raw: "24:00", wantErr: true},
		{raw: "08:60", wantErr: true},
		{raw: "garbage", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.raw)
		if tc.wantErr {
			require.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.want, got, tc.raw)
	}
}

func TestNewTimeSlotRejectsInvertedInterval(t *testing.T) {
	_, err := NewTimeSlot(Monday, 600, 480, "")
	require.Error(t, err)

	_, err = NewTimeSlot(Monday, 480, 480, "")
	require.Error(t, err)

	_, err = NewTimeSlot("FUNDAY", 480, 600, "")
	require.Error(t, err)
}

func TestTimeSlotOverlaps(t *testing.T) {
	base := mustSlot(t, Monday, "08:00", "10:00")

	cases := []struct {
		name  string
		other TimeSlot
		want  bool
	}{
		{name: "partial overlap", other: mustSlot(t, Monday, "09:00", "11:00"), want: true},
		{name: "contained", other: mustSlot(t, Monday, "08:30", "09:30"), want: true},
		{name: "identical", other: mustSlot(t, Monday, "08:00", "10:00"), want: true},
		{name: "boundary touch after", other: mustSlot(t, Monday, "10:00", "12:00"), want: false},
		{name: "boundary touch before", other: mustSlot(t, Monday, "06:00", "08:00"), want: false},
		{name: "disjoint", other: mustSlot(t, Monday, "12:00", "14:00"), want: false},
		{name: "same hours different day", other: mustSlot(t, Tuesday, "08:00", "10:00"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, base.Overlaps(tc.other))
			// overlap is symmetric
			require.Equal(t, tc.want, tc.other.Overlaps(base))
		})
	}
}

func TestTimeSlotString(t *testing.T) {
	slot := mustSlot(t, Monday, "08:00", "10:00")
	require.Equal(t, "MONDAY 08:00-10:00", slot.String())
}

func TestClockMinuteJSONRoundTrip(t *testing.T) {
	slot := mustSlot(t, Friday, "14:30", "16:00")
	raw, err := json.Marshal(slot)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"14:30"`)

	var decoded TimeSlot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, slot, decoded)

	var bad TimeSlot
	require.Error(t, json.Unmarshal([]byte(`{"day_of_week":"FRIDAY","start_time":"25:00","end_time":"26:00"}`), &bad))
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campus-adp/schedule-change-api/internal/models"
)

type enrollmentCounterStub struct {
	counts map[string]int
}

func (s *enrollmentCounterStub) CountActive(ctx context.Context, groupID string) (int, error) {
	return s.counts[groupID], nil
}

func TestComputeCapacity(t *testing.T) {
	cases := []struct {
		name          string
		max           int
		current       int
		wantAvailable int
		wantOpen      bool
		wantRate      float64
	}{
		{name: "open", max: 30, current: 15, wantAvailable: 15, wantOpen: true, wantRate: 50.0},
		{name: "full", max: 30, current: 30, wantAvailable: 0, wantOpen: false, wantRate: 100.0},
		{name: "over-enrolled", max: 30, current: 32, wantAvailable: -2, wantOpen: false, wantRate: 100.0 * 32.0 / 30.0},
		{name: "zero capacity", max: 0, current: 0, wantAvailable: 0, wantOpen: false, wantRate: 0.0},
		{name: "zero capacity with enrollment", max: 0, current: 3, wantAvailable: -3, wantOpen: false, wantRate: 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeCapacity(tc.max, tc.current)
			require.Equal(t, tc.wantAvailable, got.Available)
			require.Equal(t, tc.wantOpen, got.IsAvailable)
			require.InDelta(t, tc.wantRate, got.OccupancyRate, 1e-9)
		})
	}
}

func TestCapacityOf(t *testing.T) {
	svc := NewCapacityService(&enrollmentCounterStub{counts: map[string]int{"g-1": 28}}, nil)
	capacity, err := svc.CapacityOf(context.Background(), models.Group{ID: "g-1", Capacity: 30})
	require.NoError(t, err)
	require.Equal(t, "g-1", capacity.GroupID)
	require.Equal(t, 2, capacity.Available)
	require.True(t, capacity.IsAvailable)
}

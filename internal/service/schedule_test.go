package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInNightWindow(t *testing.T) {
	cases := []struct {
		hour, start, end int
		want             bool
	}{
		{23, 22, 10, true},
		{3, 22, 10, true},
		{22, 22, 10, true},
		{10, 22, 10, false},
		{12, 22, 10, false},
		{21, 22, 10, false},
		{2, 1, 5, true},
		{5, 1, 5, false},
		{0, 1, 5, false},
		{7, 6, 6, true}, // equal bounds close the whole day
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, inNightWindow(tc.hour, tc.start, tc.end),
			"hour=%d start=%d end=%d", tc.hour, tc.start, tc.end)
	}
}

func TestScheduleClosed(t *testing.T) {
	settings := newFakeSettings(nil)
	schedule := NewSchedule(NewSettingsService(settings), 22, 10)
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	schedule.now = func() time.Time { return now }
	ctx := context.Background()

	reason, err := schedule.Closed(ctx)
	require.NoError(t, err)
	require.Equal(t, ClosureNone, reason)

	// Night mode only bites inside the window.
	require.NoError(t, settings.Set(ctx, KeyNightMode, "1"))
	reason, err = schedule.Closed(ctx)
	require.NoError(t, err)
	require.Equal(t, ClosureNone, reason)

	now = time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)
	reason, err = schedule.Closed(ctx)
	require.NoError(t, err)
	require.Equal(t, ClosureNight, reason)

	// Weekend mode wins over night mode.
	require.NoError(t, settings.Set(ctx, KeyWeekendMode, "1"))
	reason, err = schedule.Closed(ctx)
	require.NoError(t, err)
	require.Equal(t, ClosureWeekend, reason)
}

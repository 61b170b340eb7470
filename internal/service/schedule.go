package service

import (
	"context"
	"time"
)

// ClosureReason explains why submissions are currently not accepted.
type ClosureReason string

const (
	ClosureNone    ClosureReason = ""
	ClosureWeekend ClosureReason = "weekend"
	ClosureNight   ClosureReason = "night"
)

// Schedule decides whether the intake window is closed. Weekend mode closes
// intake outright; night mode closes it between the configured hours.
type Schedule struct {
	settings   *SettingsService
	nightStart int
	nightEnd   int
	now        func() time.Time
}

func NewSchedule(settings *SettingsService, nightStart, nightEnd int) *Schedule {
	return &Schedule{
		settings:   settings,
		nightStart: nightStart,
		nightEnd:   nightEnd,
		now:        time.Now,
	}
}

func (s *Schedule) Closed(ctx context.Context) (ClosureReason, error) {
	weekend, err := s.settings.WeekendMode(ctx)
	if err != nil {
		return ClosureNone, err
	}
	if weekend {
		return ClosureWeekend, nil
	}

	night, err := s.settings.NightMode(ctx)
	if err != nil {
		return ClosureNone, err
	}
	if night && inNightWindow(s.now().Hour(), s.nightStart, s.nightEnd) {
		return ClosureNight, nil
	}
	return ClosureNone, nil
}

// inNightWindow handles windows that wrap midnight, e.g. 22..10.
func inNightWindow(hour, start, end int) bool {
	if start == end {
		return true
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

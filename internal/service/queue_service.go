package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/digkill/NumberHoldBot/internal/models"
)

var ErrNotInQueue = errors.New("user has no queued number")

type QueueStore interface {
	CountQueued(ctx context.Context) (int, error)
	CountQueuedFor(ctx context.Context, userID int64) (int, error)
	EarliestQueuedFor(ctx context.Context, userID int64) (*models.Number, error)
	CountQueuedBefore(ctx context.Context, target *models.Number) (int, error)
}

// QueueService answers queue size and position questions. Displayed figures
// include the administrative padding; Real* figures never do.
type QueueService struct {
	numbers  QueueStore
	settings *SettingsService
}

func NewQueueService(numbers QueueStore, settings *SettingsService) *QueueService {
	return &QueueService{numbers: numbers, settings: settings}
}

func (s *QueueService) RealCount(ctx context.Context) (int, error) {
	return s.numbers.CountQueued(ctx)
}

// DisplayedCount is the real queue size plus the configured padding. Only
// this figure is shown to submitters.
func (s *QueueService) DisplayedCount(ctx context.Context) (int, error) {
	real, err := s.numbers.CountQueued(ctx)
	if err != nil {
		return 0, err
	}
	padding, err := s.settings.FakeQueue(ctx)
	if err != nil {
		return 0, fmt.Errorf("read queue padding: %w", err)
	}
	return real + padding, nil
}

// PositionOf reports the displayed 1-based position of the user's best
// queued number. Priority submissions bypass the padding: only non-priority
// positions are shifted by it.
func (s *QueueService) PositionOf(ctx context.Context, userID int64) (int, error) {
	number, err := s.numbers.EarliestQueuedFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	if number == nil {
		return 0, ErrNotInQueue
	}
	ahead, err := s.numbers.CountQueuedBefore(ctx, number)
	if err != nil {
		return 0, err
	}
	position := ahead + 1
	if !number.IsPriority {
		padding, err := s.settings.FakeQueue(ctx)
		if err != nil {
			return 0, fmt.Errorf("read queue padding: %w", err)
		}
		position += padding
	}
	return position, nil
}

func (s *QueueService) QueuedCountFor(ctx context.Context, userID int64) (int, error) {
	return s.numbers.CountQueuedFor(ctx, userID)
}

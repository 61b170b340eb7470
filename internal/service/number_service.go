package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/NumberHoldBot/internal/models"
)

var (
	ErrDuplicateNumber   = errors.New("number already submitted by this user")
	ErrTariffUnavailable = errors.New("tariff inactive or unknown")
	ErrSystemClosed      = errors.New("intake is closed")
	ErrAlreadyTaken      = errors.New("number already taken or resolved")
	ErrNotInWork         = errors.New("number is not in work")
	ErrNumberNotFound    = errors.New("number not found")
)

// NumberStore is the persistence the state machine runs on. The Mark*
// methods are guarded compare-and-swap updates: they return false when the
// row was not in the required state, which is how a losing racer finds out.
type NumberStore interface {
	GetByID(ctx context.Context, id int64) (*models.Number, error)
	Exists(ctx context.Context, userID int64, phone string) (bool, error)
	Create(ctx context.Context, number *models.Number) (*models.Number, error)
	NextQueued(ctx context.Context) (*models.Number, error)
	MarkTaken(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkFinished(ctx context.Context, id int64, visible models.NumberStatus, real models.Outcome, at time.Time) (bool, error)
	MarkRemoved(ctx context.Context, id int64, at time.Time) (bool, error)
	ListFinishedFor(ctx context.Context, userID int64, limit int) ([]models.Number, error)
	ListAll(ctx context.Context) ([]models.Number, error)
	RemoveAllQueued(ctx context.Context, at time.Time) ([]models.Number, error)
}

type SubmitterCounter interface {
	IncrementTotalNumbers(ctx context.Context, id int64) error
}

type ReferralAwarder interface {
	OnFirstSuccess(ctx context.Context, userID int64) (*models.ReferralAward, error)
}

type ActiveTariffs interface {
	GetByID(ctx context.Context, id int64) (*models.Tariff, error)
}

type NumberService struct {
	numbers   NumberStore
	users     SubmitterCounter
	tariffs   ActiveTariffs
	durations *DurationService
	referrals ReferralAwarder
	schedule  *Schedule
	now       func() time.Time
}

func NewNumberService(numbers NumberStore, users SubmitterCounter, tariffs ActiveTariffs, durations *DurationService, referrals ReferralAwarder, schedule *Schedule) *NumberService {
	return &NumberService{
		numbers:   numbers,
		users:     users,
		tariffs:   tariffs,
		durations: durations,
		referrals: referrals,
		schedule:  schedule,
		now:       time.Now,
	}
}

// Submit queues a number. The same user may never submit the same phone
// twice, whatever happened to the first submission; the normalized form is
// what collides.
func (s *NumberService) Submit(ctx context.Context, userID, tariffID int64, rawPhone string, isPriority bool) (*models.Number, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}

	reason, err := s.schedule.Closed(ctx)
	if err != nil {
		return nil, fmt.Errorf("check schedule: %w", err)
	}
	if reason != ClosureNone {
		return nil, ErrSystemClosed
	}

	tariff, err := s.tariffs.GetByID(ctx, tariffID)
	if err != nil {
		return nil, fmt.Errorf("get tariff: %w", err)
	}
	if tariff == nil || !tariff.IsActive {
		return nil, ErrTariffUnavailable
	}

	exists, err := s.numbers.Exists(ctx, userID, phone)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		return nil, ErrDuplicateNumber
	}

	number, err := s.numbers.Create(ctx, &models.Number{
		UserID:     userID,
		Phone:      phone,
		TariffID:   tariffID,
		IsPriority: isPriority,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create number: %w", err)
	}

	if err := s.users.IncrementTotalNumbers(ctx, userID); err != nil {
		return nil, fmt.Errorf("count submission: %w", err)
	}
	return number, nil
}

// ClosedReason reports whether intake is currently closed and why.
func (s *NumberService) ClosedReason(ctx context.Context) (ClosureReason, error) {
	return s.schedule.Closed(ctx)
}

// ArchiveFor lists the user's finished numbers, newest first.
func (s *NumberService) ArchiveFor(ctx context.Context, userID int64, limit int) ([]models.Number, error) {
	return s.numbers.ListFinishedFor(ctx, userID, limit)
}

// NextClaimable is advisory: it reflects the committed queue at call time
// and a concurrent Take may still win the number it returns.
func (s *NumberService) NextClaimable(ctx context.Context) (*models.Number, error) {
	return s.numbers.NextQueued(ctx)
}

// Take claims a queued number for an operator. The store-level guard is the
// only gate: of N concurrent takers exactly one succeeds, the rest get
// ErrAlreadyTaken.
func (s *NumberService) Take(ctx context.Context, numberID int64) (*models.Number, error) {
	ok, err := s.numbers.MarkTaken(ctx, numberID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyTaken
	}
	number, err := s.numbers.GetByID(ctx, numberID)
	if err != nil {
		return nil, err
	}
	if number == nil {
		return nil, ErrNumberNotFound
	}
	return number, nil
}

// ResolveResult carries both completion verdicts. Visible is what the
// submitter and non-owner operators are told; Real drove the stored side
// effects and must only be surfaced to owners.
type ResolveResult struct {
	Number         *models.Number
	Visible        models.Outcome
	Real           models.Outcome
	ElapsedMinutes int
	Award          *models.ReferralAward
}

// Resolve finishes an in-work number. Elapsed time is measured lazily, from
// the claim stamp to now, floored to whole minutes. The visible outcome
// compares against the nominal duration, the real outcome against nominal
// plus the hidden extra minutes; the real one decides the referral bonus.
func (s *NumberService) Resolve(ctx context.Context, numberID int64) (*ResolveResult, error) {
	number, err := s.numbers.GetByID(ctx, numberID)
	if err != nil {
		return nil, err
	}
	if number == nil {
		return nil, ErrNumberNotFound
	}
	if number.Status != models.StatusInWork || number.TakenAt == nil {
		return nil, ErrNotInWork
	}

	visibleDur, err := s.durations.Visible(ctx, number.TariffID)
	if err != nil {
		return nil, fmt.Errorf("visible duration: %w", err)
	}
	realDur, err := s.durations.real(ctx, number.TariffID)
	if err != nil {
		return nil, fmt.Errorf("real duration: %w", err)
	}

	finishedAt := s.now()
	elapsed := elapsedMinutes(*number.TakenAt, finishedAt)
	visible := outcomeFor(elapsed, visibleDur)
	real := outcomeFor(elapsed, realDur)

	ok, err := s.numbers.MarkFinished(ctx, numberID, visible.Status(), real, finishedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInWork
	}

	result := &ResolveResult{
		Number:         number,
		Visible:        visible,
		Real:           real,
		ElapsedMinutes: elapsed,
	}
	number.Status = visible.Status()
	number.RealOutcome = real
	number.FinishedAt = &finishedAt

	if real == models.OutcomeHeld {
		award, err := s.referrals.OnFirstSuccess(ctx, number.UserID)
		if err != nil {
			return nil, fmt.Errorf("referral check: %w", err)
		}
		result.Award = award
	}
	return result, nil
}

// Void removes a queued or in-work number without financial side effects
// and returns it so the submitter can be notified. The row stays behind for
// the duplicate check.
func (s *NumberService) Void(ctx context.Context, numberID int64) (*models.Number, error) {
	number, err := s.numbers.GetByID(ctx, numberID)
	if err != nil {
		return nil, err
	}
	if number == nil {
		return nil, ErrNumberNotFound
	}
	ok, err := s.numbers.MarkRemoved(ctx, numberID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyTaken
	}
	number.Status = models.StatusRemoved
	return number, nil
}

// VoidAllQueued clears the whole queue and returns the voided numbers so
// the submitters can be notified.
func (s *NumberService) VoidAllQueued(ctx context.Context) ([]models.Number, error) {
	return s.numbers.RemoveAllQueued(ctx, s.now())
}

func (s *NumberService) ListAll(ctx context.Context) ([]models.Number, error) {
	return s.numbers.ListAll(ctx)
}

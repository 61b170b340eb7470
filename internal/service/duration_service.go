package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/NumberHoldBot/internal/models"
)

var (
	ErrOwnerOnly      = errors.New("owner privilege required")
	ErrTariffNotFound = errors.New("tariff not found")
)

// TariffDurations is the slice of the tariff store the resolver needs.
type TariffDurations interface {
	GetByID(ctx context.Context, id int64) (*models.Tariff, error)
	ExtraMinutes(ctx context.Context, tariffID int64) (int, error)
	SetExtraMinutes(ctx context.Context, tariffID int64, minutes int) error
}

// DurationService resolves hold durations. The visible duration is the
// tariff's nominal one and is all that submitters and operators ever see.
// The real duration adds the hidden per-tariff extra minutes and is gated to
// owners; nothing derived from it may flow into operator- or
// submitter-facing output.
type DurationService struct {
	tariffs TariffDurations
}

func NewDurationService(tariffs TariffDurations) *DurationService {
	return &DurationService{tariffs: tariffs}
}

// Visible returns the nominal duration in minutes.
func (s *DurationService) Visible(ctx context.Context, tariffID int64) (int, error) {
	tariff, err := s.tariffs.GetByID(ctx, tariffID)
	if err != nil {
		return 0, fmt.Errorf("get tariff: %w", err)
	}
	if tariff == nil {
		return 0, ErrTariffNotFound
	}
	return tariff.DurationMin, nil
}

// Real returns nominal plus hidden extra minutes. Owner only.
func (s *DurationService) Real(ctx context.Context, tariffID int64, actor models.Privilege) (int, error) {
	if actor != models.PrivilegeOwner {
		return 0, ErrOwnerOnly
	}
	return s.real(ctx, tariffID)
}

// Surcharge returns the hidden extra minutes alone. Owner only.
func (s *DurationService) Surcharge(ctx context.Context, tariffID int64, actor models.Privilege) (int, error) {
	if actor != models.PrivilegeOwner {
		return 0, ErrOwnerOnly
	}
	return s.tariffs.ExtraMinutes(ctx, tariffID)
}

func (s *DurationService) SetSurcharge(ctx context.Context, tariffID int64, minutes int, actor models.Privilege) error {
	if actor != models.PrivilegeOwner {
		return ErrOwnerOnly
	}
	if minutes < 0 {
		minutes = 0
	}
	return s.tariffs.SetExtraMinutes(ctx, tariffID, minutes)
}

// real is the ungated lookup for the resolve path, which needs both
// thresholds regardless of who pressed the button.
func (s *DurationService) real(ctx context.Context, tariffID int64) (int, error) {
	visible, err := s.Visible(ctx, tariffID)
	if err != nil {
		return 0, err
	}
	extra, err := s.tariffs.ExtraMinutes(ctx, tariffID)
	if err != nil {
		return 0, fmt.Errorf("get extra minutes: %w", err)
	}
	return visible + extra, nil
}

// elapsedMinutes floors to whole minutes; the threshold comparison works on
// whole minutes only.
func elapsedMinutes(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / time.Minute)
}

// outcomeFor applies the threshold rule: a number held for at least the
// duration is a success.
func outcomeFor(elapsedMin, durationMin int) models.Outcome {
	if elapsedMin >= durationMin {
		return models.OutcomeHeld
	}
	return models.OutcomeDropped
}

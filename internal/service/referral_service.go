package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/digkill/NumberHoldBot/internal/models"
	"github.com/digkill/NumberHoldBot/internal/repository"
)

type ReferralStore interface {
	Link(ctx context.Context, referrerID, referredID int64) (bool, error)
	ReferrerOf(ctx context.Context, userID int64) (*int64, error)
	Award(ctx context.Context, referrerID, referredID int64, bonus decimal.Decimal) (bool, error)
	StatsFor(ctx context.Context, userID int64) (*repository.ReferralStats, error)
	ListAll(ctx context.Context) ([]models.Referral, error)
}

// ReferralService handles attribution and the one-shot bonus. Attribution
// is fixed at first contact and never rewritten; the bonus fires at most
// once per referred user, on their first real success.
type ReferralService struct {
	referrals ReferralStore
	settings  *SettingsService
}

func NewReferralService(referrals ReferralStore, settings *SettingsService) *ReferralService {
	return &ReferralService{referrals: referrals, settings: settings}
}

// Attribute links a new user to their referrer. Self-referrals and repeat
// links are silently ignored.
func (s *ReferralService) Attribute(ctx context.Context, referrerID, referredID int64) error {
	if referrerID == referredID || referrerID <= 0 {
		return nil
	}
	if _, err := s.referrals.Link(ctx, referrerID, referredID); err != nil {
		return fmt.Errorf("link referral: %w", err)
	}
	return nil
}

// OnFirstSuccess pays the referral bonus if the referred user has a
// referrer, the program is enabled and the bonus has not been paid before.
// Returns nil when nothing fired. Disabling the program does not consume
// the one-shot: re-enabling lets a later success still pay.
func (s *ReferralService) OnFirstSuccess(ctx context.Context, userID int64) (*models.ReferralAward, error) {
	referrerID, err := s.referrals.ReferrerOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("look up referrer: %w", err)
	}
	if referrerID == nil {
		return nil, nil
	}

	enabled, err := s.settings.ReferralEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("read referral toggle: %w", err)
	}
	if !enabled {
		return nil, nil
	}

	bonus, err := s.settings.ReferralBonus(ctx)
	if err != nil {
		return nil, fmt.Errorf("read referral bonus: %w", err)
	}

	paid, err := s.referrals.Award(ctx, *referrerID, userID, bonus)
	if err != nil {
		return nil, fmt.Errorf("award referral bonus: %w", err)
	}
	if !paid {
		return nil, nil
	}
	return &models.ReferralAward{ReferrerID: *referrerID, ReferredID: userID, Bonus: bonus}, nil
}

func (s *ReferralService) StatsFor(ctx context.Context, userID int64) (*repository.ReferralStats, error) {
	return s.referrals.StatsFor(ctx, userID)
}

func (s *ReferralService) ListAll(ctx context.Context) ([]models.Referral, error) {
	return s.referrals.ListAll(ctx)
}

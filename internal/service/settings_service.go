package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Setting keys shared with the admin surface.
const (
	KeyPriorityPrice   = "priority_price"
	KeyPriorityName    = "priority_name"
	KeyFakeQueue       = "fake_queue"
	KeyNightMode       = "night_mode"
	KeyWeekendMode     = "weekend_mode"
	KeySystemMessage   = "system_message"
	KeyMinWithdrawal   = "min_withdrawal"
	KeyPaymentMethods  = "payment_methods"
	KeyReferralBonus   = "referral_bonus"
	KeyReferralEnabled = "referral_enabled"
)

// SettingsStore is the key/value contract the settings service reads
// through. No caching happens above it: a write by one operator is observed
// by the next read from any other.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type SettingsService struct {
	store SettingsStore
}

func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

func (s *SettingsService) ReferralBonus(ctx context.Context) (decimal.Decimal, error) {
	return s.getDecimal(ctx, KeyReferralBonus, decimal.NewFromFloat(0.5))
}

func (s *SettingsService) SetReferralBonus(ctx context.Context, amount decimal.Decimal) error {
	return s.store.Set(ctx, KeyReferralBonus, amount.String())
}

func (s *SettingsService) ReferralEnabled(ctx context.Context) (bool, error) {
	return s.getBool(ctx, KeyReferralEnabled, true)
}

func (s *SettingsService) SetReferralEnabled(ctx context.Context, enabled bool) error {
	return s.store.Set(ctx, KeyReferralEnabled, boolValue(enabled))
}

func (s *SettingsService) MinWithdrawal(ctx context.Context) (decimal.Decimal, error) {
	return s.getDecimal(ctx, KeyMinWithdrawal, decimal.NewFromInt(1))
}

func (s *SettingsService) SetMinWithdrawal(ctx context.Context, amount decimal.Decimal) error {
	return s.store.Set(ctx, KeyMinWithdrawal, amount.String())
}

func (s *SettingsService) PaymentMethods(ctx context.Context) ([]string, error) {
	raw, ok, err := s.store.Get(ctx, KeyPaymentMethods)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{"CryptoBot"}, nil
	}
	var methods []string
	for _, m := range strings.Split(raw, ",") {
		if m = strings.TrimSpace(m); m != "" {
			methods = append(methods, m)
		}
	}
	return methods, nil
}

func (s *SettingsService) SetPaymentMethods(ctx context.Context, methods []string) error {
	return s.store.Set(ctx, KeyPaymentMethods, strings.Join(methods, ","))
}

// FakeQueue is the padding added to the displayed queue size. It never maps
// to real numbers.
func (s *SettingsService) FakeQueue(ctx context.Context) (int, error) {
	return s.getInt(ctx, KeyFakeQueue, 0)
}

func (s *SettingsService) SetFakeQueue(ctx context.Context, count int) error {
	if count < 0 {
		count = 0
	}
	return s.store.Set(ctx, KeyFakeQueue, strconv.Itoa(count))
}

func (s *SettingsService) NightMode(ctx context.Context) (bool, error) {
	return s.getBool(ctx, KeyNightMode, false)
}

func (s *SettingsService) SetNightMode(ctx context.Context, enabled bool) error {
	return s.store.Set(ctx, KeyNightMode, boolValue(enabled))
}

func (s *SettingsService) WeekendMode(ctx context.Context) (bool, error) {
	return s.getBool(ctx, KeyWeekendMode, false)
}

func (s *SettingsService) SetWeekendMode(ctx context.Context, enabled bool) error {
	return s.store.Set(ctx, KeyWeekendMode, boolValue(enabled))
}

func (s *SettingsService) SystemMessage(ctx context.Context) (string, error) {
	raw, _, err := s.store.Get(ctx, KeySystemMessage)
	return raw, err
}

func (s *SettingsService) SetSystemMessage(ctx context.Context, message string) error {
	return s.store.Set(ctx, KeySystemMessage, message)
}

func (s *SettingsService) PriorityPrice(ctx context.Context) (decimal.Decimal, error) {
	return s.getDecimal(ctx, KeyPriorityPrice, decimal.NewFromFloat(0.5))
}

func (s *SettingsService) SetPriorityPrice(ctx context.Context, price decimal.Decimal) error {
	return s.store.Set(ctx, KeyPriorityPrice, price.String())
}

func (s *SettingsService) PriorityName(ctx context.Context) (string, error) {
	raw, ok, err := s.store.Get(ctx, KeyPriorityName)
	if err != nil {
		return "", err
	}
	if !ok || raw == "" {
		return "PRIORITY", nil
	}
	return raw, nil
}

func (s *SettingsService) SetPriorityName(ctx context.Context, name string) error {
	return s.store.Set(ctx, KeyPriorityName, name)
}

func (s *SettingsService) getDecimal(ctx context.Context, key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok || raw == "" {
		return fallback, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("setting %s is not a number: %w", key, err)
	}
	return value, nil
}

func (s *SettingsService) getInt(ctx context.Context, key string, fallback int) (int, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok || raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not an integer: %w", key, err)
	}
	return value, nil
}

func (s *SettingsService) getBool(ctx context.Context, key string, fallback bool) (bool, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok || raw == "" {
		return fallback, nil
	}
	return raw == "1" || raw == "true", nil
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

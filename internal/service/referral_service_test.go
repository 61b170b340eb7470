package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newReferralFixture() (*fakeReferralStore, *fakeSettings, *ReferralService) {
	store := newFakeReferralStore()
	settings := newFakeSettings(nil)
	return store, settings, NewReferralService(store, NewSettingsService(settings))
}

func TestAttributeIgnoresSelfReferral(t *testing.T) {
	store, _, svc := newReferralFixture()
	ctx := context.Background()

	require.NoError(t, svc.Attribute(ctx, 10, 10))
	require.Empty(t, store.referrers)

	require.NoError(t, svc.Attribute(ctx, 0, 10))
	require.Empty(t, store.referrers)
}

func TestAttributeKeepsFirstReferrer(t *testing.T) {
	store, _, svc := newReferralFixture()
	ctx := context.Background()

	require.NoError(t, svc.Attribute(ctx, 1, 10))
	require.NoError(t, svc.Attribute(ctx, 2, 10))
	require.Equal(t, int64(1), store.referrers[10])
}

func TestOnFirstSuccessPaysOnce(t *testing.T) {
	store, settings, svc := newReferralFixture()
	ctx := context.Background()
	require.NoError(t, settings.Set(ctx, KeyReferralBonus, "0.5"))
	require.NoError(t, svc.Attribute(ctx, 1, 10))

	award, err := svc.OnFirstSuccess(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, award)
	require.Equal(t, int64(1), award.ReferrerID)
	require.True(t, award.Bonus.Equal(decimal.NewFromFloat(0.5)))

	// A second success never pays again.
	award, err = svc.OnFirstSuccess(ctx, 10)
	require.NoError(t, err)
	require.Nil(t, award)
	require.Len(t, store.payouts, 1)
}

func TestOnFirstSuccessWithoutReferrer(t *testing.T) {
	_, _, svc := newReferralFixture()
	award, err := svc.OnFirstSuccess(context.Background(), 42)
	require.NoError(t, err)
	require.Nil(t, award)
}

func TestOnFirstSuccessDisabledKeepsOneShot(t *testing.T) {
	store, settings, svc := newReferralFixture()
	ctx := context.Background()
	require.NoError(t, svc.Attribute(ctx, 1, 10))
	require.NoError(t, settings.Set(ctx, KeyReferralEnabled, "0"))

	award, err := svc.OnFirstSuccess(ctx, 10)
	require.NoError(t, err)
	require.Nil(t, award)
	require.Empty(t, store.payouts)

	// Disabling does not consume the one-shot: once re-enabled, a later
	// success still pays.
	require.NoError(t, settings.Set(ctx, KeyReferralEnabled, "1"))
	award, err = svc.OnFirstSuccess(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, award)
}

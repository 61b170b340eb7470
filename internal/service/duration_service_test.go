package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digkill/NumberHoldBot/internal/models"
)

func TestVisibleAndRealDurations(t *testing.T) {
	tariffs := newFakeTariffs()
	tariff := tariffs.add("30-Minute", "8.0", 30, true)
	svc := NewDurationService(tariffs)
	ctx := context.Background()

	visible, err := svc.Visible(ctx, tariff.ID)
	require.NoError(t, err)
	require.Equal(t, 30, visible)

	// No surcharge yet: real equals visible.
	real, err := svc.Real(ctx, tariff.ID, models.PrivilegeOwner)
	require.NoError(t, err)
	require.Equal(t, visible, real)

	require.NoError(t, svc.SetSurcharge(ctx, tariff.ID, 10, models.PrivilegeOwner))
	real, err = svc.Real(ctx, tariff.ID, models.PrivilegeOwner)
	require.NoError(t, err)
	require.Equal(t, 40, real)

	// The visible duration never reflects the surcharge.
	visible, err = svc.Visible(ctx, tariff.ID)
	require.NoError(t, err)
	require.Equal(t, 30, visible)
}

func TestRealDurationOwnerOnly(t *testing.T) {
	tariffs := newFakeTariffs()
	tariff := tariffs.add("HOLD", "12.0", 60, true)
	svc := NewDurationService(tariffs)
	ctx := context.Background()

	_, err := svc.Real(ctx, tariff.ID, models.PrivilegeOperator)
	require.ErrorIs(t, err, ErrOwnerOnly)
	_, err = svc.Real(ctx, tariff.ID, models.PrivilegeNone)
	require.ErrorIs(t, err, ErrOwnerOnly)

	_, err = svc.Surcharge(ctx, tariff.ID, models.PrivilegeOperator)
	require.ErrorIs(t, err, ErrOwnerOnly)
	err = svc.SetSurcharge(ctx, tariff.ID, 5, models.PrivilegeOperator)
	require.ErrorIs(t, err, ErrOwnerOnly)
}

func TestSetSurchargeClampsNegative(t *testing.T) {
	tariffs := newFakeTariffs()
	tariff := tariffs.add("HOLD", "12.0", 60, true)
	svc := NewDurationService(tariffs)
	ctx := context.Background()

	require.NoError(t, svc.SetSurcharge(ctx, tariff.ID, -5, models.PrivilegeOwner))
	minutes, err := svc.Surcharge(ctx, tariff.ID, models.PrivilegeOwner)
	require.NoError(t, err)
	require.Equal(t, 0, minutes)
}

func TestDurationUnknownTariff(t *testing.T) {
	svc := NewDurationService(newFakeTariffs())
	_, err := svc.Visible(context.Background(), 99)
	require.ErrorIs(t, err, ErrTariffNotFound)
}

func TestElapsedMinutesFloors(t *testing.T) {
	base := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	require.Equal(t, 0, elapsedMinutes(base, base))
	require.Equal(t, 0, elapsedMinutes(base, base.Add(59*time.Second)))
	require.Equal(t, 1, elapsedMinutes(base, base.Add(time.Minute)))
	require.Equal(t, 34, elapsedMinutes(base, base.Add(34*time.Minute+59*time.Second)))
	require.Equal(t, 0, elapsedMinutes(base, base.Add(-time.Minute)))
}

func TestOutcomeFor(t *testing.T) {
	require.Equal(t, models.OutcomeHeld, outcomeFor(30, 30))
	require.Equal(t, models.OutcomeHeld, outcomeFor(31, 30))
	require.Equal(t, models.OutcomeDropped, outcomeFor(29, 30))
	require.Equal(t, models.OutcomeHeld, outcomeFor(0, 0))
}

package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEnsureDefaultsSeedsOnce(t *testing.T) {
	tariffs := newFakeTariffs()
	svc := NewTariffService(tariffs)
	ctx := context.Background()

	require.NoError(t, svc.EnsureDefaults(ctx))
	seeded, err := svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, seeded, 3)
	require.Equal(t, "HOLD", seeded[0].Name)
	require.True(t, seeded[0].Price.Equal(decimal.NewFromInt(12)))
	require.Equal(t, 60, seeded[0].DurationMin)

	// A non-empty table is left alone.
	require.NoError(t, svc.EnsureDefaults(ctx))
	again, err := svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, again, 3)
}

func TestToggleDeactivatesButKeepsTariff(t *testing.T) {
	tariffs := newFakeTariffs()
	svc := NewTariffService(tariffs)
	ctx := context.Background()

	created, err := svc.Create(ctx, "BH", decimal.NewFromInt(6), 15)
	require.NoError(t, err)

	require.NoError(t, svc.ToggleActive(ctx, created.ID))
	active, err := svc.Active(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	// History can still resolve the tariff.
	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.False(t, got.IsActive)
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewTariffService(newFakeTariffs())
	ctx := context.Background()

	_, err := svc.Create(ctx, "", decimal.NewFromInt(6), 15)
	require.Error(t, err)
	_, err = svc.Create(ctx, "BH", decimal.NewFromInt(6), 0)
	require.Error(t, err)
	_, err = svc.Create(ctx, "BH", decimal.NewFromInt(-1), 15)
	require.Error(t, err)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/digkill/NumberHoldBot/internal/models"
)

func newLedgerFixture() (*fakeLedgerStore, *fakeSettings, *LedgerService) {
	store := newFakeLedgerStore()
	settings := newFakeSettings(nil)
	svc := NewLedgerService(store, NewSettingsService(settings))
	svc.now = func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) }
	return store, settings, svc
}

func TestCreditDebitSetBalance(t *testing.T) {
	_, _, svc := newLedgerFixture()
	ctx := context.Background()

	balance, err := svc.Credit(ctx, 10, decimal.NewFromInt(5))
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(5)))

	balance, err = svc.Debit(ctx, 10, decimal.NewFromInt(2))
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(3)))

	balance, err = svc.SetBalance(ctx, 10, decimal.NewFromInt(20))
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(20)))
}

func TestRequestWithdrawalReservesFunds(t *testing.T) {
	store, _, svc := newLedgerFixture()
	ctx := context.Background()
	_, err := svc.SetBalance(ctx, 10, decimal.NewFromInt(15))
	require.NoError(t, err)

	w, err := svc.RequestWithdrawal(ctx, 10, "alice", decimal.NewFromInt(10), "CryptoBot", "wallet-1")
	require.NoError(t, err)
	require.Equal(t, models.WithdrawalPending, w.Status)

	balance, err := store.Balance(ctx, 10)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(5)), "request must debit immediately, got %s", balance)
}

func TestRequestWithdrawalInsufficientFunds(t *testing.T) {
	_, _, svc := newLedgerFixture()
	ctx := context.Background()
	_, err := svc.SetBalance(ctx, 10, decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = svc.RequestWithdrawal(ctx, 10, "alice", decimal.NewFromInt(15), "CryptoBot", "wallet-1")
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestRequestWithdrawalBelowMinimum(t *testing.T) {
	_, settings, svc := newLedgerFixture()
	ctx := context.Background()
	require.NoError(t, settings.Set(ctx, KeyMinWithdrawal, "2"))
	_, err := svc.SetBalance(ctx, 10, decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = svc.RequestWithdrawal(ctx, 10, "alice", decimal.NewFromInt(1), "CryptoBot", "wallet-1")
	require.ErrorIs(t, err, ErrBelowMinimum)
}

func TestRequestWithdrawalSinglePending(t *testing.T) {
	_, _, svc := newLedgerFixture()
	ctx := context.Background()
	_, err := svc.SetBalance(ctx, 10, decimal.NewFromInt(20))
	require.NoError(t, err)

	_, err = svc.RequestWithdrawal(ctx, 10, "alice", decimal.NewFromInt(5), "CryptoBot", "wallet-1")
	require.NoError(t, err)
	_, err = svc.RequestWithdrawal(ctx, 10, "alice", decimal.NewFromInt(5), "CryptoBot", "wallet-1")
	require.ErrorIs(t, err, ErrPendingExists)
}

func TestRequestWithdrawalUnknownMethod(t *testing.T) {
	_, _, svc := newLedgerFixture()
	ctx := context.Background()
	_, err := svc.SetBalance(ctx, 10, decimal.NewFromInt(20))
	require.NoError(t, err)

	_, err = svc.RequestWithdrawal(ctx, 10, "alice", decimal.NewFromInt(5), "PayPal", "wallet-1")
	require.ErrorIs(t, err, ErrUnknownPayoutMethod)
}

func TestRejectRefundsReservedAmount(t *testing.T) {
	store, _, svc := newLedgerFixture()
	ctx := context.Background()
	_, err := svc.SetBalance(ctx, 10, decimal.NewFromInt(15))
	require.NoError(t, err)

	w, err := svc.RequestWithdrawal(ctx, 10, "alice", decimal.NewFromInt(10), "CryptoBot", "wallet-1")
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, w.ID, 1, "bad details")
	require.NoError(t, err)
	require.Equal(t, models.WithdrawalRejected, rejected.Status)
	require.Equal(t, "bad details", rejected.Comment)

	balance, err := store.Balance(ctx, 10)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(15)), "reject must refund the exact amount, got %s", balance)
}

func TestApproveLeavesBalanceUnchanged(t *testing.T) {
	store, _, svc := newLedgerFixture()
	ctx := context.Background()
	_, err := svc.SetBalance(ctx, 10, decimal.NewFromInt(15))
	require.NoError(t, err)

	w, err := svc.RequestWithdrawal(ctx, 10, "alice", decimal.NewFromInt(10), "CryptoBot", "wallet-1")
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, w.ID, 1, "")
	require.NoError(t, err)
	require.Equal(t, models.WithdrawalApproved, approved.Status)

	balance, err := store.Balance(ctx, 10)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(5)))
}

func TestResolveWithdrawalErrors(t *testing.T) {
	_, _, svc := newLedgerFixture()
	ctx := context.Background()
	_, err := svc.SetBalance(ctx, 10, decimal.NewFromInt(15))
	require.NoError(t, err)

	_, err = svc.Approve(ctx, 999, 1, "")
	require.ErrorIs(t, err, ErrWithdrawalNotFound)

	w, err := svc.RequestWithdrawal(ctx, 10, "alice", decimal.NewFromInt(5), "CryptoBot", "wallet-1")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, w.ID, 1, "")
	require.NoError(t, err)
	_, err = svc.Reject(ctx, w.ID, 1, "")
	require.ErrorIs(t, err, ErrAlreadyProcessed)
}

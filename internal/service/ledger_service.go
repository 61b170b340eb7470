package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/digkill/NumberHoldBot/internal/models"
	"github.com/digkill/NumberHoldBot/internal/repository"
)

var (
	ErrBelowMinimum        = errors.New("amount below withdrawal minimum")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrPendingExists       = errors.New("a pending withdrawal already exists")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrAlreadyProcessed    = errors.New("withdrawal already processed")
	ErrUnknownPayoutMethod = errors.New("unknown payout method")
)

type LedgerStore interface {
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
	Adjust(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error)
	SetBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	Reserve(ctx context.Context, w *models.Withdrawal) (*models.Withdrawal, error)
	Settle(ctx context.Context, id int64, actorID int64, status models.WithdrawalStatus, comment string, at time.Time) (*models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error)
	ListWithdrawalsFor(ctx context.Context, userID int64, limit int) ([]models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, status models.WithdrawalStatus) ([]models.Withdrawal, error)
}

// LedgerService manages balances and the withdrawal lifecycle. A withdrawal
// reserves funds the moment it is requested; only a rejection gives them
// back.
type LedgerService struct {
	ledger   LedgerStore
	settings *SettingsService
	now      func() time.Time
}

func NewLedgerService(ledger LedgerStore, settings *SettingsService) *LedgerService {
	return &LedgerService{ledger: ledger, settings: settings, now: time.Now}
}

func (s *LedgerService) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.ledger.Balance(ctx, userID)
}

func (s *LedgerService) Credit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.ledger.Adjust(ctx, userID, amount)
}

func (s *LedgerService) Debit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.ledger.Adjust(ctx, userID, amount.Neg())
}

func (s *LedgerService) SetBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.ledger.SetBalance(ctx, userID, amount)
}

// RequestWithdrawal validates the amount against the configured minimum and
// the payout method against the configured list, then reserves the funds.
// At most one pending withdrawal per user.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, userID int64, username string, amount decimal.Decimal, method, details string) (*models.Withdrawal, error) {
	min, err := s.settings.MinWithdrawal(ctx)
	if err != nil {
		return nil, fmt.Errorf("read withdrawal minimum: %w", err)
	}
	if amount.LessThan(min) {
		return nil, ErrBelowMinimum
	}

	methods, err := s.settings.PaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("read payout methods: %w", err)
	}
	known := false
	for _, m := range methods {
		if m == method {
			known = true
			break
		}
	}
	if !known {
		return nil, ErrUnknownPayoutMethod
	}

	w, err := s.ledger.Reserve(ctx, &models.Withdrawal{
		UserID:         userID,
		Username:       username,
		Amount:         amount,
		Status:         models.WithdrawalPending,
		PaymentMethod:  method,
		PaymentDetails: details,
		CreatedAt:      s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotEnoughBalance):
			return nil, ErrInsufficientFunds
		case errors.Is(err, repository.ErrPendingWithdrawal):
			return nil, ErrPendingExists
		}
		return nil, err
	}
	return w, nil
}

// Approve finalizes a pending withdrawal. The funds left the balance at
// request time, so approval only flips the status.
func (s *LedgerService) Approve(ctx context.Context, id, actorID int64, comment string) (*models.Withdrawal, error) {
	return s.settle(ctx, id, actorID, models.WithdrawalApproved, comment)
}

// Reject refunds the reserved amount and marks the withdrawal rejected.
func (s *LedgerService) Reject(ctx context.Context, id, actorID int64, comment string) (*models.Withdrawal, error) {
	return s.settle(ctx, id, actorID, models.WithdrawalRejected, comment)
}

func (s *LedgerService) settle(ctx context.Context, id, actorID int64, status models.WithdrawalStatus, comment string) (*models.Withdrawal, error) {
	w, err := s.ledger.Settle(ctx, id, actorID, status, comment, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWithdrawalMissing):
			return nil, ErrWithdrawalNotFound
		case errors.Is(err, repository.ErrWithdrawalProcessed):
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}
	return w, nil
}

func (s *LedgerService) Withdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	return s.ledger.GetWithdrawal(ctx, id)
}

func (s *LedgerService) HistoryFor(ctx context.Context, userID int64, limit int) ([]models.Withdrawal, error) {
	return s.ledger.ListWithdrawalsFor(ctx, userID, limit)
}

func (s *LedgerService) List(ctx context.Context, status models.WithdrawalStatus) ([]models.Withdrawal, error) {
	return s.ledger.ListWithdrawals(ctx, status)
}

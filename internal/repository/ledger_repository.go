package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/digkill/NumberHoldBot/internal/models"
)

// Sentinel results for the atomic withdrawal operations. The service layer
// maps them onto its caller-facing errors.
var (
	ErrNotEnoughBalance    = errors.New("not enough balance")
	ErrPendingWithdrawal   = errors.New("pending withdrawal exists")
	ErrWithdrawalMissing   = errors.New("withdrawal not found")
	ErrWithdrawalProcessed = errors.New("withdrawal already processed")
)

// LedgerRepository owns user balances and withdrawal rows. Every
// read-then-write crossing the two lives in a single transaction here.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Adjust adds delta to the balance (negative delta debits, clamped at zero)
// and returns the new value.
func (r *LedgerRepository) Adjust(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	const query = `UPDATE users SET balance = GREATEST(balance + ?, 0), updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, delta, userID); err != nil {
		return decimal.Zero, fmt.Errorf("adjust balance: %w", err)
	}
	return r.Balance(ctx, userID)
}

func (r *LedgerRepository) SetBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	const query = `UPDATE users SET balance = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, amount, userID); err != nil {
		return decimal.Zero, fmt.Errorf("set balance: %w", err)
	}
	return r.Balance(ctx, userID)
}

// Reserve debits the requested amount and creates the pending withdrawal as
// one atomic unit. The row lock on the user serializes concurrent requests,
// so the balance check cannot race a second reservation.
func (r *LedgerRepository) Reserve(ctx context.Context, w *models.Withdrawal) (*models.Withdrawal, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ? FOR UPDATE`, w.UserID).Scan(&balance); err != nil {
		return nil, fmt.Errorf("lock balance: %w", err)
	}
	if balance.LessThan(w.Amount) {
		return nil, ErrNotEnoughBalance
	}

	var pending int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM withdrawals WHERE user_id = ? AND status = ?`, w.UserID, string(models.WithdrawalPending)).Scan(&pending); err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	if pending > 0 {
		return nil, ErrPendingWithdrawal
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance - ?, updated_at = NOW() WHERE id = ?`, w.Amount, w.UserID); err != nil {
		return nil, fmt.Errorf("reserve funds: %w", err)
	}

	const insert = `
INSERT INTO withdrawals (user_id, username, amount, status, payment_method, payment_details)
VALUES (?, NULLIF(?, ''), ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, insert, w.UserID, w.Username, w.Amount, string(models.WithdrawalPending), w.PaymentMethod, w.PaymentDetails)
	if err != nil {
		return nil, fmt.Errorf("insert withdrawal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("withdrawal last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reservation: %w", err)
	}
	return r.GetWithdrawal(ctx, id)
}

// Settle finalizes a pending withdrawal. A rejection credits the reserved
// amount back; an approval leaves the balance as it was after the request.
func (r *LedgerRepository) Settle(ctx context.Context, id int64, actorID int64, status models.WithdrawalStatus, comment string, at time.Time) (*models.Withdrawal, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var userID int64
	var amount decimal.Decimal
	var current string
	row := tx.QueryRowContext(ctx, `SELECT user_id, amount, status FROM withdrawals WHERE id = ? FOR UPDATE`, id)
	if err := row.Scan(&userID, &amount, &current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawalMissing
		}
		return nil, fmt.Errorf("lock withdrawal: %w", err)
	}
	if models.WithdrawalStatus(current) != models.WithdrawalPending {
		return nil, ErrWithdrawalProcessed
	}

	const update = `
UPDATE withdrawals SET status = ?, processed_at = ?, processed_by = ?, comment = ?
WHERE id = ?`
	if _, err := tx.ExecContext(ctx, update, string(status), at, actorID, comment, id); err != nil {
		return nil, fmt.Errorf("update withdrawal: %w", err)
	}

	if status == models.WithdrawalRejected {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + ?, updated_at = NOW() WHERE id = ?`, amount, userID); err != nil {
			return nil, fmt.Errorf("release funds: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit settlement: %w", err)
	}
	return r.GetWithdrawal(ctx, id)
}

const withdrawalColumns = `id, user_id, COALESCE(username, ''), amount, status, COALESCE(payment_method, ''), COALESCE(payment_details, ''), created_at, processed_at, processed_by, COALESCE(comment, '')`

func scanWithdrawal(row interface{ Scan(...any) error }) (*models.Withdrawal, error) {
	var w models.Withdrawal
	var status string
	if err := row.Scan(&w.ID, &w.UserID, &w.Username, &w.Amount, &status, &w.PaymentMethod, &w.PaymentDetails, &w.CreatedAt, &w.ProcessedAt, &w.ProcessedBy, &w.Comment); err != nil {
		return nil, err
	}
	w.Status = models.WithdrawalStatus(status)
	return &w, nil
}

func (r *LedgerRepository) GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = ?`
	w, err := scanWithdrawal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

func (r *LedgerRepository) ListWithdrawalsFor(ctx context.Context, userID int64, limit int) ([]models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE user_id = ? ORDER BY id DESC LIMIT ?`
	return r.listWithdrawals(ctx, query, userID, limit)
}

func (r *LedgerRepository) ListWithdrawals(ctx context.Context, status models.WithdrawalStatus) ([]models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id DESC`
	return r.listWithdrawals(ctx, query, args...)
}

func (r *LedgerRepository) listWithdrawals(ctx context.Context, query string, args ...any) ([]models.Withdrawal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, *w)
	}
	return withdrawals, rows.Err()
}

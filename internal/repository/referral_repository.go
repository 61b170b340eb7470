package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/digkill/NumberHoldBot/internal/models"
)

type ReferralRepository struct {
	db *sql.DB
}

func NewReferralRepository(db *sql.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Link records the referrer/referred pair once. Returns false when the pair
// already exists.
func (r *ReferralRepository) Link(ctx context.Context, referrerID, referredID int64) (bool, error) {
	const query = `
INSERT IGNORE INTO referrals (referrer_id, referred_id)
VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, query, referrerID, referredID)
	if err != nil {
		return false, fmt.Errorf("insert referral: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("referral rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReferrerOf returns the fixed referrer of a user, nil when none.
func (r *ReferralRepository) ReferrerOf(ctx context.Context, userID int64) (*int64, error) {
	var referrerID *int64
	err := r.db.QueryRowContext(ctx, `SELECT referrer_id FROM users WHERE id = ?`, userID).Scan(&referrerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get referrer: %w", err)
	}
	return referrerID, nil
}

// Award pays the one-time referral bonus. The guarded UPDATE on the referred
// user's one-shot flag is the idempotence gate: when it affects no row the
// bonus has already been paid and the whole transaction is abandoned.
func (r *ReferralRepository) Award(ctx context.Context, referrerID, referredID int64, bonus decimal.Decimal) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
UPDATE users SET referral_bonus_received = 1, updated_at = NOW()
WHERE id = ? AND referral_bonus_received = 0`, referredID)
	if err != nil {
		return false, fmt.Errorf("flag bonus received: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("flag rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE users SET balance = balance + ?, referral_earned = referral_earned + ?, updated_at = NOW()
WHERE id = ?`, bonus, bonus, referrerID); err != nil {
		return false, fmt.Errorf("credit referrer: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE referrals SET first_completed = 1, bonus_paid = 1
WHERE referrer_id = ? AND referred_id = ?`, referrerID, referredID); err != nil {
		return false, fmt.Errorf("mark referral paid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit award: %w", err)
	}
	return true, nil
}

type ReferralStats struct {
	TotalReferred      int
	SuccessfulReferred int
	Earned             decimal.Decimal
}

func (r *ReferralRepository) StatsFor(ctx context.Context, userID int64) (*ReferralStats, error) {
	var stats ReferralStats
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM referrals WHERE referrer_id = ?`, userID).Scan(&stats.TotalReferred); err != nil {
		return nil, fmt.Errorf("count referred: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM referrals WHERE referrer_id = ? AND first_completed = 1`, userID).Scan(&stats.SuccessfulReferred); err != nil {
		return nil, fmt.Errorf("count successful referred: %w", err)
	}
	err := r.db.QueryRowContext(ctx, `SELECT referral_earned FROM users WHERE id = ?`, userID).Scan(&stats.Earned)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get referral earnings: %w", err)
	}
	return &stats, nil
}

func (r *ReferralRepository) ListAll(ctx context.Context) ([]models.Referral, error) {
	const query = `
SELECT id, referrer_id, referred_id, first_completed, bonus_paid, created_at
FROM referrals
ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var referrals []models.Referral
	for rows.Next() {
		var ref models.Referral
		var completed, paid int
		if err := rows.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &completed, &paid, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		ref.FirstCompleted = completed != 0
		ref.BonusPaid = paid != 0
		referrals = append(referrals, ref)
	}
	return referrals, rows.Err()
}

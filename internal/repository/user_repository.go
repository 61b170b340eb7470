package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/NumberHoldBot/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, COALESCE(username, ''), balance, role, total_numbers, is_banned, referrer_id, referral_bonus_received, referral_earned, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var role int
	var banned, bonusReceived int
	if err := row.Scan(&u.ID, &u.Username, &u.Balance, &role, &u.TotalNumbers, &banned, &u.ReferrerID, &bonusReceived, &u.ReferralEarned, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Privilege(role)
	u.IsBanned = banned != 0
	u.ReferralBonusReceived = bonusReceived != 0
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// Ensure creates the user on first contact, updating the stored username on
// subsequent contacts. The referrer is fixed at creation and never changes.
func (r *UserRepository) Ensure(ctx context.Context, id int64, username string, referrerID *int64) (*models.User, bool, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		if username != "" && username != user.Username {
			if _, err := r.db.ExecContext(ctx, `UPDATE users SET username = ? WHERE id = ?`, username, id); err != nil {
				return nil, false, fmt.Errorf("update username: %w", err)
			}
			user.Username = username
		}
		return user, false, nil
	}

	const insert = `
INSERT INTO users (id, username, referrer_id)
VALUES (?, NULLIF(?, ''), ?)`
	if _, err := r.db.ExecContext(ctx, insert, id, username, referrerID); err != nil {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}
	created, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (r *UserRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	value := 0
	if banned {
		value = 1
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET is_banned = ? WHERE id = ?`, value, id); err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	return nil
}

func (r *UserRepository) SetRole(ctx context.Context, id int64, role models.Privilege) error {
	const query = `
INSERT INTO users (id, role) VALUES (?, ?)
ON DUPLICATE KEY UPDATE role = VALUES(role)`
	if _, err := r.db.ExecContext(ctx, query, id, int(role)); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

func (r *UserRepository) IncrementTotalNumbers(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET total_numbers = total_numbers + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("increment total numbers: %w", err)
	}
	return nil
}

func (r *UserRepository) ListOperators(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role >= 1 ORDER BY id ASC`
	return r.list(ctx, query)
}

func (r *UserRepository) ListAll(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	return r.list(ctx, query)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

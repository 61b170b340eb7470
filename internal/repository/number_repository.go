package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/NumberHoldBot/internal/models"
)

type NumberRepository struct {
	db *sql.DB
}

func NewNumberRepository(db *sql.DB) *NumberRepository {
	return &NumberRepository{db: db}
}

const numberColumns = `id, user_id, phone, tariff_id, status, COALESCE(real_outcome, ''), is_priority, created_at, taken_at, finished_at`

func scanNumber(row interface{ Scan(...any) error }) (*models.Number, error) {
	var n models.Number
	var status, outcome string
	var priority int
	if err := row.Scan(&n.ID, &n.UserID, &n.Phone, &n.TariffID, &status, &outcome, &priority, &n.CreatedAt, &n.TakenAt, &n.FinishedAt); err != nil {
		return nil, err
	}
	n.Status = models.NumberStatus(status)
	n.RealOutcome = models.Outcome(outcome)
	n.IsPriority = priority != 0
	return &n, nil
}

func (r *NumberRepository) GetByID(ctx context.Context, id int64) (*models.Number, error) {
	query := `SELECT ` + numberColumns + ` FROM numbers WHERE id = ?`
	number, err := scanNumber(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get number: %w", err)
	}
	return number, nil
}

// Exists reports whether the user has ever submitted the phone, in any
// status. Voided numbers count: the row is kept, not deleted.
func (r *NumberRepository) Exists(ctx context.Context, userID int64, phone string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM numbers WHERE user_id = ? AND phone = ? LIMIT 1`, userID, phone).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check number exists: %w", err)
	}
	return true, nil
}

func (r *NumberRepository) Create(ctx context.Context, number *models.Number) (*models.Number, error) {
	const query = `
INSERT INTO numbers (user_id, phone, tariff_id, status, is_priority, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	priority := 0
	if number.IsPriority {
		priority = 1
	}
	res, err := r.db.ExecContext(ctx, query, number.UserID, number.Phone, number.TariffID, string(models.StatusQueued), priority, number.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert number: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("number last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

// NextQueued returns the best queued number: priority first, then oldest.
func (r *NumberRepository) NextQueued(ctx context.Context) (*models.Number, error) {
	query := `
SELECT ` + numberColumns + `
FROM numbers
WHERE status = ?
ORDER BY is_priority DESC, created_at ASC
LIMIT 1`
	number, err := scanNumber(r.db.QueryRowContext(ctx, query, string(models.StatusQueued)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next queued: %w", err)
	}
	return number, nil
}

// MarkTaken is the single atomic claim gate: the guarded UPDATE moves the
// number out of queued only if it is still queued. Exactly one concurrent
// caller observes true.
func (r *NumberRepository) MarkTaken(ctx context.Context, id int64, at time.Time) (bool, error) {
	const query = `
UPDATE numbers SET status = ?, taken_at = ?
WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, string(models.StatusInWork), at, id, string(models.StatusQueued))
	if err != nil {
		return false, fmt.Errorf("mark taken: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark taken rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkFinished records both the submitter-visible status and the real
// outcome, guarded on the number still being in work.
func (r *NumberRepository) MarkFinished(ctx context.Context, id int64, visible models.NumberStatus, real models.Outcome, at time.Time) (bool, error) {
	const query = `
UPDATE numbers SET status = ?, real_outcome = ?, finished_at = ?
WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, string(visible), string(real), at, id, string(models.StatusInWork))
	if err != nil {
		return false, fmt.Errorf("mark finished: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark finished rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkRemoved voids a queued or in-work number. The row is kept so the
// duplicate-submission check still sees it.
func (r *NumberRepository) MarkRemoved(ctx context.Context, id int64, at time.Time) (bool, error) {
	const query = `
UPDATE numbers SET status = ?, finished_at = ?
WHERE id = ? AND status IN (?, ?)`
	res, err := r.db.ExecContext(ctx, query, string(models.StatusRemoved), at, id, string(models.StatusQueued), string(models.StatusInWork))
	if err != nil {
		return false, fmt.Errorf("mark removed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark removed rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *NumberRepository) CountQueued(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM numbers WHERE status = ?`, string(models.StatusQueued)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count queued: %w", err)
	}
	return count, nil
}

// EarliestQueuedFor returns the user's best queued number under the same
// ordering NextQueued draws with.
func (r *NumberRepository) EarliestQueuedFor(ctx context.Context, userID int64) (*models.Number, error) {
	query := `
SELECT ` + numberColumns + `
FROM numbers
WHERE user_id = ? AND status = ?
ORDER BY is_priority DESC, created_at ASC
LIMIT 1`
	number, err := scanNumber(r.db.QueryRowContext(ctx, query, userID, string(models.StatusQueued)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("earliest queued for user: %w", err)
	}
	return number, nil
}

// CountQueuedBefore counts queued numbers that sort strictly ahead of the
// given one: all priority numbers for a non-priority target, earlier
// priority numbers for a priority target.
func (r *NumberRepository) CountQueuedBefore(ctx context.Context, target *models.Number) (int, error) {
	var query string
	if target.IsPriority {
		query = `
SELECT COUNT(*) FROM numbers
WHERE status = ? AND is_priority = 1 AND created_at < ?`
	} else {
		query = `
SELECT COUNT(*) FROM numbers
WHERE status = ? AND (is_priority = 1 OR created_at < ?)`
	}
	var count int
	if err := r.db.QueryRowContext(ctx, query, string(models.StatusQueued), target.CreatedAt).Scan(&count); err != nil {
		return 0, fmt.Errorf("count queued before: %w", err)
	}
	return count, nil
}

func (r *NumberRepository) CountQueuedFor(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM numbers WHERE user_id = ? AND status = ?`, userID, string(models.StatusQueued)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count queued for user: %w", err)
	}
	return count, nil
}

// ListFinishedFor returns the user's archive, newest first.
func (r *NumberRepository) ListFinishedFor(ctx context.Context, userID int64, limit int) ([]models.Number, error) {
	query := `
SELECT ` + numberColumns + `
FROM numbers
WHERE user_id = ? AND status IN (?, ?)
ORDER BY id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, string(models.StatusHeld), string(models.StatusDropped), limit)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	defer rows.Close()
	return collectNumbers(rows)
}

func (r *NumberRepository) ListAll(ctx context.Context) ([]models.Number, error) {
	query := `SELECT ` + numberColumns + ` FROM numbers ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list numbers: %w", err)
	}
	defer rows.Close()
	return collectNumbers(rows)
}

// RemoveAllQueued voids every queued number and returns their IDs so owners
// can notify the submitters.
func (r *NumberRepository) RemoveAllQueued(ctx context.Context, at time.Time) ([]models.Number, error) {
	query := `SELECT ` + numberColumns + ` FROM numbers WHERE status = ?`
	rows, err := r.db.QueryContext(ctx, query, string(models.StatusQueued))
	if err != nil {
		return nil, fmt.Errorf("list queued: %w", err)
	}
	queued, err := collectNumbers(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	const update = `UPDATE numbers SET status = ?, finished_at = ? WHERE status = ?`
	if _, err := r.db.ExecContext(ctx, update, string(models.StatusRemoved), at, string(models.StatusQueued)); err != nil {
		return nil, fmt.Errorf("remove queued: %w", err)
	}
	return queued, nil
}

func collectNumbers(rows *sql.Rows) ([]models.Number, error) {
	var numbers []models.Number
	for rows.Next() {
		number, err := scanNumber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan number: %w", err)
		}
		numbers = append(numbers, *number)
	}
	return numbers, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/NumberHoldBot/internal/models"
)

type TariffRepository struct {
	db *sql.DB
}

func NewTariffRepository(db *sql.DB) *TariffRepository {
	return &TariffRepository{db: db}
}

const tariffColumns = `id, name, price, duration_min, is_active, created_at, updated_at`

func scanTariff(row interface{ Scan(...any) error }) (*models.Tariff, error) {
	var t models.Tariff
	var active int
	if err := row.Scan(&t.ID, &t.Name, &t.Price, &t.DurationMin, &active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.IsActive = active != 0
	return &t, nil
}

func (r *TariffRepository) GetByID(ctx context.Context, id int64) (*models.Tariff, error) {
	query := `SELECT ` + tariffColumns + ` FROM tariffs WHERE id = ?`
	tariff, err := scanTariff(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tariff: %w", err)
	}
	return tariff, nil
}

func (r *TariffRepository) List(ctx context.Context, activeOnly bool) ([]models.Tariff, error) {
	query := `SELECT ` + tariffColumns + ` FROM tariffs`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}
	defer rows.Close()

	var tariffs []models.Tariff
	for rows.Next() {
		tariff, err := scanTariff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tariff: %w", err)
		}
		tariffs = append(tariffs, *tariff)
	}
	return tariffs, rows.Err()
}

func (r *TariffRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tariffs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tariffs: %w", err)
	}
	return count, nil
}

func (r *TariffRepository) Create(ctx context.Context, tariff *models.Tariff) (*models.Tariff, error) {
	const query = `
INSERT INTO tariffs (name, price, duration_min, is_active)
VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, tariff.Name, tariff.Price, tariff.DurationMin, tariff.IsActive)
	if err != nil {
		return nil, fmt.Errorf("create tariff: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("tariff last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *TariffRepository) Update(ctx context.Context, tariff *models.Tariff) (*models.Tariff, error) {
	const query = `
UPDATE tariffs
SET name = ?, price = ?, duration_min = ?, is_active = ?, updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, tariff.Name, tariff.Price, tariff.DurationMin, tariff.IsActive, tariff.ID); err != nil {
		return nil, fmt.Errorf("update tariff: %w", err)
	}
	return r.GetByID(ctx, tariff.ID)
}

// ToggleActive flips the active flag. Tariffs are deactivated, never deleted:
// finished numbers keep referencing them.
func (r *TariffRepository) ToggleActive(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE tariffs SET is_active = 1 - is_active, updated_at = NOW() WHERE id = ?`, id); err != nil {
		return fmt.Errorf("toggle tariff: %w", err)
	}
	return nil
}

// ExtraMinutes returns the hidden per-tariff duration surcharge, zero when
// none is configured.
func (r *TariffRepository) ExtraMinutes(ctx context.Context, tariffID int64) (int, error) {
	var minutes int
	err := r.db.QueryRowContext(ctx, `SELECT extra_minutes FROM tariff_extra_minutes WHERE tariff_id = ?`, tariffID).Scan(&minutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get extra minutes: %w", err)
	}
	return minutes, nil
}

func (r *TariffRepository) SetExtraMinutes(ctx context.Context, tariffID int64, minutes int) error {
	const query = `
INSERT INTO tariff_extra_minutes (tariff_id, extra_minutes)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE extra_minutes = VALUES(extra_minutes)`
	if _, err := r.db.ExecContext(ctx, query, tariffID, minutes); err != nil {
		return fmt.Errorf("set extra minutes: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/digkill/NumberHoldBot/internal/models"
)

type TariffStore interface {
	GetByID(ctx context.Context, id int64) (*models.Tariff, error)
	List(ctx context.Context, activeOnly bool) ([]models.Tariff, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, tariff *models.Tariff) (*models.Tariff, error)
	Update(ctx context.Context, tariff *models.Tariff) (*models.Tariff, error)
	ToggleActive(ctx context.Context, id int64) error
}

type TariffService struct {
	tariffs TariffStore
}

func NewTariffService(tariffs TariffStore) *TariffService {
	return &TariffService{tariffs: tariffs}
}

// defaultTariff is seeded on an empty tariffs table.
type defaultTariff struct {
	name        string
	price       string
	durationMin int
}

var defaultTariffs = []defaultTariff{
	{name: "HOLD", price: "12.0", durationMin: 60},
	{name: "BH", price: "6.0", durationMin: 15},
	{name: "30-Minute", price: "8.0", durationMin: 30},
}

// EnsureDefaults seeds the standard tariffs when none exist yet. A table
// that has ever held a tariff is left alone.
func (s *TariffService) EnsureDefaults(ctx context.Context) error {
	count, err := s.tariffs.Count(ctx)
	if err != nil {
		return fmt.Errorf("count tariffs: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, dt := range defaultTariffs {
		price, err := decimal.NewFromString(dt.price)
		if err != nil {
			return fmt.Errorf("parse default price: %w", err)
		}
		if _, err := s.tariffs.Create(ctx, &models.Tariff{
			Name:        dt.name,
			Price:       price,
			DurationMin: dt.durationMin,
			IsActive:    true,
		}); err != nil {
			return fmt.Errorf("seed tariff %s: %w", dt.name, err)
		}
	}
	return nil
}

func (s *TariffService) GetByID(ctx context.Context, id int64) (*models.Tariff, error) {
	return s.tariffs.GetByID(ctx, id)
}

// Active lists the tariffs submitters may choose from.
func (s *TariffService) Active(ctx context.Context) ([]models.Tariff, error) {
	return s.tariffs.List(ctx, true)
}

func (s *TariffService) All(ctx context.Context) ([]models.Tariff, error) {
	return s.tariffs.List(ctx, false)
}

func (s *TariffService) Create(ctx context.Context, name string, price decimal.Decimal, durationMin int) (*models.Tariff, error) {
	if name == "" || durationMin <= 0 || price.IsNegative() {
		return nil, fmt.Errorf("invalid tariff parameters")
	}
	return s.tariffs.Create(ctx, &models.Tariff{
		Name:        name,
		Price:       price,
		DurationMin: durationMin,
		IsActive:    true,
	})
}

func (s *TariffService) Update(ctx context.Context, tariff *models.Tariff) (*models.Tariff, error) {
	if tariff.Name == "" || tariff.DurationMin <= 0 || tariff.Price.IsNegative() {
		return nil, fmt.Errorf("invalid tariff parameters")
	}
	updated, err := s.tariffs.Update(ctx, tariff)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrTariffNotFound
	}
	return updated, nil
}

// ToggleActive flips availability. Tariffs are deactivated, never deleted,
// so finished numbers keep a valid reference.
func (s *TariffService) ToggleActive(ctx context.Context, id int64) error {
	return s.tariffs.ToggleActive(ctx, id)
}

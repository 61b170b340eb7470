package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/digkill/NumberHoldBot/internal/models"
	"github.com/digkill/NumberHoldBot/internal/repository"
)

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettings(values map[string]string) *fakeSettings {
	if values == nil {
		values = map[string]string{}
	}
	return &fakeSettings{values: values}
}

func (f *fakeSettings) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeSettings) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

type fakeTariffs struct {
	mu      sync.Mutex
	nextID  int64
	tariffs map[int64]*models.Tariff
	extra   map[int64]int
}

func newFakeTariffs() *fakeTariffs {
	return &fakeTariffs{tariffs: map[int64]*models.Tariff{}, extra: map[int64]int{}}
}

func (f *fakeTariffs) add(name string, price string, durationMin int, active bool) *models.Tariff {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := &models.Tariff{
		ID:          f.nextID,
		Name:        name,
		Price:       decimal.RequireFromString(price),
		DurationMin: durationMin,
		IsActive:    active,
	}
	f.tariffs[t.ID] = t
	return t
}

func (f *fakeTariffs) GetByID(_ context.Context, id int64) (*models.Tariff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tariffs[id]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTariffs) List(_ context.Context, activeOnly bool) ([]models.Tariff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Tariff
	for _, t := range f.tariffs {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTariffs) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tariffs), nil
}

func (f *fakeTariffs) Create(_ context.Context, tariff *models.Tariff) (*models.Tariff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	copied := *tariff
	copied.ID = f.nextID
	f.tariffs[copied.ID] = &copied
	result := copied
	return &result, nil
}

func (f *fakeTariffs) Update(_ context.Context, tariff *models.Tariff) (*models.Tariff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tariffs[tariff.ID]; !ok {
		return nil, nil
	}
	copied := *tariff
	f.tariffs[tariff.ID] = &copied
	result := copied
	return &result, nil
}

func (f *fakeTariffs) ToggleActive(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tariffs[id]; ok {
		t.IsActive = !t.IsActive
	}
	return nil
}

func (f *fakeTariffs) ExtraMinutes(_ context.Context, tariffID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extra[tariffID], nil
}

func (f *fakeTariffs) SetExtraMinutes(_ context.Context, tariffID int64, minutes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extra[tariffID] = minutes
	return nil
}

// fakeNumberStore mirrors the repository's guarded-update contract with an
// in-memory map. The mutex makes each Mark* call atomic so claim races can
// be tested for real.
type fakeNumberStore struct {
	mu      sync.Mutex
	nextID  int64
	numbers map[int64]*models.Number
}

func newFakeNumberStore() *fakeNumberStore {
	return &fakeNumberStore{numbers: map[int64]*models.Number{}}
}

func (f *fakeNumberStore) GetByID(_ context.Context, id int64) (*models.Number, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.numbers[id]
	if !ok {
		return nil, nil
	}
	copied := *n
	return &copied, nil
}

func (f *fakeNumberStore) Exists(_ context.Context, userID int64, phone string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.numbers {
		if n.UserID == userID && n.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNumberStore) Create(_ context.Context, number *models.Number) (*models.Number, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	copied := *number
	copied.ID = f.nextID
	copied.Status = models.StatusQueued
	f.numbers[copied.ID] = &copied
	result := copied
	return &result, nil
}

func (f *fakeNumberStore) queuedOrder() []*models.Number {
	var queued []*models.Number
	for _, n := range f.numbers {
		if n.Status == models.StatusQueued {
			queued = append(queued, n)
		}
	}
	sort.Slice(queued, func(i, j int) bool {
		if queued[i].IsPriority != queued[j].IsPriority {
			return queued[i].IsPriority
		}
		return queued[i].CreatedAt.Before(queued[j].CreatedAt)
	})
	return queued
}

func (f *fakeNumberStore) NextQueued(_ context.Context) (*models.Number, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queued := f.queuedOrder()
	if len(queued) == 0 {
		return nil, nil
	}
	copied := *queued[0]
	return &copied, nil
}

func (f *fakeNumberStore) MarkTaken(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.numbers[id]
	if !ok || n.Status != models.StatusQueued {
		return false, nil
	}
	n.Status = models.StatusInWork
	taken := at
	n.TakenAt = &taken
	return true, nil
}

func (f *fakeNumberStore) MarkFinished(_ context.Context, id int64, visible models.NumberStatus, real models.Outcome, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.numbers[id]
	if !ok || n.Status != models.StatusInWork {
		return false, nil
	}
	n.Status = visible
	n.RealOutcome = real
	finished := at
	n.FinishedAt = &finished
	return true, nil
}

func (f *fakeNumberStore) MarkRemoved(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.numbers[id]
	if !ok || (n.Status != models.StatusQueued && n.Status != models.StatusInWork) {
		return false, nil
	}
	n.Status = models.StatusRemoved
	finished := at
	n.FinishedAt = &finished
	return true, nil
}

func (f *fakeNumberStore) ListFinishedFor(_ context.Context, userID int64, limit int) ([]models.Number, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Number
	for _, n := range f.numbers {
		if n.UserID == userID && (n.Status == models.StatusHeld || n.Status == models.StatusDropped) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeNumberStore) ListAll(_ context.Context) ([]models.Number, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Number
	for _, n := range f.numbers {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeNumberStore) RemoveAllQueued(_ context.Context, at time.Time) ([]models.Number, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var voided []models.Number
	for _, n := range f.numbers {
		if n.Status == models.StatusQueued {
			voided = append(voided, *n)
			n.Status = models.StatusRemoved
			finished := at
			n.FinishedAt = &finished
		}
	}
	return voided, nil
}

func (f *fakeNumberStore) CountQueued(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queuedOrder()), nil
}

func (f *fakeNumberStore) CountQueuedFor(_ context.Context, userID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.numbers {
		if n.UserID == userID && n.Status == models.StatusQueued {
			count++
		}
	}
	return count, nil
}

func (f *fakeNumberStore) EarliestQueuedFor(_ context.Context, userID int64) (*models.Number, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.queuedOrder() {
		if n.UserID == userID {
			copied := *n
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeNumberStore) CountQueuedBefore(_ context.Context, target *models.Number) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.queuedOrder() {
		if n.ID == target.ID {
			continue
		}
		if target.IsPriority {
			if n.IsPriority && n.CreatedAt.Before(target.CreatedAt) {
				count++
			}
		} else if n.IsPriority || n.CreatedAt.Before(target.CreatedAt) {
			count++
		}
	}
	return count, nil
}

type fakeUserCounter struct {
	mu     sync.Mutex
	counts map[int64]int
}

func newFakeUserCounter() *fakeUserCounter {
	return &fakeUserCounter{counts: map[int64]int{}}
}

func (f *fakeUserCounter) IncrementTotalNumbers(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[id]++
	return nil
}

// fakeReferralStore reproduces the repository's one-shot award semantics:
// the bonus flag is per referred user and flips exactly once.
type fakeReferralStore struct {
	mu        sync.Mutex
	referrers map[int64]int64
	awarded   map[int64]bool
	payouts   []models.ReferralAward
}

func newFakeReferralStore() *fakeReferralStore {
	return &fakeReferralStore{referrers: map[int64]int64{}, awarded: map[int64]bool{}}
}

func (f *fakeReferralStore) Link(_ context.Context, referrerID, referredID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.referrers[referredID]; ok {
		return false, nil
	}
	f.referrers[referredID] = referrerID
	return true, nil
}

func (f *fakeReferralStore) ReferrerOf(_ context.Context, userID int64) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.referrers[userID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (f *fakeReferralStore) Award(_ context.Context, referrerID, referredID int64, bonus decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.awarded[referredID] {
		return false, nil
	}
	f.awarded[referredID] = true
	f.payouts = append(f.payouts, models.ReferralAward{ReferrerID: referrerID, ReferredID: referredID, Bonus: bonus})
	return true, nil
}

func (f *fakeReferralStore) StatsFor(_ context.Context, userID int64) (*repository.ReferralStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.ReferralStats{Earned: decimal.Zero}
	for referred, referrer := range f.referrers {
		if referrer != userID {
			continue
		}
		stats.TotalReferred++
		if f.awarded[referred] {
			stats.SuccessfulReferred++
		}
	}
	for _, p := range f.payouts {
		if p.ReferrerID == userID {
			stats.Earned = stats.Earned.Add(p.Bonus)
		}
	}
	return stats, nil
}

func (f *fakeReferralStore) ListAll(_ context.Context) ([]models.Referral, error) {
	return nil, nil
}

// fakeLedgerStore keeps the reservation contract of the SQL ledger: a
// reserve debits immediately, a rejected settle refunds, an approved one
// does not.
type fakeLedgerStore struct {
	mu          sync.Mutex
	balances    map[int64]decimal.Decimal
	withdrawals map[int64]*models.Withdrawal
	nextID      int64
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		balances:    map[int64]decimal.Decimal{},
		withdrawals: map[int64]*models.Withdrawal{},
	}
}

func (f *fakeLedgerStore) Balance(_ context.Context, userID int64) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *fakeLedgerStore) Adjust(_ context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.balances[userID].Add(delta)
	if next.IsNegative() {
		next = decimal.Zero
	}
	f.balances[userID] = next
	return next, nil
}

func (f *fakeLedgerStore) SetBalance(_ context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] = amount
	return amount, nil
}

func (f *fakeLedgerStore) Reserve(_ context.Context, w *models.Withdrawal) (*models.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[w.UserID].LessThan(w.Amount) {
		return nil, repository.ErrNotEnoughBalance
	}
	for _, existing := range f.withdrawals {
		if existing.UserID == w.UserID && existing.Status == models.WithdrawalPending {
			return nil, repository.ErrPendingWithdrawal
		}
	}
	f.balances[w.UserID] = f.balances[w.UserID].Sub(w.Amount)
	f.nextID++
	copied := *w
	copied.ID = f.nextID
	copied.Status = models.WithdrawalPending
	f.withdrawals[copied.ID] = &copied
	result := copied
	return &result, nil
}

func (f *fakeLedgerStore) Settle(_ context.Context, id int64, actorID int64, status models.WithdrawalStatus, comment string, at time.Time) (*models.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.withdrawals[id]
	if !ok {
		return nil, repository.ErrWithdrawalMissing
	}
	if w.Status != models.WithdrawalPending {
		return nil, repository.ErrWithdrawalProcessed
	}
	w.Status = status
	w.Comment = comment
	processed := at
	w.ProcessedAt = &processed
	w.ProcessedBy = &actorID
	if status == models.WithdrawalRejected {
		f.balances[w.UserID] = f.balances[w.UserID].Add(w.Amount)
	}
	copied := *w
	return &copied, nil
}

func (f *fakeLedgerStore) GetWithdrawal(_ context.Context, id int64) (*models.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.withdrawals[id]
	if !ok {
		return nil, nil
	}
	copied := *w
	return &copied, nil
}

func (f *fakeLedgerStore) ListWithdrawalsFor(_ context.Context, userID int64, limit int) ([]models.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Withdrawal
	for _, w := range f.withdrawals {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLedgerStore) ListWithdrawals(_ context.Context, status models.WithdrawalStatus) ([]models.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Withdrawal
	for _, w := range f.withdrawals {
		if status != "" && w.Status != status {
			continue
		}
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

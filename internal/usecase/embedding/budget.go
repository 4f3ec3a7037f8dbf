package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
)

// BudgetAction selects what happens once a token cap is reached.
type BudgetAction string

const (
	// BudgetActionWarn lets the call through and logs.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the call with domain.ErrEmbeddingQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

const budgetPersistTimeout = 2 * time.Second

// BudgetStore persists budget counters. IncrBy may be retried.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// period is one accounting window (calendar day or month, UTC).
type period struct {
	name   string
	layout string
	floor  func(time.Time) time.Time
	limit  int64
	used   int64
	start  time.Time
}

func newPeriod(name, layout string, floor func(time.Time) time.Time, limit int64, now time.Time) period {
	return period{name: name, layout: layout, floor: floor, limit: limit, start: floor(now)}
}

// roll zeroes the counter when now falls into a later window.
func (p *period) roll(now time.Time) {
	if s := p.floor(now); s.After(p.start) {
		p.start = s
		p.used = 0
	}
}

func (p *period) exhausted() bool { return p.limit > 0 && p.used >= p.limit }

// remaining is -1 for an unlimited window.
func (p *period) remaining() int64 {
	if p.limit <= 0 {
		return -1
	}
	return max(p.limit-p.used, 0)
}

// BudgetTracker caps the tokens one provider may spend per day and per month.
// Check only reads memory. Record updates memory and then writes through to the store.
type BudgetTracker struct {
	mu       sync.Mutex
	provider string
	action   BudgetAction
	day      period
	month    period
	prefix   string
	store    BudgetStore
	clock    func() time.Time
	logger   *zap.Logger
}

// BudgetUsage is a snapshot of counters and limits. A zero limit means unlimited.
type BudgetUsage struct {
	Provider     string
	Action       BudgetAction
	DailyUsed    int64
	DailyLimit   int64
	MonthlyUsed  int64
	MonthlyLimit int64
}

// NewBudgetTracker starts empty counters for provider.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	clock := func() time.Time { return time.Now().UTC() }
	now := clock()
	return &BudgetTracker{
		provider: provider,
		action:   action,
		day:      newPeriod("daily", "2006-01-02", startOfDay, dailyLimit, now),
		month:    newPeriod("monthly", "2006-01", startOfMonth, monthlyLimit, now),
		prefix:   domain.KeyPrefix,
		clock:    clock,
		logger:   logger,
	}
}

// WithKeyPrefix namespaces persisted counters. Call before WithStore.
func (b *BudgetTracker) WithKeyPrefix(prefix string) *BudgetTracker {
	if prefix != "" {
		b.prefix = prefix
	}
	return b
}

// WithStore attaches persistence and seeds the counters of the current windows from it.
// Load failures are logged and leave the counters at zero.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.clock()
	for _, p := range b.periods() {
		key := b.key(p, now)
		val, err := store.Get(ctx, key)
		if err != nil {
			b.logger.Warn("Budget counter not loaded",
				zap.String("period", p.name), zap.String("key", key), zap.Error(err))
			continue
		}
		p.used = val
	}

	b.logger.Info("Budget counters restored",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.day.used),
		zap.Int64("monthly_used", b.month.used),
	)
	return b
}

func (b *BudgetTracker) periods() [2]*period { return [2]*period{&b.day, &b.month} }

// key renders {prefix}budget:{provider}:{daily|monthly}:{date}.
func (b *BudgetTracker) key(p *period, at time.Time) string {
	return fmt.Sprintf("%sbudget:%s:%s:%s", b.prefix, b.provider, p.name, at.Format(p.layout))
}

func (b *BudgetTracker) rollLocked() time.Time {
	now := b.clock()
	b.day.roll(now)
	b.month.roll(now)
	return now
}

// Check reports whether another embedding call is allowed.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()

	if !b.day.exhausted() && !b.month.exhausted() {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}
	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.day.used),
		zap.Int64("daily_limit", b.day.limit),
		zap.Int64("monthly_used", b.month.used),
		zap.Int64("monthly_limit", b.month.limit),
	)
	return nil
}

// Record adds consumed tokens to both windows. Store errors are logged, never returned.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	now := b.rollLocked()
	keys := make([]string, 0, 2)
	for _, p := range b.periods() {
		p.used += tokens
		keys = append(keys, b.key(p, now))
	}
	store := b.store
	b.mu.Unlock()

	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), budgetPersistTimeout)
	defer cancel()
	for _, key := range keys {
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.logger.Warn("Budget counter not persisted", zap.String("key", key), zap.Error(err))
		}
	}
}

func (b *BudgetTracker) read(fn func() int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return fn()
}

// RemainingDaily returns the tokens left today, or -1 when unlimited.
func (b *BudgetTracker) RemainingDaily() int64 { return b.read(b.day.remaining) }

// RemainingMonthly returns the tokens left this month, or -1 when unlimited.
func (b *BudgetTracker) RemainingMonthly() int64 { return b.read(b.month.remaining) }

// DailyUsed returns the tokens spent today.
func (b *BudgetTracker) DailyUsed() int64 { return b.read(func() int64 { return b.day.used }) }

// MonthlyUsed returns the tokens spent this month.
func (b *BudgetTracker) MonthlyUsed() int64 { return b.read(func() int64 { return b.month.used }) }

// DailyLimit returns the daily cap.
func (b *BudgetTracker) DailyLimit() int64 { return b.day.limit }

// MonthlyLimit returns the monthly cap.
func (b *BudgetTracker) MonthlyLimit() int64 { return b.month.limit }

// Usage is reported by the stats operation.
func (b *BudgetTracker) Usage() BudgetUsage {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return BudgetUsage{
		Provider:     b.provider,
		Action:       b.action,
		DailyUsed:    b.day.used,
		DailyLimit:   b.day.limit,
		MonthlyUsed:  b.month.used,
		MonthlyLimit: b.month.limit,
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

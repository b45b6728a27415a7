package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const barrierKey = "loan:income_barrier"

// BarrierSource fetches the live income barrier
type BarrierSource interface {
	IncomeBarrier(ctx context.Context) (float64, error)
}

// BarrierOptions tunes the income barrier cache
type BarrierOptions struct {
	TTL        time.Duration
	Timeout    time.Duration
	RetryAfter time.Duration
	Fallback   float64
}

// IncomeBarrier caches the scorer's income barrier in Redis.
// A nil Redis client disables caching and every call hits the source,
// except while a recent failure is being backed off.
type IncomeBarrier struct {
	rdb    *redis.Client
	source BarrierSource
	opts   BarrierOptions
	log    *logrus.Logger
	now    func() time.Time

	mu          sync.Mutex
	failedUntil time.Time
}

// NewIncomeBarrier creates the barrier cache
func NewIncomeBarrier(rdb *redis.Client, source BarrierSource, opts BarrierOptions, log *logrus.Logger) *IncomeBarrier {
	return &IncomeBarrier{rdb: rdb, source: source, opts: opts, log: log, now: time.Now}
}

// Get returns the cached barrier, refreshing from the source on a miss.
// Source failures yield the configured fallback, which is served without
// asking the source again for RetryAfter and is never written to Redis.
func (b *IncomeBarrier) Get(ctx context.Context) float64 {
	if b.rdb != nil {
		raw, err := b.rdb.Get(ctx, barrierKey).Result()
		switch {
		case err == nil:
			if v, perr := strconv.ParseFloat(raw, 64); perr == nil && v > 0 {
				return v
			}
			b.log.Warnf("Discarding malformed cached income barrier %q", raw)
		case !errors.Is(err, redis.Nil):
			b.log.Warnf("Income barrier cache read failed: %v", err)
		}
	}

	if b.backingOff() {
		return b.opts.Fallback
	}

	fetchCtx := ctx
	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}
	v, err := b.source.IncomeBarrier(fetchCtx)
	if err != nil {
		b.markFailed()
		b.log.Warnf("Income barrier unavailable, using default %.2f: %v", b.opts.Fallback, err)
		return b.opts.Fallback
	}

	if b.rdb != nil {
		if err := b.rdb.Set(ctx, barrierKey, strconv.FormatFloat(v, 'f', -1, 64), b.opts.TTL).Err(); err != nil {
			b.log.Warnf("Income barrier cache write failed: %v", err)
		}
	}
	return v
}

func (b *IncomeBarrier) backingOff() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().Before(b.failedUntil)
}

func (b *IncomeBarrier) markFailed() {
	if b.opts.RetryAfter <= 0 {
		return
	}
	b.mu.Lock()
	b.failedUntil = b.now().Add(b.opts.RetryAfter)
	b.mu.Unlock()
}

// NewRedis creates a Redis client, or nil when addr is empty
func NewRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MatchOdds is the cached pair of head-to-head prices for a match.
type MatchOdds struct {
	HomeOdds  decimal.Decimal `json:"home_odds"`
	AwayOdds  decimal.Decimal `json:"away_odds"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OddsCache provides fast access to the latest prices without a database
// round trip. The database stays authoritative; the cache may lag or miss.
type OddsCache interface {
	SetOdds(ctx context.Context, matchID string, odds MatchOdds) error
	GetOdds(ctx context.Context, matchID string) (MatchOdds, error)
	Invalidate(ctx context.Context, matchID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking for the background jobs, so two
// instances never run the same job concurrently.
type LockManager interface {
	// Acquire takes the named lock or returns ErrLockHeld. The returned
	// function releases it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out plus an append-only stream journal.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// Watermarks persists forward-advancing job checkpoints, such as the last
// archived day. Get returns "" for a key that has never been set.
type Watermarks interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

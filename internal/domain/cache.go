package domain

import (
	"context"
	"time"
)

// MarketCache is a read-through cache for markets keyed by market id.
// Implementations return ErrNotFound on a miss.
type MarketCache interface {
	Set(ctx context.Context, m Market) error
	Get(ctx context.Context, id string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// ProposalCache is a read-through cache for proposals keyed by proposal id.
type ProposalCache interface {
	Set(ctx context.Context, p Proposal) error
	Get(ctx context.Context, id uint64) (Proposal, error)
	Invalidate(ctx context.Context, id uint64) error
}

// LockManager provides distributed mutual exclusion. Acquire returns an
// unlock function on success and ErrLockHeld when another party holds the
// lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter throttles an operation per key within a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus carries committed-state events to downstream consumers
// (WebSocket hub, notifier, external indexers).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

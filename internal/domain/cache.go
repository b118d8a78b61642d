package domain

import (
	"context"
	"time"
)

// MarketCache is a read-through cache for market records.
type MarketCache interface {
	Get(ctx context.Context, id string) (Market, error)
	Set(ctx context.Context, market Market) error
	Invalidate(ctx context.Context, id string) error
}

// LockManager provides per-market mutual exclusion. Operations on different
// markets are independent; two operations targeting the same market must not
// interleave.
type LockManager interface {
	// Acquire obtains the lock for key or returns ErrLockHeld. The returned
	// function releases the lock and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter bounds request rates per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage is a single entry read from a durable event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus publishes engine events (resolutions, disputes, extensions,
// payouts) to ephemeral pub/sub channels and appends them to durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

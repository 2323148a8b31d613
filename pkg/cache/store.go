package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Backend names reported by Store.Backend and used as metric labels.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store is a key/value store with per-entry expiration.
//
// Contract:
//   - Get returns a payload only while now < expiry; otherwise (nil, false).
//   - Set overwrites any existing entry and resets its expiry to now + ttl.
//     ttl <= 0 means the value is not cached.
//   - None of the methods fail: backend faults degrade to a miss or a
//     dropped write and are logged by the implementation.
//   - Implementations are safe for concurrent use; last writer wins.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)

	// Backend returns BackendMemory or BackendRedis.
	Backend() string

	// Close releases backend resources.
	Close() error
}

// Ensure both backends satisfy the contract.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// DefaultNamespace prefixes every key written by RedisStore.
	DefaultNamespace = "rmgw:cache:"

	// DefaultOpTimeout bounds a single Redis round trip.
	DefaultOpTimeout = 250 * time.Millisecond

	clearScanCount = 500
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// Namespace is prepended to every key. Clear only touches this namespace.
	Namespace string

	// OpTimeout bounds each Redis call.
	OpTimeout time.Duration
}

// RedisStore is the distributed Store backend.
// Entries are stored as JSON-encoded Entry values with a Redis PX expiry.
// Every Redis failure is logged, counted and absorbed.
type RedisStore struct {
	redis     *redis.Client
	namespace string
	opTimeout time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRedisStore creates a Redis-backed store. The store owns the client and
// closes it on Close.
func NewRedisStore(redisClient *redis.Client, opts RedisOptions, logger zerolog.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	return &RedisStore{
		redis:     redisClient,
		namespace: opts.Namespace,
		opTimeout: opts.OpTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *RedisStore) key(key string) string {
	return s.namespace + key
}

// Get retrieves the payload for key.
// Missing, expired, undecodable and unreachable all report a miss.
func (s *RedisStore) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.fail("get", key, err)
		}
		CacheMisses.WithLabelValues(BackendRedis).Inc()
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.fail("get", key, err)
		CacheMisses.WithLabelValues(BackendRedis).Inc()
		return nil, false
	}

	// Redis expires the key itself; this guards against clock skew between
	// instances and entries written without PX.
	if entry.ExpiredAt(s.now()) {
		if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
			s.fail("delete", key, err)
		}
		CacheEvictions.WithLabelValues(BackendRedis).Inc()
		CacheMisses.WithLabelValues(BackendRedis).Inc()
		return nil, false
	}

	CacheHits.WithLabelValues(BackendRedis).Inc()
	return entry.Data, true
}

// Set stores value under key with a Redis expiry of ttl.
func (s *RedisStore) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(newEntry(value, s.now(), ttl))
	if err != nil {
		s.fail("set", key, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.redis.Set(ctx, s.key(key), data, ttl).Err(); err != nil {
		s.fail("set", key, err)
		return
	}

	s.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached payload")
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		s.fail("delete", key, err)
	}
}

// Clear removes every key in the store's namespace without FLUSHALL.
// The whole namespace is scanned before anything is deleted, so the scan
// cursor never runs over a keyspace that is shrinking underneath it.
func (s *RedisStore) Clear(ctx context.Context) {
	pattern := s.namespace + "*"

	keys, err := s.scanKeys(ctx, pattern)
	if err != nil {
		s.fail("clear", pattern, err)
		return
	}

	removed := 0
	for start := 0; start < len(keys); start += clearScanCount {
		end := min(start+clearScanCount, len(keys))

		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		n, err := s.redis.Del(opCtx, keys[start:end]...).Result()
		cancel()
		if err != nil {
			s.fail("clear", pattern, err)
			return
		}
		removed += int(n)
	}

	s.logger.Info().Int("removed", removed).Msg("Cache cleared")
}

// scanKeys returns every key matching pattern, deduplicated.
func (s *RedisStore) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	var cursor uint64

	for {
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		batch, next, err := s.redis.Scan(opCtx, cursor, pattern, clearScanCount).Result()
		cancel()
		if err != nil {
			return nil, err
		}

		for _, k := range batch {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}

		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Ping checks Redis connectivity. Used by readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.redis.Ping(ctx).Err()
}

// Client exposes the underlying Redis client so other components can share the connection pool.
func (s *RedisStore) Client() *redis.Client {
	return s.redis
}

// Backend implements Store.
func (s *RedisStore) Backend() string {
	return BackendRedis
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}

func (s *RedisStore) fail(operation, key string, err error) {
	CacheErrors.WithLabelValues(operation).Inc()

	event := s.logger.Warn()
	if errors.Is(err, context.Canceled) {
		event = s.logger.Debug()
	}
	event.Err(err).
		Str("operation", operation).
		Str("key", key).
		Msg("Cache backend error, continuing without cache")
}

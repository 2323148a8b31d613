package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned by Connect when no Redis address is set.
var ErrNotConfigured = errors.New("redis not configured")

// Options controls backend selection.
type Options struct {
	// RedisAddr is host:port of the distributed backend. Empty selects the in-process backend.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Redis tunes the RedisStore when it is selected.
	Redis RedisOptions

	// Connect controls the startup ping.
	Connect BackoffConfig
}

// BackoffConfig holds the configuration for the startup connection attempts.
type BackoffConfig struct {
	// MaxAttempts is the number of pings, including the first one.
	MaxAttempts int

	// InitialBackoff is the wait after the first failed ping.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultBackoffConfig returns the default startup connection policy.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Connect creates a Redis client and pings it until it answers or the
// attempts are exhausted. On failure the client is closed and nil returned.
func Connect(ctx context.Context, opts Options, logger zerolog.Logger) (*redis.Client, error) {
	if opts.RedisAddr == "" {
		return nil, ErrNotConfigured
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})

	err := retryWithBackoff(ctx, opts.Connect, logger, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		CacheErrors.WithLabelValues("connect").Inc()
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.RedisAddr, err)
	}

	logger.Info().Str("addr", opts.RedisAddr).Msg("Redis connected")
	return client, nil
}

// Select returns a RedisStore when redisClient is non-nil and an in-process
// MemoryStore otherwise. It is called once at startup; the choice is never
// revisited per request.
func Select(redisClient *redis.Client, opts RedisOptions, logger zerolog.Logger) Store {
	if redisClient == nil {
		logger.Info().Str("backend", BackendMemory).Msg("Using in-process cache")
		return NewMemoryStore()
	}
	logger.Info().Str("backend", BackendRedis).Msg("Using Redis cache")
	return NewRedisStore(redisClient, opts, logger)
}

// Open connects to Redis if configured and reachable and falls back to the
// in-process backend otherwise.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) Store {
	client, err := Connect(ctx, opts, logger)
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		logger.Warn().Err(err).Msg("Redis unreachable, falling back to in-process cache")
	}
	return Select(client, opts.Redis, logger)
}

// retryWithBackoff executes fn with exponential backoff and ±20% jitter.
// It respects context cancellation between attempts.
func retryWithBackoff(ctx context.Context, config BackoffConfig, logger zerolog.Logger, fn func(context.Context) error) error {
	defaults := DefaultBackoffConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffMultiplier < 1 {
		config.BackoffMultiplier = defaults.BackoffMultiplier
	}

	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Redis ping succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if attempt >= config.MaxAttempts {
			break
		}

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		logger.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Redis ping failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("ping cancelled: %w", ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return fmt.Errorf("after %d attempts: %w", config.MaxAttempts, lastErr)
}

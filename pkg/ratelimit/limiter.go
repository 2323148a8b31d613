package ratelimit

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrLimitExceeded is reported by Decision.Err for callers that exhausted their window budget.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Prometheus metrics for admission control.
var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rmgw_ratelimit_decisions_total",
		Help: "Total admission decisions by result (allowed, rejected)",
	}, []string{"decision", "backend"})

	windowsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rmgw_ratelimit_windows",
		Help: "Number of tracked rate-limit windows in the in-process limiter",
	})

	errorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rmgw_ratelimit_errors_total",
		Help: "Total rate-limit backend errors (requests admitted fail-open)",
	})
)

// Limiter decides whether a caller identity may issue another request.
// Implementations are safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, identity string) Decision
}

// NewLimiter returns a RedisLimiter when a Redis client is available and a
// MemoryLimiter otherwise. The choice follows the cache backend decision made
// at startup and is not revisited.
func NewLimiter(redisClient *redis.Client, cfg Config, logger zerolog.Logger) Limiter {
	if redisClient != nil {
		logger.Info().
			Dur("window", cfg.withDefaults().Window).
			Int("max", cfg.withDefaults().Max).
			Msg("Using Redis rate limiter")
		return NewRedisLimiter(redisClient, cfg, RedisOptions{}, logger)
	}

	logger.Info().
		Dur("window", cfg.withDefaults().Window).
		Int("max", cfg.withDefaults().Max).
		Msg("Using in-process rate limiter")
	return NewMemoryLimiter(cfg)
}

func record(d Decision, backend string) Decision {
	label := "allowed"
	if !d.Allowed {
		label = "rejected"
	}
	decisionsTotal.WithLabelValues(label, backend).Inc()
	return d
}

package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Defaults for RedisOptions.
const (
	DefaultPrefix    = "rmgw:ratelimit:"
	DefaultOpTimeout = 250 * time.Millisecond
)

// allowScript increments the window counter of KEYS[1] unless it already
// exceeds the budget, starts the window expiry on the first hit and returns
// {count, pttl}.
//
// ARGV[1] window in milliseconds, ARGV[2] max requests.
var allowScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count <= tonumber(ARGV[2]) then
  count = redis.call('INCR', KEYS[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisOptions configures a RedisLimiter.
type RedisOptions struct {
	// Prefix of every window key.
	Prefix string

	// OpTimeout bounds each Redis round trip.
	OpTimeout time.Duration
}

// RedisLimiter keeps windows in Redis so that every gateway instance shares
// one budget per identity. Window expiry is delegated to Redis key TTLs.
//
// Redis failures fail open: the request is admitted, logged and counted.
type RedisLimiter struct {
	redis  *redis.Client
	cfg    Config
	opts   RedisOptions
	logger zerolog.Logger
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(redisClient *redis.Client, cfg Config, opts RedisOptions, logger zerolog.Logger) *RedisLimiter {
	if redisClient == nil {
		panic("ratelimit: redis client must not be nil")
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	return &RedisLimiter{
		redis:  redisClient,
		cfg:    cfg.withDefaults(),
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Allow records a request for identity and returns the decision.
func (l *RedisLimiter) Allow(ctx context.Context, identity string) Decision {
	now := l.now()

	opCtx, cancel := context.WithTimeout(ctx, l.opts.OpTimeout)
	defer cancel()

	res, err := allowScript.Run(opCtx, l.redis, []string{l.opts.Prefix + identity},
		l.cfg.Window.Milliseconds(), l.cfg.Max).Int64Slice()
	if err == nil && len(res) != 2 {
		err = errors.New("unexpected script reply")
	}
	if err != nil {
		errorsTotal.Inc()
		l.logger.Warn().
			Err(err).
			Str("identity", identity).
			Msg("Rate limit backend unavailable, admitting request")
		return record(Decision{
			Allowed:   true,
			Limit:     l.cfg.Max,
			Remaining: l.cfg.Max,
			ResetAt:   now.Add(l.cfg.Window),
		}, "redis")
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	return record(decide(count, l.cfg, now.Add(ttl)), "redis")
}

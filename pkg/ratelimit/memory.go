package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

const shardCount = 32

type windowShard struct {
	mu      sync.Mutex
	windows map[string]*Window
}

// MemoryLimiter keeps windows in process. Identities are spread over shards,
// each with its own mutex.
type MemoryLimiter struct {
	cfg    Config
	shards [shardCount]*windowShard
	size   atomic.Int64
	now    func() time.Time
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		l.now = now
	}
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(cfg Config, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		cfg: cfg.withDefaults(),
		now: time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &windowShard{windows: make(map[string]*Window)}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) shard(identity string) *windowShard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return l.shards[h.Sum32()%shardCount]
}

// Allow records a request for identity and returns the decision.
func (l *MemoryLimiter) Allow(_ context.Context, identity string) Decision {
	now := l.now()
	s := l.shard(identity)

	s.mu.Lock()
	w, ok := s.windows[identity]
	if !ok {
		w = &Window{}
		s.windows[identity] = w
		windowsGauge.Set(float64(l.size.Add(1)))
	}
	w.hit(now, l.cfg)
	d := decide(w.Count, l.cfg, w.ResetAt(l.cfg.Window))
	s.mu.Unlock()

	return record(d, "memory")
}

// State returns the admission state of identity without recording a request.
func (l *MemoryLimiter) State(identity string) State {
	s := l.shard(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[identity]
	if !ok {
		return Open
	}
	return w.State(l.now(), l.cfg)
}

// Sweep removes every window whose period has elapsed and returns how many
// were removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()
	removed := 0

	for _, s := range l.shards {
		s.mu.Lock()
		for identity, w := range s.windows {
			if w.Expired(now, l.cfg.Window) {
				delete(s.windows, identity)
				removed++
			}
		}
		s.mu.Unlock()
	}

	if removed > 0 {
		windowsGauge.Set(float64(l.size.Add(-int64(removed))))
	}
	return removed
}

// Run calls Sweep every interval until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Len returns the number of tracked identities.
func (l *MemoryLimiter) Len() int {
	return int(l.size.Load())
}

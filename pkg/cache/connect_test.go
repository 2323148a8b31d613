package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

func fastBackoff() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestConnect_NotConfigured(t *testing.T) {
	client, err := Connect(context.Background(), Options{}, zerolog.Nop())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Connect() error = %v, want ErrNotConfigured", err)
	}
	if client != nil {
		t.Error("Connect() returned a client without an address")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := Connect(context.Background(), Options{RedisAddr: addr, Connect: fastBackoff()}, zerolog.Nop())
	if err == nil {
		t.Fatal("Connect() error = nil for closed server")
	}
	if client != nil {
		t.Error("Connect() returned a client on failure")
	}
}

func TestOpen_BackendSelection(t *testing.T) {
	mr := miniredis.RunT(t)

	closed := miniredis.RunT(t)
	closedAddr := closed.Addr()
	closed.Close()

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{name: "no address", opts: Options{}, want: BackendMemory},
		{name: "reachable redis", opts: Options{RedisAddr: mr.Addr(), Connect: fastBackoff()}, want: BackendRedis},
		{name: "unreachable redis falls back", opts: Options{RedisAddr: closedAddr, Connect: fastBackoff()}, want: BackendMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := Open(context.Background(), tt.opts, zerolog.Nop())
			defer store.Close()

			if store.Backend() != tt.want {
				t.Errorf("Backend() = %q, want %q", store.Backend(), tt.want)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	if _, ok := Select(nil, RedisOptions{}, zerolog.Nop()).(*MemoryStore); !ok {
		t.Error("Select(nil) did not return a MemoryStore")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), BackoffConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
		}, zerolog.Nop(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		})
		if err != nil {
			t.Errorf("retryWithBackoff() = %v, want nil", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		sentinel := errors.New("down")
		calls := 0
		err := retryWithBackoff(context.Background(), fastBackoff(), zerolog.Nop(), func(context.Context) error {
			calls++
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Errorf("retryWithBackoff() = %v, want wrapped sentinel", err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := retryWithBackoff(ctx, BackoffConfig{
			MaxAttempts:    5,
			InitialBackoff: time.Second,
		}, zerolog.Nop(), func(context.Context) error {
			return errors.New("down")
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("retryWithBackoff() = %v, want context.Canceled", err)
		}
	})
}

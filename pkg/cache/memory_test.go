package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock shared by the store tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_SetAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "character:get:id=1", json.RawMessage(`{"id":1,"name":"Rick Sanchez"}`), time.Minute)

	got, ok := store.Get(ctx, "character:get:id=1")
	if !ok {
		t.Fatal("Get() miss after Set")
	}
	if string(got) != `{"id":1,"name":"Rick Sanchez"}` {
		t.Errorf("Get() = %s, want original payload", got)
	}
}

func TestMemoryStore_Get_Miss(t *testing.T) {
	store := NewMemoryStore()

	if _, ok := store.Get(context.Background(), "nonexistent"); ok {
		t.Error("Get() hit on empty store")
	}
}

// TestMemoryStore_TTLScenario: TTL=50ms; get at t=10ms hits, get at t=60ms misses.
func TestMemoryStore_TTLScenario(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	store.Set(ctx, "k", json.RawMessage(`{"id":1}`), 50*time.Millisecond)

	clock.Advance(10 * time.Millisecond)
	got, ok := store.Get(ctx, "k")
	if !ok || string(got) != `{"id":1}` {
		t.Fatalf("Get() at t=10ms = %s, %v; want {\"id\":1}, true", got, ok)
	}

	clock.Advance(50 * time.Millisecond)
	if _, ok := store.Get(ctx, "k"); ok {
		t.Error("Get() at t=60ms hit, want absent")
	}
}

func TestMemoryStore_LazyRemovalOfExpired(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	store.Set(ctx, "k", json.RawMessage(`1`), time.Second)
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}

	clock.Advance(2 * time.Second)
	store.Get(ctx, "k")

	if store.Len() != 0 {
		t.Errorf("Len() after expired Get = %d, want 0", store.Len())
	}
}

func TestMemoryStore_SetOverwritesAndResetsExpiry(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	store.Set(ctx, "k", json.RawMessage(`"old"`), 100*time.Millisecond)
	clock.Advance(80 * time.Millisecond)
	store.Set(ctx, "k", json.RawMessage(`"new"`), 100*time.Millisecond)
	clock.Advance(80 * time.Millisecond)

	got, ok := store.Get(ctx, "k")
	if !ok {
		t.Fatal("Get() miss, expiry was not reset by second Set")
	}
	if string(got) != `"new"` {
		t.Errorf("Get() = %s, want \"new\"", got)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestMemoryStore_NonPositiveTTLNotCached(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "zero", json.RawMessage(`1`), 0)
	store.Set(ctx, "negative", json.RawMessage(`1`), -time.Second)

	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "k", json.RawMessage(`1`), time.Minute)
	store.Delete(ctx, "k")
	store.Delete(ctx, "missing")

	if _, ok := store.Get(ctx, "k"); ok {
		t.Error("Get() hit after Delete")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		store.Set(ctx, fmt.Sprintf("key-%d", i), json.RawMessage(`1`), time.Minute)
	}
	store.Clear(ctx)

	if store.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", store.Len())
	}
	if _, ok := store.Get(ctx, "key-42"); ok {
		t.Error("Get() hit after Clear")
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		store.Set(ctx, fmt.Sprintf("short-%d", i), json.RawMessage(`1`), time.Second)
	}
	store.Set(ctx, "long", json.RawMessage(`1`), time.Hour)

	clock.Advance(time.Minute)

	if removed := store.Sweep(); removed != 10 {
		t.Errorf("Sweep() = %d, want 10", removed)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
	if _, ok := store.Get(ctx, "long"); !ok {
		t.Error("live entry removed by Sweep")
	}
}

func TestMemoryStore_RunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestMemoryStore_ValueIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	value := json.RawMessage(`{"id":1}`)
	store.Set(ctx, "k", value, time.Minute)
	value[6] = '9'

	got, _ := store.Get(ctx, "k")
	if string(got) != `{"id":1}` {
		t.Errorf("Get() = %s, caller mutation leaked into cache", got)
	}
}

func TestMemoryStore_ReturnedValueIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "k", json.RawMessage(`{"id":1}`), time.Minute)

	first, _ := store.Get(ctx, "k")
	first[6] = '9'

	second, ok := store.Get(ctx, "k")
	if !ok || string(second) != `{"id":1}` {
		t.Errorf("second Get() = %s, %v; mutation of a returned value leaked into cache", second, ok)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key-%d", i%20)
				payload := json.RawMessage(fmt.Sprintf(`{"writer":%d}`, g))
				store.Set(ctx, key, payload, time.Minute)
				if got, ok := store.Get(ctx, key); ok && !json.Valid(got) {
					t.Errorf("torn read for %s: %s", key, got)
				}
				if i%50 == 0 {
					store.Delete(ctx, key)
				}
			}
		}(g)
	}
	wg.Wait()

	if store.Len() > 20 {
		t.Errorf("Len() = %d, want <= 20", store.Len())
	}
}

func TestMemoryStore_Backend(t *testing.T) {
	store := NewMemoryStore()
	if store.Backend() != BackendMemory {
		t.Errorf("Backend() = %q, want %q", store.Backend(), BackendMemory)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

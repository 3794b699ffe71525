package attempts

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// exerciseWindow runs the shared window contract against any driver.
func exerciseWindow(t *testing.T, store Store, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()
	const (
		limit  = 20
		window = 10 * time.Minute
	)

	for i := 1; i <= limit; i++ {
		rec, ok, err := store.Hit(ctx, "10.0.0.1", limit, window)
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("hit %d should be allowed", i)
		}
		if rec.Count != i {
			t.Fatalf("hit %d: expected count %d, got %d", i, i, rec.Count)
		}
	}

	rec, ok, err := store.Hit(ctx, "10.0.0.1", limit, window)
	if err != nil {
		t.Fatalf("hit 21: %v", err)
	}
	if ok {
		t.Fatal("hit 21 within the window must be denied")
	}
	if rec.Count != limit {
		t.Fatalf("denied hit must not increment, got count %d", rec.Count)
	}

	// Other clients are unaffected.
	if _, ok, _ := store.Hit(ctx, "10.0.0.2", limit, window); !ok {
		t.Fatal("a different client should be allowed")
	}

	advance(window + time.Second)

	rec, ok, err = store.Hit(ctx, "10.0.0.1", limit, window)
	if err != nil {
		t.Fatalf("hit after window: %v", err)
	}
	if !ok || rec.Count != 1 {
		t.Fatalf("expected fresh window after expiry, got ok=%v count=%d", ok, rec.Count)
	}

	if err := store.Reset(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, err := store.Get(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("get after reset: %v", err)
	}
	if got.Count != 0 {
		t.Fatalf("expected empty record after reset, got %+v", got)
	}
}

func TestMemoryStoreWindow(t *testing.T) {
	clock := newFakeClock()
	store := NewMemory(Config{Clock: clock.Now})
	defer store.Close(context.Background())

	exerciseWindow(t, store, clock.Advance)
}

func TestMemoryStoreWindowResetAt(t *testing.T) {
	clock := newFakeClock()
	store := NewMemory(Config{Clock: clock.Now})
	defer store.Close(context.Background())

	rec, _, _ := store.Hit(context.Background(), "a", 3, time.Minute)
	if want := clock.Now().Add(time.Minute); !rec.WindowResetAt.Equal(want) {
		t.Fatalf("expected reset at %v, got %v", want, rec.WindowResetAt)
	}

	// Exactly at the reset instant the window still holds.
	clock.Advance(time.Minute)
	rec, _, _ = store.Hit(context.Background(), "a", 3, time.Minute)
	if rec.Count != 2 {
		t.Fatalf("window should still be open at its reset instant, count=%d", rec.Count)
	}
}

func TestMemoryStoreConcurrentHits(t *testing.T) {
	store := NewMemory(Config{})
	defer store.Close(context.Background())

	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.Hit(context.Background(), "shared", 20, time.Minute)
			if err != nil {
				t.Errorf("hit: %v", err)
				return
			}
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 20 {
		t.Fatalf("expected exactly 20 allowed hits, got %d", allowed)
	}
	rec, _ := store.Get(context.Background(), "shared")
	if rec.Count != 20 {
		t.Fatalf("counter corrupted: %d", rec.Count)
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	clock := newFakeClock()
	store := NewMemory(Config{Clock: clock.Now})
	defer store.Close(context.Background())
	ctx := context.Background()

	_, _, _ = store.Hit(ctx, "old", 5, time.Minute)
	clock.Advance(2 * time.Minute)
	_, _, _ = store.Hit(ctx, "new", 5, time.Minute)

	if err := store.CleanupExpired(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	stats, _ := store.Stats(ctx)
	if stats["total"] != 1 {
		t.Fatalf("expected only the live window to remain, stats=%v", stats)
	}
}

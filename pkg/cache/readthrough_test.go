package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestReadThrough(t *testing.T) (*ReadThrough, *time.Time) {
	t.Helper()
	mem := NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rt := NewReadThrough(mem, WithClock(func() time.Time { return now }))
	return rt, &now
}

func TestReadThroughLoadsOnceWhileFresh(t *testing.T) {
	rt, _ := newTestReadThrough(t)
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return map[string]string{"modal": "1900"}, nil
	}

	for i := 0; i < 3; i++ {
		if _, err := rt.Get(ctx, CategoryPrices, SeriesKey("Paddy", "Ranchi"), loader); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 load, got %d", calls)
	}
}

func TestReadThroughTTLBoundary(t *testing.T) {
	rt, now := newTestReadThrough(t)
	ctx := context.Background()
	written := *now

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return "v", nil
	}

	if _, err := rt.Get(ctx, CategoryPrices, "k", loader); err != nil {
		t.Fatalf("get: %v", err)
	}

	// 29 minutes after write: served without reload.
	*now = written.Add(29 * time.Minute)
	if _, err := rt.Get(ctx, CategoryPrices, "k", loader); err != nil {
		t.Fatalf("get: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cached value at 29m, got %d loads", calls)
	}

	// 31 minutes after write: reloaded.
	*now = written.Add(31 * time.Minute)
	if _, err := rt.Get(ctx, CategoryPrices, "k", loader); err != nil {
		t.Fatalf("get: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected reload at 31m, got %d loads", calls)
	}
}

func TestReadThroughCategoryTTLs(t *testing.T) {
	rt, now := newTestReadThrough(t)
	ctx := context.Background()
	written := *now

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return "w", nil
	}

	if _, err := rt.Get(ctx, CategoryWeather, "Ranchi", loader); err != nil {
		t.Fatalf("get: %v", err)
	}

	// Weather expires at 15 minutes, well before the prices TTL.
	*now = written.Add(16 * time.Minute)
	if _, err := rt.Get(ctx, CategoryWeather, "Ranchi", loader); err != nil {
		t.Fatalf("get: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected weather reload at 16m, got %d loads", calls)
	}
}

func TestReadThroughInvalidateForcesReload(t *testing.T) {
	rt, _ := newTestReadThrough(t)
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	key := SeriesKey("Paddy", "Ranchi")
	if _, err := rt.Get(ctx, CategoryPrices, key, loader); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := rt.Invalidate(ctx, CategoryPrices, key); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	v, err := GetTyped[int](ctx, rt, CategoryPrices, key, loader)
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if v != 2 || calls != 2 {
		t.Fatalf("expected reload after invalidate, value=%d calls=%d", v, calls)
	}
}

func TestReadThroughFailClosed(t *testing.T) {
	rt, _ := newTestReadThrough(t)
	ctx := context.Background()

	boom := errors.New("upstream unavailable")
	_, err := rt.Get(ctx, CategoryPrices, "k", func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	var le *LoadError
	if !errors.As(err, &le) || !errors.Is(err, boom) {
		t.Fatalf("expected LoadError wrapping cause, got %v", err)
	}

	// Nothing was stored: the next read must hit the loader again.
	calls := 0
	if _, err := rt.Get(ctx, CategoryPrices, "k", func(ctx context.Context) (interface{}, error) {
		calls++
		return "ok", nil
	}); err != nil {
		t.Fatalf("get: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected loader call after failed load, got %d", calls)
	}
}

func TestReadThroughCancelledLoaderFails(t *testing.T) {
	rt, _ := newTestReadThrough(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rt.Get(ctx, CategoryWeather, "Ranchi", func(ctx context.Context) (interface{}, error) {
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled load error, got %v", err)
	}
}

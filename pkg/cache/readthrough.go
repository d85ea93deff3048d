package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Loader fetches a value on cache miss. It inherits the caller's context,
// so upstream timeouts and cancellation propagate.
type Loader func(ctx context.Context) (interface{}, error)

// LoadError wraps a loader failure. The cache is left empty for the key:
// a failed load never serves a stale value (fail-closed).
type LoadError struct {
	Category string
	Key      string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cache load %s/%s: %v", e.Category, e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// envelope is what actually sits in the backing store. Expiry is decided
// here from WrittenAt, not by the store, so freshness is owned in one place.
type envelope struct {
	Payload   json.RawMessage `json:"payload"`
	WrittenAt time.Time       `json:"written_at"`
}

// ReadThrough is a category-scoped read-through front over a cache Service.
// Entries expire lazily: an entry older than its category TTL is treated as
// absent and refreshed by the next read. Concurrent misses on the same key
// may each invoke the loader; the last write wins.
type ReadThrough struct {
	svc     Service
	ttls    map[string]time.Duration
	now     func() time.Time
	observe func(category, result string)
}

// ReadThroughOption configures ReadThrough.
type ReadThroughOption func(*ReadThrough)

// WithCategoryTTL overrides one category's TTL.
func WithCategoryTTL(category string, ttl time.Duration) ReadThroughOption {
	return func(r *ReadThrough) {
		r.ttls[category] = ttl
	}
}

// WithObserver reports each read's outcome (hit, miss, load_error).
func WithObserver(fn func(category, result string)) ReadThroughOption {
	return func(r *ReadThrough) {
		r.observe = fn
	}
}

// WithClock injects a clock for freshness checks.
func WithClock(now func() time.Time) ReadThroughOption {
	return func(r *ReadThrough) {
		r.now = now
	}
}

// NewReadThrough creates a read-through front with the default category TTLs.
func NewReadThrough(svc Service, opts ...ReadThroughOption) *ReadThrough {
	r := &ReadThrough{
		svc: svc,
		ttls: map[string]time.Duration{
			CategoryPrices:  30 * time.Minute,
			CategoryWeather: 15 * time.Minute,
			CategorySchemes: 24 * time.Hour,
		},
		now:     time.Now,
		observe: func(string, string) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the category's TTL.
func (r *ReadThrough) TTL(category string) time.Duration {
	return r.ttls[category]
}

// Get returns the cached payload if present and unexpired, otherwise runs
// loader synchronously, stores the result under the category TTL, and
// returns it. A loader failure surfaces as *LoadError and stores nothing.
func (r *ReadThrough) Get(ctx context.Context, category, key string, loader Loader) (json.RawMessage, error) {
	full := GenerateKey(category, key)
	ttl := r.ttls[category]

	var raw string
	if err := r.svc.Get(ctx, full, &raw); err == nil {
		var env envelope
		if uerr := json.Unmarshal([]byte(raw), &env); uerr == nil {
			if r.now().Sub(env.WrittenAt) <= ttl {
				r.observe(category, "hit")
				return env.Payload, nil
			}
		}
		// expired or unreadable: fall through to reload
	}

	r.observe(category, "miss")
	v, err := loader(ctx)
	if err != nil {
		r.observe(category, "load_error")
		return nil, &LoadError{Category: category, Key: key, Err: err}
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return nil, &LoadError{Category: category, Key: key, Err: err}
	}

	env := envelope{Payload: payload, WrittenAt: r.now()}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, &LoadError{Category: category, Key: key, Err: err}
	}
	// Store TTL doubles as a backstop; freshness is decided from WrittenAt.
	if serr := r.svc.Set(ctx, full, string(b), 2*ttl); serr != nil {
		// Serving the freshly loaded value matters more than caching it.
		return payload, nil
	}

	return payload, nil
}

// Invalidate forces the next Get on the keys to reload regardless of TTL.
func (r *ReadThrough) Invalidate(ctx context.Context, category string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = GenerateKey(category, k)
	}
	return r.svc.Delete(ctx, full...)
}

// InvalidatePrefix evicts every key in the category matching the prefix.
// Backends without pattern deletes may over-invalidate; a stale-free read
// matters more than retention here.
func (r *ReadThrough) InvalidatePrefix(ctx context.Context, category, prefix string) error {
	return r.svc.DeleteByPattern(ctx, BuildPattern(GenerateKey(category, prefix)))
}

// GetTyped retrieves a cached value and unmarshals it to T.
func GetTyped[T any](ctx context.Context, r *ReadThrough, category, key string, loader Loader) (T, error) {
	var out T
	payload, err := r.Get(ctx, category, key, loader)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode cached %s/%s: %w", category, key, err)
	}
	return out, nil
}

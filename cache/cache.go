// Package cache implements a generic single-flight TTL cache: concurrent
// requests for the same key collapse into one producer call, fresh payloads
// are served without suspension, and stale payloads survive producer
// failures so endpoints can fall back to last-known-good data.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrProduceTimeout is returned when a producer call does not settle within
// the configured timeout. The call keeps running in the background and still
// populates the cache on late success.
var ErrProduceTimeout = errors.New("producer timed out")

// Producer generates the payload for a cache key.
type Producer[K comparable, T any] func(ctx context.Context, key K) (T, error)

// Config represents the configuration for a cache.
type Config struct {
	// TTL is the payload freshness duration.
	TTL time.Duration
	// Capacity bounds the number of entries; zero means unbounded. Once
	// exceeded, the oldest-inserted entry is evicted (FIFO, not LRU).
	Capacity int
	// ProduceTimeout caps how long a caller waits on a producer call before
	// seeing ErrProduceTimeout; zero disables the race.
	ProduceTimeout time.Duration
	// Logger represents the cache logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.TTL <= 0 {
		errs = errors.Join(errs, fmt.Errorf("cache ttl must be positive"))
	}
	if cfg.Capacity < 0 {
		errs = errors.Join(errs, fmt.Errorf("cache capacity cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// flight tracks one in-flight producer call. Waiters block on done and read
// the settled value afterwards.
type flight[T any] struct {
	done    chan struct{}
	payload T
	err     error
}

// entry holds the cached state for one key. The payload is retained past its
// expiry so failed refreshes can fall back to stale data; expiresAt only
// governs freshness.
type entry[T any] struct {
	payload    T
	hasPayload bool
	expiresAt  time.Time
	inFlight   *flight[T]
}

// Cache is a single-flight TTL cache keyed by K with payloads of type T.
type Cache[K comparable, T any] struct {
	cfg     *Config
	produce Producer[K, T]

	mtx     sync.Mutex
	entries map[K]*entry[T]
	order   []K
}

// New initializes a new cache with the provided producer.
func New[K comparable, T any](cfg *Config, produce Producer[K, T]) (*Cache[K, T], error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating cache config: %w", err)
	}
	if produce == nil {
		return nil, fmt.Errorf("producer cannot be nil")
	}

	return &Cache[K, T]{
		cfg:     cfg,
		produce: produce,
		entries: make(map[K]*entry[T]),
	}, nil
}

// Get returns the payload for key. A fresh cached payload is returned
// immediately with cached set. Otherwise the caller joins the in-flight
// producer call for the key, or starts one if none exists; at most one
// producer call runs per key at any time. On producer failure the error is
// returned and any previous payload is preserved for Stale.
func (c *Cache[K, T]) Get(ctx context.Context, key K) (T, bool, error) {
	var zero T

	c.mtx.Lock()
	ent, ok := c.entries[key]
	if !ok {
		ent = &entry[T]{}
		c.entries[key] = ent
		c.track(key)
	}

	if ent.hasPayload && time.Now().Before(ent.expiresAt) {
		payload := ent.payload
		c.mtx.Unlock()
		return payload, true, nil
	}

	f := ent.inFlight
	if f == nil {
		f = &flight[T]{done: make(chan struct{})}
		ent.inFlight = f
		go c.run(key, f)
	}
	c.mtx.Unlock()

	var timeout <-chan time.Time
	if c.cfg.ProduceTimeout > 0 {
		timer := time.NewTimer(c.cfg.ProduceTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-f.done:
		return f.payload, false, f.err
	case <-timeout:
		return zero, false, ErrProduceTimeout
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// Stale returns the last-known-good payload for key, if any, regardless of
// expiry. Endpoint handlers use it to serve stale data when a refresh fails.
func (c *Cache[K, T]) Stale(key K) (T, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	ent, ok := c.entries[key]
	if !ok || !ent.hasPayload {
		var zero T
		return zero, false
	}

	return ent.payload, true
}

// run executes the producer for key and settles the provided flight. It is
// detached from any caller context so abandoned callers do not cancel the
// call; a late success still populates the cache for subsequent callers.
func (c *Cache[K, T]) run(key K, f *flight[T]) {
	payload, err := c.produce(context.Background(), key)

	c.mtx.Lock()
	ent, ok := c.entries[key]
	if !ok {
		// Evicted while in flight, repopulate.
		ent = &entry[T]{}
		c.entries[key] = ent
		c.track(key)
	}
	if err == nil {
		ent.payload = payload
		ent.hasPayload = true
		ent.expiresAt = time.Now().Add(c.cfg.TTL)
	} else {
		c.cfg.Logger.Error().Msgf("producing cache payload: %v", err)
	}
	ent.inFlight = nil
	c.mtx.Unlock()

	f.payload = payload
	f.err = err
	close(f.done)
}

// track records insertion order for FIFO capacity eviction. Must be called
// with the mutex held.
func (c *Cache[K, T]) track(key K) {
	if c.cfg.Capacity <= 0 {
		return
	}

	c.order = append(c.order, key)
	for len(c.order) > c.cfg.Capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cache

import (
	"sync"
	"testing"
	"time"
)

// newTestCache returns a cache driven by a settable clock.
func newTestCache[V any](t *testing.T, ttl time.Duration) (*Cache[V], *time.Time) {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[V](ttl)
	c.now = func() time.Time { return now }
	t.Cleanup(c.Close)
	return c, &now
}

func TestCacheBasicOperations(t *testing.T) {
	c, _ := newTestCache[string](t, time.Minute)

	c.Set("key1", "value1")
	value, ok := c.Get("key1")
	if !ok || value != "value1" {
		t.Errorf("Get(key1) = %q, %v; want value1, true", value, ok)
	}
	if _, ok := c.Get("key2"); ok {
		t.Error("Get(key2) reported a hit for a missing key")
	}
}

func TestCacheExpiration(t *testing.T) {
	c, now := newTestCache[int](t, 100*time.Millisecond)

	c.Set("a", 1)
	c.SetWithTTL("b", 2, time.Hour)

	*now = now.Add(150 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) returned an expired entry")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %d, %v; want 2, true", v, ok)
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	c, _ := newTestCache[string](t, time.Minute)

	c.Set("key1", "v")
	c.Set("key2", "v")
	c.Set("key3", "v")

	c.Delete("key1")
	c.Delete("missing")
	if _, ok := c.Get("key1"); ok {
		t.Error("Get(key1) after Delete reported a hit")
	}

	c.Clear()
	if got := c.Stats().Keys; got != 0 {
		t.Errorf("Keys after Clear = %d, want 0", got)
	}
	if got := c.Stats().Evictions; got != 3 {
		t.Errorf("Evictions = %d, want 3", got)
	}
}

func TestCacheCleanupSweepsExpired(t *testing.T) {
	c, now := newTestCache[int](t, time.Second)

	c.Set("old", 1)
	*now = now.Add(2 * time.Second)
	c.Set("new", 2)
	c.cleanup()

	if got := c.Stats().Keys; got != 1 {
		t.Errorf("Keys after cleanup = %d, want 1", got)
	}
}

func TestCacheHitRate(t *testing.T) {
	c, _ := newTestCache[int](t, time.Minute)

	c.Set("k", 1)
	c.Get("k")
	c.Get("k")
	c.Get("k")
	c.Get("nope")

	if got := c.HitRate(); got != 75 {
		t.Errorf("HitRate() = %v, want 75", got)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Set("k", n)
				c.Get("k")
				if j%50 == 0 {
					c.Delete("k")
				}
			}
		}(i)
	}
	wg.Wait()
}

package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestLRU(size int, ttl time.Duration) (*LRU[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRU[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUEviction(t *testing.T) {
	c, _ := newTestLRU(3, time.Hour)
	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Get("key1") // key2 becomes least recently used
	c.Set("key4", "value4")

	if _, found := c.Get("key2"); found {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestLRUExpiration(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	if v, found := c.Get("a"); !found || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, found)
	}
	clock.t = clock.t.Add(2 * time.Minute)
	if _, found := c.Get("a"); found {
		t.Error("a should have expired")
	}
	if n := NewJanitor(c).CleanOnce(); n != 1 {
		t.Errorf("CleanOnce() = %d, want 1", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d, %d", hits, misses)
	}
}

func TestLRUOverwriteAndDelete(t *testing.T) {
	c, _ := newTestLRU(2, time.Hour)
	c.Set("k", "old")
	c.Set("k", "new")
	if v, _ := c.Get("k"); v != "new" || c.Len() != 1 {
		t.Fatalf("overwrite failed: %q len=%d", v, c.Len())
	}
	c.Delete("k")
	c.Delete("missing")
	if _, found := c.Get("k"); found {
		t.Fatal("k should be deleted")
	}
}

func TestJanitorStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewJanitor().Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

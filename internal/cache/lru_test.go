package cache

import (
	"testing"
	"time"
)

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Get("key1")           // key1 is now most recent
	c.Set("key4", "value4") // evicts key2

	if _, found := c.Get("key2"); found {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("size = %d", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	now := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	c.Set("c", 3)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected to clean b only, cleaned %d", n)
	}
	if c.Size() != 1 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUCacheClearAndStats(t *testing.T) {
	c := NewLRUCache[int](10, time.Hour)
	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")
	c.Clear()
	if _, ok := c.Get("a"); ok {
		t.Fatal("clear should drop entries")
	}
	s := c.Stats()
	if s.Size != 0 || s.Hits != 1 || s.Misses != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	c.Set("b", 2)
	if c.Size() != 1 {
		t.Fatal("cache should be usable after clear")
	}
}

func TestManagerCleanNow(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(time.Hour)
	defer m.Stop()

	now = now.Add(time.Minute)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
}

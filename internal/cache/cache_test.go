package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestTTLExpiry(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string, int](15*time.Minute, clk.Now)

	c.Set("a", 1)
	clk.Advance(14 * time.Minute)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit with 1, got %d %v", v, ok)
	}
	clk.Advance(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry expired at 15 minutes")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry removed, len %d", c.Len())
	}
}

func TestSetRefreshesExpiry(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New[string, string](time.Minute, clk.Now)
	c.Set("k", "v1")
	clk.Advance(50 * time.Second)
	c.Set("k", "v2")
	clk.Advance(50 * time.Second)
	if v, ok := c.Get("k"); !ok || v != "v2" {
		t.Errorf("expected v2, got %q %v", v, ok)
	}
}

func TestPurgeAndCleanup(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New[int, int](time.Minute, clk.Now)
	c.Set(1, 1)
	c.Set(2, 2)
	clk.Advance(2 * time.Minute)
	c.Set(3, 3)
	c.Cleanup()
	if c.Len() != 1 {
		t.Errorf("expected 1 live entry after cleanup, got %d", c.Len())
	}
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("expected empty after purge, got %d", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[string, int](time.Minute, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			c.Set(key, i)
			c.Get(key)
		}(i)
	}
	wg.Wait()
	if c.Len() != 5 {
		t.Errorf("expected 5 keys, got %d", c.Len())
	}
}

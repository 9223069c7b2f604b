package render

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestViewCache_GetSet(t *testing.T) {
	c := NewViewCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v.(int) != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", 2)
	c.Get("a")    // a is now most recent
	c.Set("c", 3) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	c.Set("a", 10)
	if v, _ := c.Get("a"); v.(int) != 10 {
		t.Errorf("overwrite: got %v", v)
	}
}

func TestNewViewCache_MinimumCapacity(t *testing.T) {
	c := NewViewCache(0)
	c.Set("a", 1)
	c.Set("b", 2)
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestViewCache_GetOrCompute(t *testing.T) {
	c := NewViewCache(4)
	var calls int32
	compute := func() any {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return "view"
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, _ := c.GetOrCompute("k", compute); v != "view" {
				t.Errorf("GetOrCompute = %v", v)
			}
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("compute called %d times, want 1", n)
	}
	if _, cached := c.GetOrCompute("k", compute); !cached {
		t.Error("expected cached result on second call")
	}
}

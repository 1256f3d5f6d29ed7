package dedupe

import (
	"fmt"
	"sync"
	"testing"
)

func TestCacheAdmit_New(t *testing.T) {
	c := NewCache(10)
	if !c.Admit("ev1") {
		t.Error("first admission should succeed")
	}
	if c.Admit("ev1") {
		t.Error("second admission of same identity should be rejected")
	}
}

func TestCacheAdmit_AllWithinCapacity(t *testing.T) {
	c := NewCache(50)
	for i := 0; i < 50; i++ {
		if !c.Admit(fmt.Sprintf("ev%d", i)) {
			t.Fatalf("ev%d should be admitted", i)
		}
	}
	for i := 0; i < 50; i++ {
		if c.Admit(fmt.Sprintf("ev%d", i)) {
			t.Errorf("ev%d should report already processed", i)
		}
	}
}

func TestCacheEviction_OldestFifth(t *testing.T) {
	c := NewCache(100)
	for i := 0; i < 100; i++ {
		c.Admit(fmt.Sprintf("ev%d", i))
	}
	// One past capacity evicts the oldest 20 entries.
	c.Admit("overflow")

	if got := c.Len(); got != 81 {
		t.Errorf("expected 81 entries after eviction, got %d", got)
	}
	for i := 0; i < 20; i++ {
		if !c.Admit(fmt.Sprintf("ev%d", i)) {
			t.Errorf("evicted ev%d should be admittable again", i)
		}
	}
	if c.Admit("ev20") {
		t.Error("ev20 should have survived eviction")
	}
	if c.Admit("overflow") {
		t.Error("overflow should still be present")
	}
}

func TestCacheEviction_TinyCapacity(t *testing.T) {
	// capacity/5 rounds to zero; still evicts one so the cache stays bounded.
	c := NewCache(3)
	c.Admit("a")
	c.Admit("b")
	c.Admit("c")
	c.Admit("d")
	if got := c.Len(); got != 3 {
		t.Errorf("expected 3 entries, got %d", got)
	}
	if !c.Admit("a") {
		t.Error("oldest entry should have been evicted")
	}
}

func TestCacheDefaultCapacity(t *testing.T) {
	c := NewCache(0)
	if c.capacity != DefaultMaxCacheSize {
		t.Errorf("expected default capacity %d, got %d", DefaultMaxCacheSize, c.capacity)
	}
}

func TestCacheAdmit_Concurrent(t *testing.T) {
	c := NewCache(1000)
	const workers = 32
	admitted := make(chan bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted <- c.Admit("same-identity")
		}()
	}
	wg.Wait()
	close(admitted)

	wins := 0
	for ok := range admitted {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("exactly one concurrent admit should win, got %d", wins)
	}
}

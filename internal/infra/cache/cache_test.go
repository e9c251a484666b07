package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/account-ledger/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_SetIfAbsent(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	if !c.SetIfAbsent("idem-1", 1) {
		t.Fatal("expected first reservation to succeed")
	}
	if c.SetIfAbsent("idem-1", 2) {
		t.Fatal("expected second reservation to fail")
	}
	if v, _ := c.Get("idem-1"); v != 1 {
		t.Errorf("expected original value 1, got %d", v)
	}
}

func TestCache_SetIfAbsentConcurrent(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if c.SetIfAbsent("same-key", i) {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("expected exactly one winner, got %d", won)
	}
}

func TestCache_SetIfAbsentAfterExpiry(t *testing.T) {
	c := cache.New[string](30 * time.Millisecond)
	defer c.Close()

	c.Set("k", "old")
	time.Sleep(60 * time.Millisecond)

	if !c.SetIfAbsent("k", "new") {
		t.Fatal("expected expired key to be reservable")
	}
	if v, _ := c.Get("k"); v != "new" {
		t.Errorf("expected 'new', got '%s'", v)
	}
}

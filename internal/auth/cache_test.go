package auth

import (
	"sync"
	"testing"
	"time"
)

func TestCache_FreshHit(t *testing.T) {
	cache := NewCache(1 * time.Minute)
	customer := &CustomerContext{CustomerID: "cust_1", Name: "Acme"}

	cache.Set("cmk_abc123", customer)

	result := cache.Get("cmk_abc123")
	if !result.Hit {
		t.Fatal("expected cache hit")
	}
	if result.NeedsRefresh {
		t.Error("fresh entry should not need refresh")
	}
	if result.Customer.CustomerID != "cust_1" {
		t.Errorf("expected cust_1, got %s", result.Customer.CustomerID)
	}
}

func TestCache_Miss(t *testing.T) {
	cache := NewCache(1 * time.Minute)

	result := cache.Get("cmk_nonexistent")
	if result.Hit {
		t.Error("expected cache miss")
	}
	if result.Customer != nil {
		t.Error("expected nil customer on miss")
	}
	if result.NeedsRefresh {
		t.Error("miss should not need refresh")
	}
}

func TestCache_StaleHit_ReturnsValueAndSignalsRefresh(t *testing.T) {
	cache := NewCache(1 * time.Millisecond)
	customer := &CustomerContext{CustomerID: "cust_1"}

	cache.Set("cmk_abc123", customer)
	time.Sleep(5 * time.Millisecond)

	result := cache.Get("cmk_abc123")
	if !result.Hit {
		t.Fatal("stale entry must still hit")
	}
	if !result.NeedsRefresh {
		t.Error("stale entry must signal refresh")
	}
	if result.Customer.CustomerID != "cust_1" {
		t.Error("stale entry must still return the value")
	}
}

func TestCache_OnlyOneRefresherPerKey(t *testing.T) {
	cache := NewCache(1 * time.Millisecond)
	cache.Set("cmk_abc123", &CustomerContext{CustomerID: "cust_1"})
	time.Sleep(5 * time.Millisecond)

	var mu sync.Mutex
	refreshSignals := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cache.Get("cmk_abc123").NeedsRefresh {
				mu.Lock()
				refreshSignals++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if refreshSignals != 1 {
		t.Errorf("exactly one caller should be told to refresh, got %d", refreshSignals)
	}
}

func TestCache_Delete(t *testing.T) {
	cache := NewCache(1 * time.Minute)
	cache.Set("cmk_abc123", &CustomerContext{CustomerID: "cust_1"})

	cache.Delete("cmk_abc123")

	if cache.Get("cmk_abc123").Hit {
		t.Error("deleted entry must miss")
	}
}

package priceprovider

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/money"
)

func TestInvalidate_ForcesReload(t *testing.T) {
	c := NewCache(nil, time.Hour, nil)
	fundID := uuid.New()
	price := db.FundPrice{FundID: fundID, Bid: money.ZeroAmount, Mid: money.ZeroAmount, Offer: money.ZeroAmount}

	c.mu.Lock()
	c.entries[fundID] = cacheEntry{price: price, fetchedAt: time.Now()}
	c.mu.Unlock()

	c.Invalidate(fundID)

	c.mu.RLock()
	_, ok := c.entries[fundID]
	c.mu.RUnlock()
	if ok {
		t.Fatal("expected cache entry to be removed after Invalidate")
	}
}

func TestInvalidateAll_ClearsEverything(t *testing.T) {
	c := NewCache(nil, time.Hour, nil)
	c.mu.Lock()
	c.entries[uuid.New()] = cacheEntry{fetchedAt: time.Now()}
	c.entries[uuid.New()] = cacheEntry{fetchedAt: time.Now()}
	c.mu.Unlock()

	c.InvalidateAll()

	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	if n != 0 {
		t.Fatalf("expected empty cache, got %d entries", n)
	}
}

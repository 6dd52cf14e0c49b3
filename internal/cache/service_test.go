package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cozyberries/storefront/internal/domain"
)

func domainCacheConfig(storeType string) domain.CacheConfig {
	return domain.CacheConfig{
		Type:          storeType,
		LocalMaxSize:  100,
		LookupTimeout: 200 * time.Millisecond,
		StaleFraction: 0.2,
	}
}

// faultStore wraps a MemoryStore with injectable read delay and failures.
type faultStore struct {
	*MemoryStore
	readDelay time.Duration
	readErr   error
	writeErr  error
}

func (f *faultStore) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	if f.readDelay > 0 {
		time.Sleep(f.readDelay)
	}
	if f.readErr != nil {
		return nil, 0, f.readErr
	}
	return f.MemoryStore.GetWithTTL(ctx, key)
}

func (f *faultStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.MemoryStore.Set(ctx, key, value, ttl)
}

func TestService(t *testing.T) {
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		svc := NewService(NewMemoryStore(100), domainCacheConfig("memory"))

		if ok := svc.Set(ctx, domain.DomainProduct, []byte(`{"slug":"romper"}`), "romper"); !ok {
			t.Fatal("Set reported failure")
		}

		val := svc.Get(ctx, domain.DomainProduct, "romper")
		if string(val) != `{"slug":"romper"}` {
			t.Errorf("unexpected value: %s", val)
		}
	})

	t.Run("MissReturnsNil", func(t *testing.T) {
		svc := NewService(NewMemoryStore(100), domainCacheConfig("memory"))

		if val := svc.Get(ctx, domain.DomainProduct, "missing"); val != nil {
			t.Errorf("expected nil on miss, got %s", val)
		}
	})

	t.Run("TTLPolicyApplied", func(t *testing.T) {
		store := NewMemoryStore(100)
		svc := NewService(store, domainCacheConfig("memory"))

		svc.Set(ctx, domain.DomainCategoryList, []byte("cats"), "images_true")
		svc.Set(ctx, domain.DomainOrders, []byte("orders"), "u-1", "pg_1")

		_, catTTL, _ := store.GetWithTTL(ctx, "categories:images_true")
		_, ordTTL, _ := store.GetWithTTL(ctx, "orders:u-1:pg_1")

		if catTTL <= 55*time.Minute || catTTL > time.Hour {
			t.Errorf("expected category TTL near 1h, got %v", catTTL)
		}
		if ordTTL > 3*time.Minute {
			t.Errorf("expected orders TTL at most 3m, got %v", ordTTL)
		}
		if catTTL <= ordTTL {
			t.Error("expected category-list TTL to exceed orders TTL")
		}
	})

	t.Run("GetWithTTLStaleness", func(t *testing.T) {
		store := NewMemoryStore(100)
		svc := NewService(store, domainCacheConfig("memory"))

		// Fresh write: remaining TTL is near policy, well above threshold.
		svc.Set(ctx, domain.DomainProduct, []byte("fresh"), "fresh")
		entry := svc.GetWithTTL(ctx, domain.DomainProduct, "fresh")
		if entry == nil {
			t.Fatal("expected entry")
		}
		if entry.Stale {
			t.Error("fresh entry reported stale")
		}

		// A short remaining TTL, below 20% of the 10m product policy,
		// must report stale.
		_ = store.Set(ctx, "product:old", []byte("old"), 30*time.Second)
		entry = svc.GetWithTTL(ctx, domain.DomainProduct, "old")
		if entry == nil {
			t.Fatal("expected entry")
		}
		if !entry.Stale {
			t.Errorf("expected stale entry at %v remaining", entry.TTL)
		}
	})

	t.Run("ReadErrorIsMiss", func(t *testing.T) {
		store := &faultStore{MemoryStore: NewMemoryStore(100), readErr: errors.New("connection refused")}
		svc := NewService(store, domainCacheConfig("memory"))

		if val := svc.Get(ctx, domain.DomainProduct, "any"); val != nil {
			t.Error("expected store error to be reported as miss")
		}
	})

	t.Run("WriteErrorSwallowed", func(t *testing.T) {
		store := &faultStore{MemoryStore: NewMemoryStore(100), writeErr: errors.New("write refused")}
		svc := NewService(store, domainCacheConfig("memory"))

		if ok := svc.Set(ctx, domain.DomainProduct, []byte("v"), "k"); ok {
			t.Error("expected Set to report failure")
		}
		if svc.Stats().WriteFailures != 1 {
			t.Errorf("expected 1 recorded write failure, got %d", svc.Stats().WriteFailures)
		}
	})

	t.Run("LookupTimeoutFallsBackWithinBound", func(t *testing.T) {
		store := &faultStore{MemoryStore: NewMemoryStore(100), readDelay: 2 * time.Second}
		_ = store.MemoryStore.Set(ctx, "product:slow", []byte("v"), time.Minute)

		cfg := domainCacheConfig("memory")
		cfg.LookupTimeout = 50 * time.Millisecond
		svc := NewService(store, cfg)

		start := time.Now()
		val := svc.Get(ctx, domain.DomainProduct, "slow")
		elapsed := time.Since(start)

		if val != nil {
			t.Error("expected timed-out lookup to resolve as miss")
		}
		if elapsed > 500*time.Millisecond {
			t.Errorf("lookup waited %v, expected it to resolve near the 50ms bound", elapsed)
		}
		if svc.Stats().Timeouts != 1 {
			t.Errorf("expected 1 recorded timeout, got %d", svc.Stats().Timeouts)
		}
	})

	t.Run("DeleteMissingIsSuccess", func(t *testing.T) {
		svc := NewService(NewMemoryStore(100), domainCacheConfig("memory"))

		if ok := svc.Delete(ctx, domain.DomainProduct, "never-set"); !ok {
			t.Error("expected delete of missing key to succeed")
		}
	})

	t.Run("DeletePattern", func(t *testing.T) {
		store := NewMemoryStore(100)
		svc := NewService(store, domainCacheConfig("memory"))

		svc.Set(ctx, domain.DomainProductList, []byte("p1"), "lt_12", "pg_1")
		svc.Set(ctx, domain.DomainProduct, []byte("p"), "romper")

		if ok := svc.DeletePattern(ctx, ListingPattern()); !ok {
			t.Fatal("DeletePattern reported failure")
		}
		if val := svc.Get(ctx, domain.DomainProductList, "lt_12", "pg_1"); val != nil {
			t.Error("expected listing key deleted")
		}
		if val := svc.Get(ctx, domain.DomainProduct, "romper"); val == nil {
			t.Error("expected product key untouched")
		}
	})

	t.Run("SetIdempotent", func(t *testing.T) {
		store := NewMemoryStore(100)
		svc := NewService(store, domainCacheConfig("memory"))

		svc.Set(ctx, domain.DomainProduct, []byte("v"), "k")
		svc.Set(ctx, domain.DomainProduct, []byte("v"), "k")

		if got := svc.Get(ctx, domain.DomainProduct, "k"); string(got) != "v" {
			t.Errorf("unexpected value after double set: %s", got)
		}
		if size, _ := store.Stats(); size != 1 {
			t.Errorf("expected a single entry, got %d", size)
		}
	})
}

func TestLocalTier(t *testing.T) {
	t.Run("ReadWithinWindow", func(t *testing.T) {
		tier := NewLocalTier(time.Minute)

		if _, ok := tier.Read(); ok {
			t.Error("expected empty tier to miss")
		}

		tier.Write([]byte("categories"))
		val, ok := tier.Read()
		if !ok || string(val) != "categories" {
			t.Errorf("expected hit with held copy, got ok=%v val=%s", ok, val)
		}
	})

	t.Run("ExpiresAfterWindow", func(t *testing.T) {
		tier := NewLocalTier(10 * time.Millisecond)
		tier.Write([]byte("v"))

		time.Sleep(20 * time.Millisecond)

		if _, ok := tier.Read(); ok {
			t.Error("expected miss after window elapsed")
		}
	})

	t.Run("ZeroTTLNeverHits", func(t *testing.T) {
		tier := NewLocalTier(0)
		tier.Write([]byte("v"))

		if _, ok := tier.Read(); ok {
			t.Error("expected disabled tier to miss")
		}
	})

	t.Run("IndependentInstances", func(t *testing.T) {
		a := NewLocalTier(time.Minute)
		b := NewLocalTier(time.Minute)

		a.Write([]byte("a"))

		if _, ok := b.Read(); ok {
			t.Error("expected instances to hold independent state")
		}
	})

	t.Run("Invalidate", func(t *testing.T) {
		tier := NewLocalTier(time.Minute)
		tier.Write([]byte("v"))
		tier.Invalidate()

		if _, ok := tier.Read(); ok {
			t.Error("expected miss after invalidate")
		}
	})
}

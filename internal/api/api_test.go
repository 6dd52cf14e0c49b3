package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cozyberries/storefront/internal/bus"
	"github.com/cozyberries/storefront/internal/cache"
	"github.com/cozyberries/storefront/internal/catalog"
	"github.com/cozyberries/storefront/internal/domain"
	"github.com/cozyberries/storefront/internal/repository"
	"github.com/cozyberries/storefront/internal/warmer"
	"github.com/cozyberries/storefront/internal/worker"
)

// fakeCatalog is an in-memory catalog source for API tests.
type fakeCatalog struct {
	products []domain.Product
	ratings  map[string]domain.RatingSummary

	failOptions bool
	failRatings bool
}

func (f *fakeCatalog) ListProducts(ctx context.Context, q domain.ListQuery) ([]domain.Product, error) {
	q = q.Normalize()

	var matched []domain.Product
	for _, p := range f.products {
		if q.Category != domain.CategoryAll && p.Category != q.Category {
			continue
		}
		if q.Featured && !p.Featured {
			continue
		}
		matched = append(matched, p)
	}

	offset := (q.Page - 1) * q.Limit
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (f *fakeCatalog) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	for _, p := range f.products {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCatalog) ListCategories(ctx context.Context, withImages bool) ([]domain.Category, error) {
	return []domain.Category{
		{ID: "c-1", Slug: "rompers", Name: "Rompers"},
		{ID: "c-2", Slug: "bibs", Name: "Bibs"},
	}, nil
}

func (f *fakeCatalog) CategoryOptions(ctx context.Context) ([]domain.CategoryOption, error) {
	if f.failOptions {
		return nil, errors.New("catalog unavailable")
	}
	return []domain.CategoryOption{
		{Slug: "rompers", Name: "Rompers"},
		{Slug: "bibs", Name: "Bibs"},
	}, nil
}

func (f *fakeCatalog) ListRatings(ctx context.Context) ([]domain.Rating, error) {
	return nil, nil
}

func (f *fakeCatalog) RatingSummaries(ctx context.Context) ([]domain.RatingSummary, error) {
	if f.failRatings {
		return nil, errors.New("catalog unavailable")
	}
	var out []domain.RatingSummary
	for _, r := range f.ratings {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeCatalog) RatingSummary(ctx context.Context, productID string) (*domain.RatingSummary, error) {
	if r, ok := f.ratings[productID]; ok {
		return &r, nil
	}
	return &domain.RatingSummary{ProductID: productID}, nil
}

func (f *fakeCatalog) Ping(ctx context.Context) error { return nil }
func (f *fakeCatalog) Close() error                   { return nil }

type testEnv struct {
	server *Server
	source *fakeCatalog
	store  *cache.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	source := &fakeCatalog{
		ratings: map[string]domain.RatingSummary{
			"p-1": {ProductID: "p-1", Count: 3, Average: 4.5},
		},
	}
	for i := 1; i <= 5; i++ {
		source.products = append(source.products, domain.Product{
			ID:       fmt.Sprintf("p-%d", i),
			Slug:     fmt.Sprintf("item-%d", i),
			Name:     fmt.Sprintf("Item %d", i),
			Price:    10 + float64(i),
			Category: "rompers",
			Featured: i == 1,
		})
	}

	store := cache.NewMemoryStore(5000)
	svc := cache.NewService(store, domain.CacheConfig{
		LookupTimeout: 200 * time.Millisecond,
		StaleFraction: 0.2,
	})
	fetcher := catalog.NewFetcher(svc, source, time.Minute)
	wrm := warmer.New(svc, source, domain.WarmerConfig{PageSizes: []int{12}})

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	inv := worker.NewInvalidator(eventBus, svc, fetcher)
	if err := inv.Start(); err != nil {
		t.Fatalf("invalidator start failed: %v", err)
	}
	t.Cleanup(func() { inv.Stop() })

	cfg := domain.ServerConfig{Host: "localhost", Port: 8080, ReadTimeout: 30, WriteTimeout: 30}
	server := NewServer(cfg, fetcher, svc, source, wrm, eventBus, "test-v1")

	return &testEnv{server: server, source: source, store: store}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rr, req)
	return rr
}

// waitForKey polls until a key appears in or disappears from the store.
func (e *testEnv) waitForKey(t *testing.T, key string, present bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		v, _ := e.store.Get(context.Background(), key)
		if (v != nil) == present {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("key %s presence never became %t", key, present)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected healthy, got %s", resp["status"])
	}
	if resp["version"] != "test-v1" {
		t.Errorf("expected version test-v1, got %s", resp["version"])
	}

	rr = env.do(http.MethodGet, "/ready", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected ready 200, got %d", rr.Code)
	}
}

func TestListProductsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	key := "products:lt_12:pg_1:cat_all:feat_false:sortb_default:sorto_desc"

	t.Run("ColdRead", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/products", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		if got := rr.Header().Get(CacheStatusHeader); got != "MISS" {
			t.Errorf("expected X-Cache-Status MISS, got %s", got)
		}
		if got := rr.Header().Get(DataSourceHeader); got != "DATABASE" {
			t.Errorf("expected X-Data-Source DATABASE, got %s", got)
		}
		if got := rr.Header().Get(CacheSetHeader); got != "ASYNC" {
			t.Errorf("expected X-Cache-Set ASYNC, got %s", got)
		}
		if got := rr.Header().Get(CacheKeyHeader); got != key {
			t.Errorf("expected X-Cache-Key %s, got %s", key, got)
		}

		var page domain.ProductPage
		if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if len(page.Products) != 5 {
			t.Errorf("expected 5 products, got %d", len(page.Products))
		}
	})

	t.Run("WarmRead", func(t *testing.T) {
		env.waitForKey(t, key, true)

		rr := env.do(http.MethodGet, "/products", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if got := rr.Header().Get(CacheStatusHeader); got != "HIT" {
			t.Errorf("expected X-Cache-Status HIT, got %s", got)
		}
		if got := rr.Header().Get(DataSourceHeader); got != "REDIS_CACHE" {
			t.Errorf("expected X-Data-Source REDIS_CACHE, got %s", got)
		}
		if got := rr.Header().Get(CacheSetHeader); got != "NONE" {
			t.Errorf("expected X-Cache-Set NONE, got %s", got)
		}
	})

	t.Run("FilteredRead", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/products?limit=2&page=1&category=rompers&featured=true&sort_by=price&sort_order=asc", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		wantKey := "products:lt_2:pg_1:cat_rompers:feat_true:sortb_price:sorto_asc"
		if got := rr.Header().Get(CacheKeyHeader); got != wantKey {
			t.Errorf("expected X-Cache-Key %s, got %s", wantKey, got)
		}

		var page domain.ProductPage
		if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if len(page.Products) != 1 {
			t.Errorf("expected 1 featured romper, got %d", len(page.Products))
		}
	})
}

func TestGetProductEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Found", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/products/item-1", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if got := rr.Header().Get(CacheKeyHeader); got != "product:item-1" {
			t.Errorf("expected X-Cache-Key product:item-1, got %s", got)
		}

		var product domain.Product
		if err := json.Unmarshal(rr.Body.Bytes(), &product); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if product.Slug != "item-1" {
			t.Errorf("expected slug item-1, got %s", product.Slug)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/products/no-such-item", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestProductRatingsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/products/item-1/ratings", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get(CacheKeyHeader); got != "ratings:product_p-1" {
		t.Errorf("expected X-Cache-Key ratings:product_p-1, got %s", got)
	}

	var summary domain.RatingSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if summary.Count != 3 || summary.Average != 4.5 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestCategoriesEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("List", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/categories?images=true", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if got := rr.Header().Get(CacheKeyHeader); got != "categories:images_true" {
			t.Errorf("expected X-Cache-Key categories:images_true, got %s", got)
		}
	})

	t.Run("OptionsServedLocallyOnRepeat", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/categories/options", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		rr = env.do(http.MethodGet, "/categories/options", nil)
		if got := rr.Header().Get(DataSourceHeader); got != "LOCAL_MEMORY" {
			t.Errorf("expected X-Data-Source LOCAL_MEMORY, got %s", got)
		}
	})
}

func TestWarmEndpoint(t *testing.T) {
	t.Run("CleanRun", func(t *testing.T) {
		env := newTestEnv(t)

		rr := env.do(http.MethodPost, "/cache/warm", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var report struct {
			TotalWarmed int      `json:"totalWarmed"`
			Keys        []string `json:"keys"`
			Errors      []string `json:"errors"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
			t.Fatalf("failed to parse report: %v", err)
		}
		if report.TotalWarmed == 0 {
			t.Error("expected warmed keys in report")
		}
		if len(report.Errors) != 0 {
			t.Errorf("expected no errors, got %v", report.Errors)
		}

		env.waitForKey(t, "product:item-1", true)
	})

	t.Run("PartialFailure", func(t *testing.T) {
		env := newTestEnv(t)
		env.source.failRatings = true

		rr := env.do(http.MethodPost, "/cache/warm", nil)
		if rr.Code != http.StatusMultiStatus {
			t.Fatalf("expected status 207, got %d", rr.Code)
		}
	})

	t.Run("CatastrophicFailure", func(t *testing.T) {
		env := newTestEnv(t)
		env.source.failOptions = true

		rr := env.do(http.MethodPost, "/cache/warm", nil)
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", rr.Code)
		}
	})
}

func TestInvalidateEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("InvalidScope", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/cache/invalidate", InvalidateRequest{Scope: "everything"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ProductScopeRequiresSlug", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/cache/invalidate", InvalidateRequest{Scope: "product"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ProductScopeEvicts", func(t *testing.T) {
		// Populate, then invalidate through the bus.
		env.do(http.MethodGet, "/products/item-1", nil)
		env.waitForKey(t, "product:item-1", true)

		rr := env.do(http.MethodPost, "/cache/invalidate", InvalidateRequest{Scope: "product", Slug: "item-1", ProductID: "p-1"})
		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		env.waitForKey(t, "product:item-1", false)
	})
}

func TestCacheStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodGet, "/products", nil)

	rr := env.do(http.MethodGet, "/cache/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var stats cache.Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to parse stats: %v", err)
	}
	if stats.Misses == 0 {
		t.Error("expected at least one recorded miss")
	}
}

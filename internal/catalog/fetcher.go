// Package catalog serves catalog reads through the cache stack: local tier,
// distributed store, then the source of record, repairing upper tiers as it
// goes without ever blocking a response on a cache write.
package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cozyberries/storefront/internal/cache"
	"github.com/cozyberries/storefront/internal/domain"
)

// CacheStatus reports whether a read was served from cache.
type CacheStatus string

const (
	StatusHit  CacheStatus = "HIT"
	StatusMiss CacheStatus = "MISS"
)

// DataSource names the tier that produced the response value.
type DataSource string

const (
	SourceLocalMemory DataSource = "LOCAL_MEMORY"
	SourceCache       DataSource = "REDIS_CACHE"
	SourceDatabase    DataSource = "DATABASE"
)

// SetOutcome reports the fate of the write-back triggered by a read.
type SetOutcome string

const (
	// SetAsync means a detached write-back was scheduled; its outcome is
	// not known synchronously.
	SetAsync SetOutcome = "ASYNC"

	// SetNone means the read required no write-back.
	SetNone SetOutcome = "NONE"
)

// Result is a catalog read plus the cache diagnostics handlers surface as
// X-Cache-* response headers.
type Result struct {
	Value  []byte
	Key    string
	Status CacheStatus
	Source DataSource
	Set    SetOutcome
	Stale  bool
}

// writeBackTimeout bounds a single detached cache write or stale refresh.
const writeBackTimeout = 5 * time.Second

// Fetcher is the cold-path fetcher. On a miss in every cache tier it queries
// the catalog source, returns the data immediately, and repairs the cache in
// the background. Source failures are the only errors it surfaces.
type Fetcher struct {
	cache  *cache.Service
	source domain.CatalogSource

	// Local tiers for the two category lookups that nearly every page
	// makes. Disposable, per-process, never authoritative.
	categoriesTier *cache.LocalTier
	optionsTier    *cache.LocalTier

	refresh singleflight.Group
}

// NewFetcher creates a fetcher over the cache service and catalog source.
// localTTL sets the window of the in-process category tiers; zero disables
// them.
func NewFetcher(cacheSvc *cache.Service, source domain.CatalogSource, localTTL time.Duration) *Fetcher {
	return &Fetcher{
		cache:          cacheSvc,
		source:         source,
		categoriesTier: cache.NewLocalTier(localTTL),
		optionsTier:    cache.NewLocalTier(localTTL),
	}
}

// ProductPage serves one page of a catalog listing.
func (f *Fetcher) ProductPage(ctx context.Context, q domain.ListQuery) (*Result, error) {
	q = q.Normalize()
	return f.fetch(ctx, domain.DomainProductList, cache.ListingKeyParts(q), func(ctx context.Context) (any, error) {
		products, err := f.source.ListProducts(ctx, q)
		if err != nil {
			return nil, err
		}
		return domain.ProductPage{Products: products, Page: q.Page, Limit: q.Limit}, nil
	})
}

// Product serves a single product by slug.
func (f *Fetcher) Product(ctx context.Context, slug string) (*Result, error) {
	return f.fetch(ctx, domain.DomainProduct, []string{slug}, func(ctx context.Context) (any, error) {
		return f.source.GetProduct(ctx, slug)
	})
}

// Categories serves the full active category list, fronted by the local tier.
func (f *Fetcher) Categories(ctx context.Context, withImages bool) (*Result, error) {
	var tier *cache.LocalTier
	if withImages {
		tier = f.categoriesTier
	}

	res, err := f.fetchLocal(ctx, tier, domain.DomainCategoryList,
		[]string{boolPart("images", withImages)},
		func(ctx context.Context) (any, error) {
			return f.source.ListCategories(ctx, withImages)
		})
	return res, err
}

// CategoryOptions serves the filter-dropdown category list, fronted by the
// local tier.
func (f *Fetcher) CategoryOptions(ctx context.Context) (*Result, error) {
	return f.fetchLocal(ctx, f.optionsTier, domain.DomainCategoryOptions, []string{"all"},
		func(ctx context.Context) (any, error) {
			return f.source.CategoryOptions(ctx)
		})
}

// Ratings serves the rating summary for one product.
func (f *Fetcher) Ratings(ctx context.Context, productID string) (*Result, error) {
	return f.fetch(ctx, domain.DomainRatings, []string{"product_" + productID}, func(ctx context.Context) (any, error) {
		return f.source.RatingSummary(ctx, productID)
	})
}

// InvalidateLocal drops the in-process category tiers. Called when a
// category change event arrives.
func (f *Fetcher) InvalidateLocal() {
	f.categoriesTier.Invalidate()
	f.optionsTier.Invalidate()
}

// fetchLocal is fetch with a local tier in front. On any successful read
// from a lower tier, the tier is refreshed before returning so the next
// local read within the window avoids all I/O.
func (f *Fetcher) fetchLocal(ctx context.Context, tier *cache.LocalTier, d domain.CacheDomain, parts []string, load func(context.Context) (any, error)) (*Result, error) {
	if tier != nil {
		if data, ok := tier.Read(); ok {
			return &Result{
				Value:  data,
				Key:    cache.Key(d, parts...),
				Status: StatusHit,
				Source: SourceLocalMemory,
				Set:    SetNone,
			}, nil
		}
	}

	res, err := f.fetch(ctx, d, parts, load)
	if err != nil {
		return nil, err
	}
	if tier != nil {
		tier.Write(res.Value)
	}
	return res, nil
}

// fetch reads through the distributed store (bounded lookup, timeouts and
// store errors are misses) and falls back to the catalog source. Stale hits
// are served immediately with a deduplicated background refresh.
func (f *Fetcher) fetch(ctx context.Context, d domain.CacheDomain, parts []string, load func(context.Context) (any, error)) (*Result, error) {
	key := cache.Key(d, parts...)

	if entry := f.cache.GetWithTTL(ctx, d, parts...); entry != nil {
		if entry.Stale {
			f.scheduleRefresh(d, parts, load)
		}
		return &Result{
			Value:  entry.Data,
			Key:    key,
			Status: StatusHit,
			Source: SourceCache,
			Set:    SetNone,
			Stale:  entry.Stale,
		}, nil
	}

	// Cold path: the source of record. A failure here is a genuine error,
	// there is no further fallback.
	value, err := load(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	// Populate-after-serve: the write-back is detached and never awaited.
	go func() {
		wctx, cancel := context.WithTimeout(context.Background(), writeBackTimeout)
		defer cancel()

		if ok := f.cache.Set(wctx, d, data, parts...); !ok {
			slog.Warn("background cache population failed", "key", key)
		}
	}()

	return &Result{
		Value:  data,
		Key:    key,
		Status: StatusMiss,
		Source: SourceDatabase,
		Set:    SetAsync,
	}, nil
}

// scheduleRefresh repairs a stale entry in the background. Concurrent stale
// reads of the same key collapse into a single source query.
func (f *Fetcher) scheduleRefresh(d domain.CacheDomain, parts []string, load func(context.Context) (any, error)) {
	key := cache.Key(d, parts...)

	go func() {
		_, _, _ = f.refresh.Do(key, func() (any, error) {
			rctx, cancel := context.WithTimeout(context.Background(), writeBackTimeout)
			defer cancel()

			value, err := load(rctx)
			if err != nil {
				slog.Warn("stale refresh failed", "key", key, "error", err)
				return nil, err
			}

			data, err := json.Marshal(value)
			if err != nil {
				return nil, err
			}

			f.cache.Set(rctx, d, data, parts...)
			slog.Debug("stale entry refreshed", "key", key)
			return nil, nil
		})
	}()
}

func boolPart(name string, v bool) string {
	if v {
		return name + "_true"
	}
	return name + "_false"
}

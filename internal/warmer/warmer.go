// Package warmer pre-populates the distributed store for the query shapes
// catalog traffic is expected to exercise, before that traffic arrives.
package warmer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cozyberries/storefront/internal/cache"
	"github.com/cozyberries/storefront/internal/domain"
)

// Report accumulates the outcome of one warm run. It is created at the
// start of an invocation and discarded after the response is returned.
type Report struct {
	mu sync.Mutex

	Warmed        int      `json:"totalWarmed"`
	Keys          []string `json:"keys"`
	KeysTruncated bool     `json:"keysTruncated,omitempty"`
	Errors        []string `json:"errors"`
	DurationMs    int64    `json:"durationMs"`

	previewLimit int
}

func (r *Report) addKey(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Warmed++
	if len(r.Keys) < r.previewLimit {
		r.Keys = append(r.Keys, key)
	} else {
		r.KeysTruncated = true
	}
}

func (r *Report) addError(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// sortCombo is one (sort key, direction) pair the listing endpoint supports.
type sortCombo struct {
	by    string
	order string
}

var sortCombos = []sortCombo{
	{domain.SortDefault, domain.OrderDesc},
	{domain.SortPrice, domain.OrderAsc},
	{domain.SortPrice, domain.OrderDesc},
	{domain.SortName, domain.OrderAsc},
	{domain.SortName, domain.OrderDesc},
}

// enumerationPageSize is used when walking the full product list for the
// per-product pass.
const enumerationPageSize = 100

// Warmer materializes the combinatorial catalog key space through the same
// cache service request traffic writes through, so TTL policy is identical
// on both paths. One dimension's failure never aborts the others; only a
// catalog source that is unreachable at the start aborts the run.
type Warmer struct {
	cache  *cache.Service
	source domain.CatalogSource
	cfg    domain.WarmerConfig
}

// New creates a warmer.
func New(cacheSvc *cache.Service, source domain.CatalogSource, cfg domain.WarmerConfig) *Warmer {
	if len(cfg.PageSizes) == 0 {
		cfg.PageSizes = []int{12, 24}
	}
	if cfg.MaxPagesPerCombination <= 0 {
		cfg.MaxPagesPerCombination = 50
	}
	if cfg.ProductConcurrency <= 0 {
		cfg.ProductConcurrency = 8
	}
	if cfg.KeyPreviewLimit <= 0 {
		cfg.KeyPreviewLimit = 100
	}
	return &Warmer{cache: cacheSvc, source: source, cfg: cfg}
}

// Run executes one warm pass. A non-nil error means the run aborted before
// warming anything; per-dimension failures land in the report instead.
// Re-running with unchanged data overwrites the same keys.
func (w *Warmer) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{previewLimit: w.cfg.KeyPreviewLimit}

	// The category axis feeds the listing cross product; if the source is
	// unreachable here there is nothing to warm at all.
	options, err := w.source.CategoryOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate categories: %w", err)
	}

	categories := []string{domain.CategoryAll}
	for _, opt := range options {
		categories = append(categories, opt.Slug)
	}

	slog.Info("cache warm started",
		"page_sizes", w.cfg.PageSizes,
		"categories", len(categories),
		"sort_combos", len(sortCombos),
	)

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		w.warmListings(ctx, categories, report)
	}()
	go func() {
		defer wg.Done()
		w.warmCategories(ctx, options, report)
	}()
	go func() {
		defer wg.Done()
		w.warmProducts(ctx, report)
	}()
	go func() {
		defer wg.Done()
		w.warmRatings(ctx, report)
	}()

	wg.Wait()

	report.DurationMs = time.Since(start).Milliseconds()
	slog.Info("cache warm finished",
		"warmed", report.Warmed,
		"errors", len(report.Errors),
		"duration_ms", report.DurationMs,
	)
	return report, nil
}

// warmListings walks the full cross product of page size, category,
// featured flag, and sort combination. Pages within one combination are
// strictly sequential: page N's row count decides whether page N+1 exists.
func (w *Warmer) warmListings(ctx context.Context, categories []string, report *Report) {
	for _, limit := range w.cfg.PageSizes {
		for _, category := range categories {
			for _, featured := range []bool{false, true} {
				for _, combo := range sortCombos {
					w.warmCombination(ctx, domain.ListQuery{
						Limit:     limit,
						Category:  category,
						Featured:  featured,
						SortBy:    combo.by,
						SortOrder: combo.order,
					}, report)
				}
			}
		}
	}
}

// warmCombination pages through one axis combination until a short page
// signals exhausted results, bounded by MaxPagesPerCombination.
func (w *Warmer) warmCombination(ctx context.Context, q domain.ListQuery, report *Report) {
	for page := 1; page <= w.cfg.MaxPagesPerCombination; page++ {
		q.Page = page
		q = q.Normalize()

		products, err := w.source.ListProducts(ctx, q)
		if err != nil {
			report.addError("listing %s: %v", cache.ListingKey(q), err)
			return
		}

		data, err := json.Marshal(domain.ProductPage{Products: products, Page: q.Page, Limit: q.Limit})
		if err != nil {
			report.addError("listing %s: %v", cache.ListingKey(q), err)
			return
		}

		key := cache.ListingKey(q)
		if !w.cache.Set(ctx, domain.DomainProductList, data, cache.ListingKeyParts(q)...) {
			report.addError("listing %s: cache write failed", key)
			return
		}
		report.addKey(key)

		if len(products) < q.Limit {
			return
		}
	}
}

// warmCategories warms the filter-dropdown options and both shapes of the
// full category list. Each write is independent.
func (w *Warmer) warmCategories(ctx context.Context, options []domain.CategoryOption, report *Report) {
	if data, err := json.Marshal(options); err == nil {
		key := cache.CategoryOptionsKey()
		if w.cache.Set(ctx, domain.DomainCategoryOptions, data, "all") {
			report.addKey(key)
		} else {
			report.addError("category options: cache write failed")
		}
	}

	for _, withImages := range []bool{true, false} {
		categories, err := w.source.ListCategories(ctx, withImages)
		if err != nil {
			report.addError("categories images_%t: %v", withImages, err)
			continue
		}

		data, err := json.Marshal(categories)
		if err != nil {
			report.addError("categories images_%t: %v", withImages, err)
			continue
		}

		key := cache.CategoriesKey(withImages)
		if w.cache.Set(ctx, domain.DomainCategoryList, data, fmt.Sprintf("images_%t", withImages)) {
			report.addKey(key)
		} else {
			report.addError("categories %s: cache write failed", key)
		}
	}
}

// warmProducts warms every individual product with bounded fan-out so the
// catalog source never sees an unbounded burst of simultaneous queries.
func (w *Warmer) warmProducts(ctx context.Context, report *Report) {
	slugs, err := w.enumerateSlugs(ctx)
	if err != nil {
		report.addError("product enumeration: %v", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.ProductConcurrency)

	for _, slug := range slugs {
		slug := slug
		g.Go(func() error {
			product, err := w.source.GetProduct(gctx, slug)
			if err != nil {
				report.addError("product %s: %v", slug, err)
				return nil // one product's failure must not starve the rest
			}

			data, err := json.Marshal(product)
			if err != nil {
				report.addError("product %s: %v", slug, err)
				return nil
			}

			key := cache.ProductKey(slug)
			if w.cache.Set(gctx, domain.DomainProduct, data, slug) {
				report.addKey(key)
			} else {
				report.addError("product %s: cache write failed", slug)
			}
			return nil
		})
	}

	_ = g.Wait()
}

// enumerateSlugs pages through the whole catalog to collect product slugs.
func (w *Warmer) enumerateSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	for page := 1; ; page++ {
		products, err := w.source.ListProducts(ctx, domain.ListQuery{
			Limit: enumerationPageSize,
			Page:  page,
		})
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			slugs = append(slugs, p.Slug)
		}
		if len(products) < enumerationPageSize {
			return slugs, nil
		}
	}
}

// warmRatings warms the per-product rating summaries from one grouped query.
func (w *Warmer) warmRatings(ctx context.Context, report *Report) {
	summaries, err := w.source.RatingSummaries(ctx)
	if err != nil {
		report.addError("ratings: %v", err)
		return
	}

	for _, summary := range summaries {
		data, err := json.Marshal(summary)
		if err != nil {
			report.addError("ratings %s: %v", summary.ProductID, err)
			continue
		}

		key := cache.RatingsKey(summary.ProductID)
		if w.cache.Set(ctx, domain.DomainRatings, data, "product_"+summary.ProductID) {
			report.addKey(key)
		} else {
			report.addError("ratings %s: cache write failed", summary.ProductID)
		}
	}
}

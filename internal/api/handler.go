package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cozyberries/storefront/internal/cache"
	"github.com/cozyberries/storefront/internal/catalog"
	"github.com/cozyberries/storefront/internal/domain"
	"github.com/cozyberries/storefront/internal/repository"
	"github.com/cozyberries/storefront/internal/warmer"
)

// Cache diagnostic headers set on every catalog read.
const (
	CacheStatusHeader = "X-Cache-Status"
	CacheKeyHeader    = "X-Cache-Key"
	DataSourceHeader  = "X-Data-Source"
	CacheSetHeader    = "X-Cache-Set"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	fetcher *catalog.Fetcher
	cache   *cache.Service
	source  domain.CatalogSource
	warmer  *warmer.Warmer
	bus     domain.EventBus
	version string
}

// NewHandler creates a new API handler.
func NewHandler(fetcher *catalog.Fetcher, cacheSvc *cache.Service, source domain.CatalogSource, wrm *warmer.Warmer, bus domain.EventBus, version string) *Handler {
	return &Handler{
		fetcher: fetcher,
		cache:   cacheSvc,
		source:  source,
		warmer:  wrm,
		bus:     bus,
		version: version,
	}
}

// Health returns overall health, degraded when a backing service is down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.source != nil {
		if err := h.source.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := domain.ListQuery{
		Limit:     intParam(r, "limit"),
		Page:      intParam(r, "page"),
		Category:  r.URL.Query().Get("category"),
		Featured:  r.URL.Query().Get("featured") == "true",
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
	}

	res, err := h.fetcher.ProductPage(r.Context(), q)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	writeResult(w, res)
}

// GetProduct handles GET /products/{slug}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "product slug is required",
		})
		return
	}

	res, err := h.fetcher.Product(r.Context(), slug)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	writeResult(w, res)
}

// GetProductRatings handles GET /products/{slug}/ratings. The rating summary
// is keyed by product ID, so the product is resolved first; that read is
// itself cache-aware and usually free.
func (h *Handler) GetProductRatings(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "product slug is required",
		})
		return
	}

	productRes, err := h.fetcher.Product(r.Context(), slug)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}

	var product domain.Product
	if err := json.Unmarshal(productRes.Value, &product); err != nil {
		slog.Error("failed to decode cached product", "slug", slug, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
		return
	}

	res, err := h.fetcher.Ratings(r.Context(), product.ID)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	writeResult(w, res)
}

// ListCategories handles GET /categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	withImages := r.URL.Query().Get("images") == "true"

	res, err := h.fetcher.Categories(r.Context(), withImages)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	writeResult(w, res)
}

// CategoryOptions handles GET /categories/options.
func (h *Handler) CategoryOptions(w http.ResponseWriter, r *http.Request) {
	res, err := h.fetcher.CategoryOptions(r.Context())
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	writeResult(w, res)
}

// WarmCache handles POST /cache/warm. 200 on a clean run, 207 when some
// dimensions failed, 503 when the catalog source was unreachable.
func (h *Handler) WarmCache(w http.ResponseWriter, r *http.Request) {
	report, err := h.warmer.Run(r.Context())
	if err != nil {
		slog.Error("cache warm aborted", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": err.Error(),
		})
		return
	}

	status := http.StatusOK
	if len(report.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, report)
}

// InvalidateRequest is the request body for POST /cache/invalidate.
type InvalidateRequest struct {
	Scope     string `json:"scope"` // product, category, rating
	Slug      string `json:"slug,omitempty"`
	ProductID string `json:"productId,omitempty"`
}

var scopeTopics = map[string]string{
	"product":  domain.TopicProductChanged,
	"category": domain.TopicCategoryChanged,
	"rating":   domain.TopicRatingChanged,
}

// InvalidateCache handles POST /cache/invalidate. It publishes a change
// event rather than evicting directly, so every subscribed process drops
// its copies, not just this one.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	topic, ok := scopeTopics[req.Scope]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scope must be one of: product, category, rating",
		})
		return
	}
	if req.Scope == "product" && req.Slug == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "slug is required for product scope",
		})
		return
	}

	payload, _ := json.Marshal(domain.ChangeEvent{Slug: req.Slug, ProductID: req.ProductID})
	if err := h.bus.Publish(r.Context(), topic, payload); err != nil {
		slog.Error("failed to publish invalidation", "topic", topic, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to publish invalidation event",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"topic":  topic,
	})
}

// CacheStats handles GET /cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

// writeCatalogError maps a cold-path failure to a response. The cache never
// produces errors here; only the catalog source does.
func (h *Handler) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "not found",
		})
		return
	}

	slog.Error("catalog read failed",
		"path", r.URL.Path,
		"trace_id", GetTraceID(r.Context()),
		"error", err,
	)
	writeJSON(w, http.StatusBadGateway, map[string]string{
		"error": "catalog source unavailable",
	})
}

// writeResult sets the cache diagnostic headers and writes the payload,
// which is already marshaled JSON.
func writeResult(w http.ResponseWriter, res *catalog.Result) {
	w.Header().Set(CacheStatusHeader, string(res.Status))
	w.Header().Set(CacheKeyHeader, res.Key)
	w.Header().Set(DataSourceHeader, string(res.Source))
	w.Header().Set(CacheSetHeader, string(res.Set))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(res.Value)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intParam(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

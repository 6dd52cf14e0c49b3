package domain

import (
	"context"
	"time"
)

// Store defines the distributed key-value store the cache layer sits on.
// Implementations must treat a missing key as nil, nil: a miss is normal
// control flow, never an error.
type Store interface {
	// Get retrieves a raw value. Returns nil, nil if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetWithTTL retrieves a raw value together with its remaining TTL.
	// Returns nil, 0, nil on a miss.
	GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error)

	// Set stores a value with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is a no-op success.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching a glob pattern
	// (e.g. "products:*").
	DeletePattern(ctx context.Context, pattern string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Entry is a cached value with its store-assigned TTL metadata.
// Stale is derived by comparing the remaining TTL against the freshness
// threshold of the entry's domain; it is never stored explicitly.
type Entry struct {
	Data  []byte        `json:"data"`
	TTL   time.Duration `json:"ttl"`
	Stale bool          `json:"stale"`
}

// CacheDomain is a logical category of cached data with its own TTL policy.
type CacheDomain string

const (
	DomainProduct         CacheDomain = "product"
	DomainProductList     CacheDomain = "products"
	DomainCategoryList    CacheDomain = "categories"
	DomainCategoryOptions CacheDomain = "category-options"
	DomainRatings         CacheDomain = "ratings"
	DomainWishlist        CacheDomain = "wishlist"
	DomainOrders          CacheDomain = "orders"
	DomainProfile         CacheDomain = "profile"
	DomainAddresses       CacheDomain = "addresses"
)

// ttlPolicy maps each domain to its TTL. Every write consults this table so
// a given domain expires consistently regardless of which code path wrote it.
var ttlPolicy = map[CacheDomain]time.Duration{
	DomainProduct:         10 * time.Minute,
	DomainProductList:     5 * time.Minute,
	DomainCategoryList:    1 * time.Hour,
	DomainCategoryOptions: 1 * time.Hour,
	DomainRatings:         10 * time.Minute,
	DomainWishlist:        5 * time.Minute,
	DomainOrders:          3 * time.Minute,
	DomainProfile:         5 * time.Minute,
	DomainAddresses:       10 * time.Minute,
}

// defaultTTL applies to domains missing from the policy table.
const defaultTTL = 5 * time.Minute

// TTLFor returns the policy TTL for a domain.
func TTLFor(d CacheDomain) time.Duration {
	if ttl, ok := ttlPolicy[d]; ok {
		return ttl
	}
	return defaultTTL
}

package cache

import (
	"fmt"
	"strings"

	"github.com/cozyberries/storefront/internal/domain"
)

// Key building is pure and side-effect-free. Two requests with identical
// effective parameters must always produce byte-identical keys; any
// parameter that changes the result set must change the key.

// Key joins a domain prefix with its key parts.
func Key(d domain.CacheDomain, parts ...string) string {
	if len(parts) == 0 {
		return string(d)
	}
	return string(d) + ":" + strings.Join(parts, ":")
}

// ListingKey builds the key for one page of a catalog listing, e.g.
// products:lt_12:pg_1:cat_all:feat_false:sortb_default:sorto_desc
func ListingKey(q domain.ListQuery) string {
	q = q.Normalize()
	return Key(domain.DomainProductList, ListingKeyParts(q)...)
}

// ListingKeyParts returns the key parts encoding every listing parameter.
func ListingKeyParts(q domain.ListQuery) []string {
	return []string{
		fmt.Sprintf("lt_%d", q.Limit),
		fmt.Sprintf("pg_%d", q.Page),
		"cat_" + q.Category,
		fmt.Sprintf("feat_%t", q.Featured),
		"sortb_" + q.SortBy,
		"sorto_" + q.SortOrder,
	}
}

// ListingPattern matches every catalog listing key.
func ListingPattern() string {
	return string(domain.DomainProductList) + ":*"
}

// ProductKey builds the key for a single product.
func ProductKey(slug string) string {
	return Key(domain.DomainProduct, slug)
}

// CategoriesKey builds the key for the full category list.
func CategoriesKey(withImages bool) string {
	return Key(domain.DomainCategoryList, fmt.Sprintf("images_%t", withImages))
}

// CategoryOptionsKey builds the key for the filter-dropdown category list.
func CategoryOptionsKey() string {
	return Key(domain.DomainCategoryOptions, "all")
}

// RatingsKey builds the key for one product's rating summary.
func RatingsKey(productID string) string {
	return Key(domain.DomainRatings, "product_"+productID)
}

// Account-scoped keys for the storefront's per-user domains.

func WishlistKey(userID string) string {
	return Key(domain.DomainWishlist, userID)
}

func OrdersKey(userID string, page int) string {
	return Key(domain.DomainOrders, userID, fmt.Sprintf("pg_%d", page))
}

func ProfileKey(userID string) string {
	return Key(domain.DomainProfile, userID)
}

func AddressesKey(userID string) string {
	return Key(domain.DomainAddresses, userID)
}

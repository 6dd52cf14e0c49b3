package domain

import "time"

// Product is a single catalog product with its images and variants.
type Product struct {
	ID          string           `json:"id"`
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Price       float64          `json:"price"`
	Category    string           `json:"category"`
	Featured    bool             `json:"featured"`
	Images      []ProductImage   `json:"images,omitempty"`
	Variants    []ProductVariant `json:"variants,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// ProductImage is an image attached to a product.
type ProductImage struct {
	URL      string `json:"url"`
	Alt      string `json:"alt,omitempty"`
	Position int    `json:"position"`
}

// ProductVariant is a purchasable variation of a product (size, color).
type ProductVariant struct {
	ID    string  `json:"id"`
	Size  string  `json:"size,omitempty"`
	Color string  `json:"color,omitempty"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// Category is an active product category, optionally with its image.
type Category struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// CategoryOption is the slim category shape used by filter dropdowns.
type CategoryOption struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Rating is a single customer rating row.
type Rating struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RatingSummary aggregates the rating rows for one product.
type RatingSummary struct {
	ProductID string  `json:"productId"`
	Count     int     `json:"count"`
	Average   float64 `json:"average"`
}

// ProductPage is one page of a catalog listing, the unit stored under a
// listing cache key.
type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

// Sort keys supported by the catalog listing endpoint.
const (
	SortDefault = "default"
	SortPrice   = "price"
	SortName    = "name"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// CategoryAll is the wildcard category slug matching every product.
const CategoryAll = "all"

// ListQuery holds every parameter that affects a catalog listing result set.
type ListQuery struct {
	Limit     int    `json:"limit"`
	Page      int    `json:"page"`
	Category  string `json:"category"`
	Featured  bool   `json:"featured"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

// Normalize fills zero values with the defaults the listing endpoint uses,
// so equivalent requests build identical cache keys.
func (q ListQuery) Normalize() ListQuery {
	if q.Limit <= 0 {
		q.Limit = 12
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Category == "" {
		q.Category = CategoryAll
	}
	switch q.SortBy {
	case SortPrice, SortName:
	default:
		q.SortBy = SortDefault
	}
	switch q.SortOrder {
	case OrderAsc, OrderDesc:
	default:
		q.SortOrder = OrderDesc
	}
	return q
}

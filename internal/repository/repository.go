// Package repository implements the catalog source of record over database/sql.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cozyberries/storefront/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLCatalog implements domain.CatalogSource using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLCatalog struct {
	db     *sql.DB
	driver string
}

// New creates a new catalog source based on configuration.
func New(cfg domain.CatalogSourceConfig) (*SQLCatalog, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	catalog := &SQLCatalog{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := catalog.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return catalog, nil
}

func (c *SQLCatalog) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := c.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// ListProducts fetches one page of products filtered by category and featured
// flag, ordered by the query's sort key and direction.
func (c *SQLCatalog) ListProducts(ctx context.Context, q domain.ListQuery) ([]domain.Product, error) {
	q = q.Normalize()

	query := `
		SELECT id, slug, name, description, price, category_slug, featured,
		       created_at, updated_at
		FROM products
	`

	var args []any
	where := ""
	if q.Category != domain.CategoryAll {
		where = " WHERE category_slug = ?"
		args = append(args, q.Category)
	}
	if q.Featured {
		if where == "" {
			where = " WHERE featured = 1"
		} else {
			where += " AND featured = 1"
		}
	}

	query += where + " ORDER BY " + orderClause(q.SortBy, q.SortOrder) + " LIMIT ? OFFSET ?"
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := c.db.QueryContext(ctx, c.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var description sql.NullString
		var featured int

		if err := rows.Scan(
			&p.ID, &p.Slug, &p.Name, &description, &p.Price,
			&p.Category, &featured, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}

		p.Description = description.String
		p.Featured = featured == 1
		products = append(products, p)
	}

	return products, rows.Err()
}

// orderClause maps a named sort key and direction onto a whitelisted ORDER BY
// expression. Unknown keys fall back to newest-first.
func orderClause(sortBy, sortOrder string) string {
	dir := "DESC"
	if sortOrder == domain.OrderAsc {
		dir = "ASC"
	}

	switch sortBy {
	case domain.SortPrice:
		return "price " + dir
	case domain.SortName:
		return "name " + dir
	default:
		return "created_at " + dir
	}
}

// GetProduct fetches a single product by slug with its images and variants.
func (c *SQLCatalog) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", ErrInvalidInput)
	}

	query := `
		SELECT id, slug, name, description, price, category_slug, featured,
		       created_at, updated_at
		FROM products
		WHERE slug = ?
	`

	var p domain.Product
	var description sql.NullString
	var featured int

	err := c.db.QueryRowContext(ctx, c.rebind(query), slug).Scan(
		&p.ID, &p.Slug, &p.Name, &description, &p.Price,
		&p.Category, &featured, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Description = description.String
	p.Featured = featured == 1

	if p.Images, err = c.productImages(ctx, p.ID); err != nil {
		return nil, err
	}
	if p.Variants, err = c.productVariants(ctx, p.ID); err != nil {
		return nil, err
	}

	return &p, nil
}

func (c *SQLCatalog) productImages(ctx context.Context, productID string) ([]domain.ProductImage, error) {
	query := `
		SELECT url, alt, position
		FROM product_images
		WHERE product_id = ?
		ORDER BY position
	`

	rows, err := c.db.QueryContext(ctx, c.rebind(query), productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []domain.ProductImage
	for rows.Next() {
		var img domain.ProductImage
		var alt sql.NullString
		if err := rows.Scan(&img.URL, &alt, &img.Position); err != nil {
			return nil, err
		}
		img.Alt = alt.String
		images = append(images, img)
	}
	return images, rows.Err()
}

func (c *SQLCatalog) productVariants(ctx context.Context, productID string) ([]domain.ProductVariant, error) {
	query := `
		SELECT id, size, color, price, stock
		FROM product_variants
		WHERE product_id = ?
		ORDER BY id
	`

	rows, err := c.db.QueryContext(ctx, c.rebind(query), productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []domain.ProductVariant
	for rows.Next() {
		var v domain.ProductVariant
		var size, color sql.NullString
		if err := rows.Scan(&v.ID, &size, &color, &v.Price, &v.Stock); err != nil {
			return nil, err
		}
		v.Size = size.String
		v.Color = color.String
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// ListCategories fetches every active category, optionally with images.
func (c *SQLCatalog) ListCategories(ctx context.Context, withImages bool) ([]domain.Category, error) {
	query := `
		SELECT id, slug, name, image_url
		FROM categories
		WHERE active = 1
		ORDER BY name
	`

	rows, err := c.db.QueryContext(ctx, c.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var cat domain.Category
		var imageURL sql.NullString
		if err := rows.Scan(&cat.ID, &cat.Slug, &cat.Name, &imageURL); err != nil {
			return nil, err
		}
		if withImages {
			cat.ImageURL = imageURL.String
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

// CategoryOptions fetches the slim category list for filter dropdowns.
func (c *SQLCatalog) CategoryOptions(ctx context.Context) ([]domain.CategoryOption, error) {
	query := `
		SELECT slug, name
		FROM categories
		WHERE active = 1
		ORDER BY name
	`

	rows, err := c.db.QueryContext(ctx, c.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []domain.CategoryOption
	for rows.Next() {
		var opt domain.CategoryOption
		if err := rows.Scan(&opt.Slug, &opt.Name); err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

// ListRatings fetches every rating row, ungrouped.
func (c *SQLCatalog) ListRatings(ctx context.Context) ([]domain.Rating, error) {
	query := `
		SELECT id, product_id, rating, COALESCE(comment, ''), created_at
		FROM ratings
		ORDER BY created_at DESC
	`

	rows, err := c.db.QueryContext(ctx, c.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []domain.Rating
	for rows.Next() {
		var r domain.Rating
		if err := rows.Scan(&r.ID, &r.ProductID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}

// RatingSummaries fetches rating aggregates grouped by product.
func (c *SQLCatalog) RatingSummaries(ctx context.Context) ([]domain.RatingSummary, error) {
	query := `
		SELECT product_id, COUNT(*), AVG(rating)
		FROM ratings
		GROUP BY product_id
		ORDER BY product_id
	`

	rows, err := c.db.QueryContext(ctx, c.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.RatingSummary
	for rows.Next() {
		var s domain.RatingSummary
		if err := rows.Scan(&s.ProductID, &s.Count, &s.Average); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// RatingSummary fetches the rating aggregate for one product. A product with
// no ratings yields a zero-count summary, not an error.
func (c *SQLCatalog) RatingSummary(ctx context.Context, productID string) (*domain.RatingSummary, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: productID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*), COALESCE(AVG(rating), 0)
		FROM ratings
		WHERE product_id = ?
	`

	s := domain.RatingSummary{ProductID: productID}
	err := c.db.QueryRowContext(ctx, c.rebind(query), productID).Scan(&s.Count, &s.Average)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Ping checks database connectivity.
func (c *SQLCatalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *SQLCatalog) Close() error {
	return c.db.Close()
}

// DB exposes the underlying handle for seeding in tests and tooling.
func (c *SQLCatalog) DB() *sql.DB {
	return c.db
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (c *SQLCatalog) rebind(query string) string {
	if c.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

package repository

// Schema definitions for the storefront catalog.
// Compatible with both SQLite and PostgreSQL.

const schemaCategories = `
CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    image_url TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_categories_active ON categories(active);
`

const schemaProducts = `
CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT,
    price REAL NOT NULL,
    category_slug TEXT NOT NULL,
    featured INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_slug);
CREATE INDEX IF NOT EXISTS idx_products_featured ON products(featured);
CREATE INDEX IF NOT EXISTS idx_products_price ON products(price);
CREATE INDEX IF NOT EXISTS idx_products_created ON products(created_at);
`

const schemaProductImages = `
CREATE TABLE IF NOT EXISTS product_images (
    product_id TEXT NOT NULL,
    url TEXT NOT NULL,
    alt TEXT,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (product_id, position)
);

CREATE INDEX IF NOT EXISTS idx_product_images_product ON product_images(product_id);
`

const schemaProductVariants = `
CREATE TABLE IF NOT EXISTS product_variants (
    id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL,
    size TEXT,
    color TEXT,
    price REAL NOT NULL,
    stock INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_product_variants_product ON product_variants(product_id);
`

const schemaRatings = `
CREATE TABLE IF NOT EXISTS ratings (
    id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL,
    rating INTEGER NOT NULL,
    comment TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ratings_product ON ratings(product_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCategories,
		schemaProducts,
		schemaProductImages,
		schemaProductVariants,
		schemaRatings,
	}
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// OpenDB opens and pings a database for one of the supported drivers.
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		// one writer keeps sqlite from returning "database is locked"
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	ctx, cncl := context.WithTimeout(ctx, 5*time.Second)
	defer cncl()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{serial}},
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		created_at {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id {{serial}},
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		display_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id {{serial}},
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC(12,2) NOT NULL,
		old_price NUMERIC(12,2),
		discount INTEGER NOT NULL DEFAULT 0,
		category_id INTEGER REFERENCES categories(id),
		stock INTEGER NOT NULL DEFAULT 0,
		images TEXT NOT NULL DEFAULT '[]',
		rating {{float}} NOT NULL DEFAULT 0,
		review_count INTEGER NOT NULL DEFAULT 0,
		is_new BOOLEAN NOT NULL DEFAULT FALSE,
		is_featured BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{timestamp}} NOT NULL,
		updated_at {{timestamp}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS products_category_idx ON products (category_id)`,
	`CREATE TABLE IF NOT EXISTS promo_codes (
		id {{serial}},
		code TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		value NUMERIC(12,2) NOT NULL DEFAULT 0,
		min_order_amount NUMERIC(12,2),
		starts_at {{timestamp}},
		expires_at {{timestamp}},
		max_uses INTEGER,
		used_count INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id {{serial}},
		number TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		status TEXT NOT NULL,
		subtotal NUMERIC(12,2) NOT NULL,
		shipping NUMERIC(12,2) NOT NULL,
		discount NUMERIC(12,2) NOT NULL,
		total NUMERIC(12,2) NOT NULL,
		promo_code TEXT,
		ship_full_name TEXT NOT NULL,
		ship_phone TEXT NOT NULL,
		ship_line1 TEXT NOT NULL,
		ship_line2 TEXT NOT NULL DEFAULT '',
		ship_city TEXT NOT NULL,
		ship_postal_code TEXT NOT NULL,
		ship_country TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		created_at {{timestamp}} NOT NULL,
		updated_at {{timestamp}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_idx ON orders (user_id)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id {{serial}},
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		price NUMERIC(12,2) NOT NULL,
		quantity INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS order_items_order_idx ON order_items (order_id)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id {{serial}},
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		rating INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		created_at {{timestamp}} NOT NULL,
		UNIQUE (product_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		user_id INTEGER NOT NULL REFERENCES users(id),
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		created_at {{timestamp}} NOT NULL,
		PRIMARY KEY (user_id, product_id)
	)`,
}

func dialect(driver string) *strings.Replacer {
	if driver == "sqlite3" {
		return strings.NewReplacer(
			"{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{timestamp}}", "TIMESTAMP",
			"{{float}}", "REAL",
		)
	}
	return strings.NewReplacer(
		"{{serial}}", "SERIAL PRIMARY KEY",
		"{{timestamp}}", "TIMESTAMPTZ",
		"{{float}}", "DOUBLE PRECISION",
	)
}

// Migrate creates every table that does not exist yet.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	r := dialect(driver)
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			log.Printf("Migrate[%d]: %v", i, err)
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// buildQueryFromSlice renders "( $n, $n+1, ... )" for ids, numbering after start placeholders.
func buildQueryFromSlice(ids []int, start int) (query string, queryParams []any) {
	parts := make([]string, 0, len(ids))
	queryParams = make([]any, 0, len(ids))
	for i, id := range ids {
		parts = append(parts, "$"+strconv.Itoa(start+i+1))
		queryParams = append(queryParams, id)
	}
	query = "( " + strings.Join(parts, ", ") + " )"
	return
}

// queryArgs numbers placeholders in the order arguments are added.
type queryArgs struct {
	params []any
}

func (q *queryArgs) add(v any) string {
	q.params = append(q.params, v)
	return "$" + strconv.Itoa(len(q.params))
}

func now() time.Time {
	return time.Now().UTC()
}

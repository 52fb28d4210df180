package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"storefront/models"
)

type ProductRepository interface {
	ListProducts(ctx context.Context, f models.ProductFilter) (prods []models.Product_db, total int, err error)
	GetProductById(ctx context.Context, id int) (pModel models.Product_db, exists bool, err error)
	GetProductBySlug(ctx context.Context, slug string) (pModel models.Product_db, exists bool, err error)
	GetProductsByIds(ctx context.Context, ids []int) (map[int]models.Product_db, error)
	GetRelatedProducts(ctx context.Context, prod models.Product_db, limit int) ([]models.Product_db, error)
	GetAllProducts(ctx context.Context) ([]models.Product_db, error)
	SlugExists(ctx context.Context, slug string, exceptId int) (bool, error)
	CreateProduct(ctx context.Context, pModel models.Product_db) (newId int, err error)
	UpdateProduct(ctx context.Context, pModel models.Product_db) (err error)
	DeleteProduct(ctx context.Context, id int) (err error)
	CountProducts(ctx context.Context) (int, error)
}

type ProductRepo struct {
	db *sql.DB
}

func NewProductRepository(conn *sql.DB) (ProductRepository, error) {
	if conn == nil {
		return nil, errors.New("conn must be non-nil")
	}
	err := conn.Ping()
	if err != nil {
		return nil, err
	}
	return &ProductRepo{
		db: conn,
	}, nil
}

const productSelect = `SELECT p.id, p.name, p.slug, p.description, p.price, p.old_price, p.discount,
	p.category_id, c.name, c.slug, p.stock, p.images, p.rating, p.review_count,
	p.is_new, p.is_featured, p.created_at, p.updated_at
	FROM products p LEFT JOIN categories c ON c.id = p.category_id `

var productSorts = map[string]string{
	"newest":     "p.created_at DESC, p.id DESC",
	"price_asc":  "p.price ASC, p.id ASC",
	"price_desc": "p.price DESC, p.id ASC",
	"rating":     "p.rating DESC, p.review_count DESC, p.id ASC",
	"popular":    "p.review_count DESC, p.rating DESC, p.id ASC",
	"name":       "p.name ASC, p.id ASC",
}

func scanProduct(s scanner) (p models.Product_db, err error) {
	var images string
	err = s.Scan(&p.Id, &p.Name, &p.Slug, &p.Description, &p.Price, &p.OldPrice, &p.Discount,
		&p.CategoryId, &p.CategoryName, &p.CategorySlug, &p.Stock, &images, &p.Rating, &p.ReviewCount,
		&p.IsNew, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return
	}
	p.Images = []string{}
	if images != "" {
		err = json.Unmarshal([]byte(images), &p.Images)
	}
	return
}

func (p *ProductRepo) queryProducts(ctx context.Context, query string, args ...any) (prods []models.Product_db, err error) {
	rows, e := p.db.QueryContext(ctx, query, args...)
	if e != nil {
		log.Printf("queryProducts[1]: %v", e)
		err = models.ErrServerError
		return
	}
	defer rows.Close()
	for rows.Next() {
		var prod models.Product_db
		if prod, err = scanProduct(rows); err != nil {
			log.Printf("queryProducts[2]: %v", err)
			err = models.ErrServerError
			return
		}
		prods = append(prods, prod)
	}
	if err = rows.Err(); err != nil {
		log.Printf("queryProducts[3]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (p *ProductRepo) ListProducts(ctx context.Context, f models.ProductFilter) (prods []models.Product_db, total int, err error) {
	var args queryArgs
	var where []string

	if f.Category != "" {
		where = append(where, "c.slug = "+args.add(f.Category))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		ph := args.add("%" + strings.ToLower(q) + "%")
		where = append(where, "(LOWER(p.name) LIKE "+ph+" OR LOWER(p.description) LIKE "+ph+")")
	}
	if f.MinPrice.Valid {
		where = append(where, "p.price >= "+args.add(f.MinPrice.Decimal))
	}
	if f.MaxPrice.Valid {
		where = append(where, "p.price <= "+args.add(f.MaxPrice.Decimal))
	}
	if f.IsNew != nil {
		where = append(where, "p.is_new = "+args.add(*f.IsNew))
	}
	if f.Featured != nil {
		where = append(where, "p.is_featured = "+args.add(*f.Featured))
	}
	if f.InStock {
		where = append(where, "p.stock > 0")
	}

	var whereSQL string
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM products p LEFT JOIN categories c ON c.id = p.category_id " + whereSQL
	if err = p.db.QueryRowContext(ctx, countQuery, args.params...).Scan(&total); err != nil {
		log.Printf("ListProducts: %v", err)
		err = models.ErrServerError
		return
	}
	if total == 0 {
		return
	}

	order, ok := productSorts[f.Sort]
	if !ok {
		order = productSorts["newest"]
	}
	query := productSelect + whereSQL + " ORDER BY " + order
	query = query + " LIMIT " + args.add(f.Limit) + " OFFSET " + args.add((f.Page-1)*f.Limit)

	prods, err = p.queryProducts(ctx, query, args.params...)
	return
}

func (p *ProductRepo) getOne(ctx context.Context, where string, arg any) (pModel models.Product_db, exists bool, err error) {
	pModel, err = scanProduct(p.db.QueryRowContext(ctx, productSelect+where, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
		} else {
			log.Printf("GetProduct: %v", err)
			err = models.ErrServerError
		}
		return
	}
	exists = true
	return
}

func (p *ProductRepo) GetProductById(ctx context.Context, id int) (models.Product_db, bool, error) {
	return p.getOne(ctx, "WHERE p.id = $1", id)
}

func (p *ProductRepo) GetProductBySlug(ctx context.Context, slug string) (models.Product_db, bool, error) {
	return p.getOne(ctx, "WHERE p.slug = $1", slug)
}

func (p *ProductRepo) GetProductsByIds(ctx context.Context, ids []int) (map[int]models.Product_db, error) {
	res := make(map[int]models.Product_db, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	in, params := buildQueryFromSlice(ids, 0)
	prods, err := p.queryProducts(ctx, productSelect+"WHERE p.id IN "+in, params...)
	if err != nil {
		return nil, err
	}
	for _, prod := range prods {
		res[prod.Id] = prod
	}
	return res, nil
}

func (p *ProductRepo) GetRelatedProducts(ctx context.Context, prod models.Product_db, limit int) ([]models.Product_db, error) {
	if !prod.CategoryId.Valid {
		return nil, nil
	}
	return p.queryProducts(ctx,
		productSelect+"WHERE p.category_id = $1 AND p.id <> $2 ORDER BY p.rating DESC, p.id ASC LIMIT $3",
		prod.CategoryId.Int64, prod.Id, limit)
}

func (p *ProductRepo) GetAllProducts(ctx context.Context) ([]models.Product_db, error) {
	return p.queryProducts(ctx, productSelect+"ORDER BY p.id")
}

func (p *ProductRepo) SlugExists(ctx context.Context, slug string, exceptId int) (bool, error) {
	var ex int
	err := p.db.QueryRowContext(ctx, "SELECT id FROM products WHERE slug = $1 AND id <> $2", slug, exceptId).Scan(&ex)
	if err == nil {
		return true, nil
	}
	if err == sql.ErrNoRows {
		return false, nil
	}
	log.Printf("ProductSlugExists: %v", err)
	return false, models.ErrServerError
}

func encodeImages(images []string) string {
	if images == nil {
		images = []string{}
	}
	b, _ := json.Marshal(images)
	return string(b)
}

func (p *ProductRepo) CreateProduct(ctx context.Context, pModel models.Product_db) (newId int, err error) {
	ts := now()
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO products (name, slug, description, price, old_price, discount, category_id, stock, images,
		is_new, is_featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		pModel.Name, pModel.Slug, pModel.Description, pModel.Price, pModel.OldPrice, pModel.Discount,
		pModel.CategoryId, pModel.Stock, encodeImages(pModel.Images), pModel.IsNew, pModel.IsFeatured, ts, ts,
	).Scan(&newId)
	if err != nil {
		log.Printf("CreateProduct: %v", err)
		err = models.ErrServerError
	}
	return
}

func (p *ProductRepo) UpdateProduct(ctx context.Context, pModel models.Product_db) (err error) {
	res, e := p.db.ExecContext(ctx,
		`UPDATE products SET name = $1, slug = $2, description = $3, price = $4, old_price = $5, discount = $6,
		category_id = $7, stock = $8, images = $9, is_new = $10, is_featured = $11, updated_at = $12 WHERE id = $13`,
		pModel.Name, pModel.Slug, pModel.Description, pModel.Price, pModel.OldPrice, pModel.Discount,
		pModel.CategoryId, pModel.Stock, encodeImages(pModel.Images), pModel.IsNew, pModel.IsFeatured, now(), pModel.Id)
	if e != nil {
		log.Printf("UpdateProduct: %v", e)
		err = models.ErrServerError
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = models.Errorf(models.ErrNotFound, "product not found")
	}
	return
}

func (p *ProductRepo) DeleteProduct(ctx context.Context, id int) (err error) {
	res, e := p.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if e != nil {
		log.Printf("DeleteProduct: %v", e)
		err = models.ErrServerError
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = models.Errorf(models.ErrNotFound, "product not found")
	}
	return
}

func (p *ProductRepo) CountProducts(ctx context.Context) (count int, err error) {
	err = p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count)
	if err != nil {
		log.Printf("CountProducts: %v", err)
		err = models.ErrServerError
	}
	return
}

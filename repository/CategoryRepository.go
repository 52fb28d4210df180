package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"storefront/models"
)

type CategoryRepository interface {
	GetAllCategories(ctx context.Context) ([]models.Category_db, error)
	GetCategoryById(ctx context.Context, id int) (cat models.Category_db, exists bool, err error)
	GetCategoryBySlug(ctx context.Context, slug string) (cat models.Category_db, exists bool, err error)
	CategoryExist(ctx context.Context, catId int) (bool, error)
	SlugExists(ctx context.Context, slug string, exceptId int) (bool, error)
	CreateCategory(ctx context.Context, cat models.Category_db) (newCatId int, err error)
	UpdateCategory(ctx context.Context, cat models.Category_db) (err error)
	DeleteCategory(ctx context.Context, catId int) (err error)
	CountCategories(ctx context.Context) (int, error)
}

type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepository(conn *sql.DB) (CategoryRepository, error) {
	if conn == nil {
		return nil, errors.New("conn must be non-nil")
	}
	err := conn.Ping()
	if err != nil {
		return nil, err
	}
	return &CategoryRepo{
		db: conn,
	}, nil
}

const categorySelect = `SELECT c.id, c.name, c.slug, c.display_order, COUNT(p.id)
	FROM categories c LEFT JOIN products p ON p.category_id = c.id `

const categoryGroup = ` GROUP BY c.id, c.name, c.slug, c.display_order`

func scanCategory(s scanner) (c models.Category_db, err error) {
	err = s.Scan(&c.Id, &c.Name, &c.Slug, &c.DisplayOrder, &c.ProductCount)
	return
}

func (c *CategoryRepo) GetAllCategories(ctx context.Context) (cats []models.Category_db, err error) {
	rows, e := c.db.QueryContext(ctx, categorySelect+categoryGroup+" ORDER BY c.display_order, c.name")
	if e != nil {
		log.Printf("GetAllCategories[1]: %v", e)
		err = models.ErrServerError
		return
	}
	defer rows.Close()
	for rows.Next() {
		var cat models.Category_db
		if cat, err = scanCategory(rows); err != nil {
			log.Printf("GetAllCategories[2]: %v", err)
			err = models.ErrServerError
			return
		}
		cats = append(cats, cat)
	}
	if err = rows.Err(); err != nil {
		log.Printf("GetAllCategories[3]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (c *CategoryRepo) getOne(ctx context.Context, where string, arg any) (cat models.Category_db, exists bool, err error) {
	cat, err = scanCategory(c.db.QueryRowContext(ctx, categorySelect+where+categoryGroup, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return
		}
		log.Printf("GetCategory: %v", err)
		err = models.ErrServerError
		return
	}
	exists = true
	return
}

func (c *CategoryRepo) GetCategoryById(ctx context.Context, id int) (models.Category_db, bool, error) {
	return c.getOne(ctx, "WHERE c.id = $1", id)
}

func (c *CategoryRepo) GetCategoryBySlug(ctx context.Context, slug string) (models.Category_db, bool, error) {
	return c.getOne(ctx, "WHERE c.slug = $1", slug)
}

func (c *CategoryRepo) CategoryExist(ctx context.Context, catId int) (bool, error) {
	row := c.db.QueryRowContext(ctx, "SELECT id FROM categories WHERE id = $1", catId)
	var ex int
	err := row.Scan(&ex)
	if err == nil {
		return true, nil
	}
	if err == sql.ErrNoRows {
		return false, nil
	}
	log.Printf("CategoryExist: %v", err)
	return false, models.ErrServerError
}

func (c *CategoryRepo) SlugExists(ctx context.Context, slug string, exceptId int) (bool, error) {
	var ex int
	err := c.db.QueryRowContext(ctx, "SELECT id FROM categories WHERE slug = $1 AND id <> $2", slug, exceptId).Scan(&ex)
	if err == nil {
		return true, nil
	}
	if err == sql.ErrNoRows {
		return false, nil
	}
	log.Printf("CategorySlugExists: %v", err)
	return false, models.ErrServerError
}

func (c *CategoryRepo) CreateCategory(ctx context.Context, cat models.Category_db) (newCatId int, err error) {
	err = c.db.QueryRowContext(ctx,
		"INSERT INTO categories (name, slug, display_order) VALUES ($1, $2, $3) RETURNING id",
		cat.Name, cat.Slug, cat.DisplayOrder).Scan(&newCatId)
	if err != nil {
		log.Printf("CreateCategory: %v", err)
		err = models.ErrServerError
	}
	return
}

func (c *CategoryRepo) UpdateCategory(ctx context.Context, cat models.Category_db) (err error) {
	res, e := c.db.ExecContext(ctx,
		"UPDATE categories SET name = $1, slug = $2, display_order = $3 WHERE id = $4",
		cat.Name, cat.Slug, cat.DisplayOrder, cat.Id)
	if e != nil {
		log.Printf("UpdateCategory: %v", e)
		err = models.ErrServerError
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = models.Errorf(models.ErrNotFound, "category not found")
	}
	return
}

func (c *CategoryRepo) DeleteCategory(ctx context.Context, catId int) (err error) {
	var inUse int
	err = c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE category_id = $1", catId).Scan(&inUse)
	if err != nil {
		log.Printf("DeleteCategory[1]: %v", err)
		err = models.ErrServerError
		return
	}
	if inUse > 0 {
		err = models.Errorf(models.ErrNotAllowed, "category still has %d product(s)", inUse)
		return
	}
	res, e := c.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", catId)
	if e != nil {
		log.Printf("DeleteCategory[2]: %v", e)
		err = models.ErrServerError
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = models.Errorf(models.ErrNotFound, "category not found")
	}
	return
}

func (c *CategoryRepo) CountCategories(ctx context.Context) (count int, err error) {
	err = c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count)
	if err != nil {
		log.Printf("CountCategories: %v", err)
		err = models.ErrServerError
	}
	return
}

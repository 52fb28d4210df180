package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"storefront/models"
)

type FavoriteRepository interface {
	GetFavorites(ctx context.Context, userId int) ([]models.Product_db, error)
	AddFavorite(ctx context.Context, userId, productId int) error
	RemoveFavorite(ctx context.Context, userId, productId int) error
}

type FavoriteRepo struct {
	db *sql.DB
}

func NewFavoriteRepository(conn *sql.DB) (FavoriteRepository, error) {
	if conn == nil {
		return nil, errors.New("conn must be non-nil")
	}
	err := conn.Ping()
	if err != nil {
		return nil, err
	}
	return &FavoriteRepo{
		db: conn,
	}, nil
}

func (f *FavoriteRepo) GetFavorites(ctx context.Context, userId int) (prods []models.Product_db, err error) {
	rows, e := f.db.QueryContext(ctx,
		productSelect+"JOIN favorites f ON f.product_id = p.id WHERE f.user_id = $1 ORDER BY f.created_at DESC, p.id DESC", userId)
	if e != nil {
		log.Printf("GetFavorites[1]: %v", e)
		err = models.ErrServerError
		return
	}
	defer rows.Close()
	for rows.Next() {
		var prod models.Product_db
		if prod, err = scanProduct(rows); err != nil {
			log.Printf("GetFavorites[2]: %v", err)
			err = models.ErrServerError
			return
		}
		prods = append(prods, prod)
	}
	if err = rows.Err(); err != nil {
		log.Printf("GetFavorites[3]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (f *FavoriteRepo) AddFavorite(ctx context.Context, userId, productId int) error {
	_, err := f.db.ExecContext(ctx,
		"INSERT INTO favorites (user_id, product_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		userId, productId, now())
	if err != nil {
		log.Printf("AddFavorite: %v", err)
		return models.ErrServerError
	}
	return nil
}

func (f *FavoriteRepo) RemoveFavorite(ctx context.Context, userId, productId int) error {
	_, err := f.db.ExecContext(ctx, "DELETE FROM favorites WHERE user_id = $1 AND product_id = $2", userId, productId)
	if err != nil {
		log.Printf("RemoveFavorite: %v", err)
		return models.ErrServerError
	}
	return nil
}

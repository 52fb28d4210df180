package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"storefront/models"
)

type ReviewRepository interface {
	ListProductReviews(ctx context.Context, productId, limit, offset int) (reviews []models.Review_db, total int, err error)
	GetReviewById(ctx context.Context, id int) (review models.Review_db, exists bool, err error)
	CreateReview(ctx context.Context, review models.Review_db) (newId int, err error)
	DeleteReview(ctx context.Context, id int) (err error)
}

type ReviewRepo struct {
	db *sql.DB
}

func NewReviewRepository(conn *sql.DB) (ReviewRepository, error) {
	if conn == nil {
		return nil, errors.New("conn must be non-nil")
	}
	err := conn.Ping()
	if err != nil {
		return nil, err
	}
	return &ReviewRepo{
		db: conn,
	}, nil
}

const reviewSelect = `SELECT r.id, r.product_id, r.user_id, u.name, r.rating, r.comment, r.created_at
	FROM reviews r JOIN users u ON u.id = r.user_id `

func scanReview(s scanner) (r models.Review_db, err error) {
	err = s.Scan(&r.Id, &r.ProductId, &r.UserId, &r.AuthorName, &r.Rating, &r.Comment, &r.CreatedAt)
	return
}

func (r *ReviewRepo) ListProductReviews(ctx context.Context, productId, limit, offset int) (reviews []models.Review_db, total int, err error) {
	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews WHERE product_id = $1", productId).Scan(&total)
	if err != nil {
		log.Printf("ListProductReviews[1]: %v", err)
		err = models.ErrServerError
		return
	}
	if total == 0 {
		return
	}
	rows, e := r.db.QueryContext(ctx,
		reviewSelect+"WHERE r.product_id = $1 ORDER BY r.created_at DESC, r.id DESC LIMIT $2 OFFSET $3",
		productId, limit, offset)
	if e != nil {
		log.Printf("ListProductReviews[2]: %v", e)
		err = models.ErrServerError
		return
	}
	defer rows.Close()
	for rows.Next() {
		var rev models.Review_db
		if rev, err = scanReview(rows); err != nil {
			log.Printf("ListProductReviews[3]: %v", err)
			err = models.ErrServerError
			return
		}
		reviews = append(reviews, rev)
	}
	if err = rows.Err(); err != nil {
		log.Printf("ListProductReviews[4]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (r *ReviewRepo) GetReviewById(ctx context.Context, id int) (review models.Review_db, exists bool, err error) {
	review, err = scanReview(r.db.QueryRowContext(ctx, reviewSelect+"WHERE r.id = $1", id))
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return
		}
		log.Printf("GetReviewById: %v", err)
		err = models.ErrServerError
		return
	}
	exists = true
	return
}

// refreshRating recomputes the cached rating and review count of a product.
func refreshRating(ctx context.Context, tx *sql.Tx, productId int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE products SET
		rating = COALESCE((SELECT ROUND(AVG(rating), 1) FROM reviews WHERE product_id = $1), 0),
		review_count = (SELECT COUNT(*) FROM reviews WHERE product_id = $2)
		WHERE id = $3`,
		productId, productId, productId)
	return err
}

func (r *ReviewRepo) CreateReview(ctx context.Context, review models.Review_db) (newId int, err error) {
	tx, e := r.db.BeginTx(ctx, nil)
	if e != nil {
		log.Printf("CreateReview[1]: %v", e)
		err = models.ErrServerError
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if review.CreatedAt.IsZero() {
		review.CreatedAt = now()
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO reviews (product_id, user_id, rating, comment, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, user_id) DO NOTHING RETURNING id`,
		review.ProductId, review.UserId, review.Rating, review.Comment, review.CreatedAt,
	).Scan(&newId)
	if err != nil {
		if err == sql.ErrNoRows {
			err = models.Errorf(models.ErrNotAllowed, "you have already reviewed this product")
			return
		}
		log.Printf("CreateReview[2]: %v", err)
		err = models.ErrServerError
		return
	}

	if err = refreshRating(ctx, tx, review.ProductId); err != nil {
		log.Printf("CreateReview[3]: %v", err)
		err = models.ErrServerError
		return
	}
	if err = tx.Commit(); err != nil {
		log.Printf("CreateReview[4]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (r *ReviewRepo) DeleteReview(ctx context.Context, id int) (err error) {
	tx, e := r.db.BeginTx(ctx, nil)
	if e != nil {
		log.Printf("DeleteReview[1]: %v", e)
		err = models.ErrServerError
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var productId int
	err = tx.QueryRowContext(ctx, "SELECT product_id FROM reviews WHERE id = $1", id).Scan(&productId)
	if err != nil {
		if err == sql.ErrNoRows {
			err = models.Errorf(models.ErrNotFound, "review not found")
			return
		}
		log.Printf("DeleteReview[2]: %v", err)
		err = models.ErrServerError
		return
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM reviews WHERE id = $1", id); err != nil {
		log.Printf("DeleteReview[3]: %v", err)
		err = models.ErrServerError
		return
	}
	if err = refreshRating(ctx, tx, productId); err != nil {
		log.Printf("DeleteReview[4]: %v", err)
		err = models.ErrServerError
		return
	}
	if err = tx.Commit(); err != nil {
		log.Printf("DeleteReview[5]: %v", err)
		err = models.ErrServerError
	}
	return
}

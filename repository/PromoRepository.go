package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	"storefront/models"
)

type PromoRepository interface {
	GetPromoByCode(ctx context.Context, code string) (promo models.PromoCode_db, exists bool, err error)
	GetPromoById(ctx context.Context, id int) (promo models.PromoCode_db, exists bool, err error)
	ListPromoCodes(ctx context.Context) ([]models.PromoCode_db, error)
	CreatePromoCode(ctx context.Context, promo models.PromoCode_db) (newId int, err error)
	UpdatePromoCode(ctx context.Context, promo models.PromoCode_db) (err error)
	DeletePromoCode(ctx context.Context, id int) (err error)
}

type PromoRepo struct {
	db *sql.DB
}

func NewPromoRepository(conn *sql.DB) (PromoRepository, error) {
	if conn == nil {
		return nil, errors.New("conn must be non-nil")
	}
	err := conn.Ping()
	if err != nil {
		return nil, err
	}
	return &PromoRepo{
		db: conn,
	}, nil
}

const promoColumns = "id, code, type, value, min_order_amount, starts_at, expires_at, max_uses, used_count, active, created_at"

func scanPromo(s scanner) (p models.PromoCode_db, err error) {
	err = s.Scan(&p.Id, &p.Code, &p.Type, &p.Value, &p.MinOrderAmount, &p.StartsAt, &p.ExpiresAt,
		&p.MaxUses, &p.UsedCount, &p.Active, &p.CreatedAt)
	return
}

func (p *PromoRepo) getOne(ctx context.Context, where string, arg any) (promo models.PromoCode_db, exists bool, err error) {
	promo, err = scanPromo(p.db.QueryRowContext(ctx, "SELECT "+promoColumns+" FROM promo_codes WHERE "+where, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return
		}
		log.Printf("GetPromo: %v", err)
		err = models.ErrServerError
		return
	}
	exists = true
	return
}

// GetPromoByCode matches codes case-insensitively; codes are stored uppercase.
func (p *PromoRepo) GetPromoByCode(ctx context.Context, code string) (models.PromoCode_db, bool, error) {
	return p.getOne(ctx, "code = $1", strings.ToUpper(strings.TrimSpace(code)))
}

func (p *PromoRepo) GetPromoById(ctx context.Context, id int) (models.PromoCode_db, bool, error) {
	return p.getOne(ctx, "id = $1", id)
}

func (p *PromoRepo) ListPromoCodes(ctx context.Context) (promos []models.PromoCode_db, err error) {
	rows, e := p.db.QueryContext(ctx, "SELECT "+promoColumns+" FROM promo_codes ORDER BY id")
	if e != nil {
		log.Printf("ListPromoCodes[1]: %v", e)
		err = models.ErrServerError
		return
	}
	defer rows.Close()
	for rows.Next() {
		var promo models.PromoCode_db
		if promo, err = scanPromo(rows); err != nil {
			log.Printf("ListPromoCodes[2]: %v", err)
			err = models.ErrServerError
			return
		}
		promos = append(promos, promo)
	}
	if err = rows.Err(); err != nil {
		log.Printf("ListPromoCodes[3]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (p *PromoRepo) CreatePromoCode(ctx context.Context, promo models.PromoCode_db) (newId int, err error) {
	if promo.CreatedAt.IsZero() {
		promo.CreatedAt = now()
	}
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO promo_codes (code, type, value, min_order_amount, starts_at, expires_at, max_uses, used_count, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		strings.ToUpper(promo.Code), promo.Type, promo.Value, promo.MinOrderAmount, promo.StartsAt, promo.ExpiresAt,
		promo.MaxUses, promo.UsedCount, promo.Active, promo.CreatedAt,
	).Scan(&newId)
	if err != nil {
		log.Printf("CreatePromoCode: %v", err)
		err = models.ErrServerError
	}
	return
}

func (p *PromoRepo) UpdatePromoCode(ctx context.Context, promo models.PromoCode_db) (err error) {
	res, e := p.db.ExecContext(ctx,
		`UPDATE promo_codes SET code = $1, type = $2, value = $3, min_order_amount = $4, starts_at = $5,
		expires_at = $6, max_uses = $7, active = $8 WHERE id = $9`,
		strings.ToUpper(promo.Code), promo.Type, promo.Value, promo.MinOrderAmount, promo.StartsAt,
		promo.ExpiresAt, promo.MaxUses, promo.Active, promo.Id)
	if e != nil {
		log.Printf("UpdatePromoCode: %v", e)
		err = models.ErrServerError
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = models.Errorf(models.ErrNotFound, "promo code not found")
	}
	return
}

func (p *PromoRepo) DeletePromoCode(ctx context.Context, id int) (err error) {
	res, e := p.db.ExecContext(ctx, "DELETE FROM promo_codes WHERE id = $1", id)
	if e != nil {
		log.Printf("DeletePromoCode: %v", e)
		err = models.ErrServerError
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = models.Errorf(models.ErrNotFound, "promo code not found")
	}
	return
}

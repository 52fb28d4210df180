package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"storefront/entities"
	"storefront/models"
	"storefront/pricing"
	"storefront/repository"

	"github.com/shopspring/decimal"
)

type PromoService struct {
	pr  repository.PromoRepository
	now func() time.Time
}

func NewPromoService(promoRepo repository.PromoRepository) PromoService {
	return PromoService{
		pr:  promoRepo,
		now: time.Now,
	}
}

// Resolve finds a code and checks that it can be applied to an order with the
// given subtotal.
func (ps *PromoService) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (promo models.PromoCode_db, err error) {
	promo, ex, err := ps.pr.GetPromoByCode(ctx, code)
	if err != nil {
		return
	}
	if !ex {
		err = models.Errorf(models.ErrNotFound, "promo code not found")
		return
	}
	now := ps.now().UTC()
	switch {
	case !promo.Active:
		err = models.Errorf(models.ErrBadRequest, "promo code is not active")
	case promo.StartsAt.Valid && now.Before(promo.StartsAt.Time):
		err = models.Errorf(models.ErrBadRequest, "promo code is not active yet")
	case promo.ExpiresAt.Valid && !now.Before(promo.ExpiresAt.Time):
		err = models.Errorf(models.ErrBadRequest, "promo code has expired")
	case promo.MaxUses.Valid && int64(promo.UsedCount) >= promo.MaxUses.Int64:
		err = models.Errorf(models.ErrBadRequest, "promo code usage limit reached")
	case promo.MinOrderAmount.Valid && subtotal.LessThan(promo.MinOrderAmount.Decimal):
		err = models.Errorf(models.ErrBadRequest, "order subtotal must be at least %s to use this code", promo.MinOrderAmount.Decimal.StringFixed(2))
	}
	return
}

func asPricingPromo(p models.PromoCode_db) *pricing.Promo {
	return &pricing.Promo{
		Code:  p.Code,
		Type:  pricing.DiscountType(p.Type),
		Value: p.Value,
	}
}

func (ps *PromoService) Validate(ctx context.Context, req models.PromoValidateRequest) (res entities.PromoValidation, err error) {
	if err = validate(req); err != nil {
		return
	}
	if req.Subtotal.IsNegative() {
		err = models.Errorf(models.ErrBadRequest, "subtotal must not be negative")
		return
	}
	promo, err := ps.Resolve(ctx, req.Code, req.Subtotal)
	if err != nil {
		return
	}
	res = entities.PromoValidation{
		Code:         promo.Code,
		Type:         promo.Type,
		Value:        promo.Value,
		Discount:     pricing.Discount(req.Subtotal, *asPricingPromo(promo)),
		FreeShipping: promo.Type == string(pricing.FreeShipping),
	}
	return
}

func (ps *PromoService) ListPromoCodes(ctx context.Context) (promos []entities.PromoCode, err error) {
	list, err := ps.pr.ListPromoCodes(ctx)
	if err != nil {
		return
	}
	promos = make([]entities.PromoCode, 0, len(list))
	for _, p := range list {
		promos = append(promos, toPromoCode(p))
	}
	return
}

func (ps *PromoService) buildPromo(ctx context.Context, req models.PromoCodeRequest) (promo models.PromoCode_db, err error) {
	if err = validate(req); err != nil {
		return
	}
	promo = models.PromoCode_db{
		Id:             req.Id,
		Code:           strings.ToUpper(req.Code),
		Type:           req.Type,
		Value:          req.Value,
		MinOrderAmount: req.MinOrderAmount,
		Active:         true,
	}
	switch pricing.DiscountType(req.Type) {
	case pricing.Percentage:
		if !req.Value.IsPositive() || req.Value.GreaterThan(decimal.NewFromInt(100)) {
			err = models.Errorf(models.ErrBadRequest, "percentage value must be between 0 and 100")
			return
		}
	case pricing.Fixed:
		if !req.Value.IsPositive() {
			err = models.Errorf(models.ErrBadRequest, "fixed value must be greater than zero")
			return
		}
	case pricing.FreeShipping:
		promo.Value = decimal.Zero
	}
	if req.MinOrderAmount.Valid && req.MinOrderAmount.Decimal.IsNegative() {
		err = models.Errorf(models.ErrBadRequest, "minOrderAmount must not be negative")
		return
	}
	if req.StartsAt != nil {
		promo.StartsAt = sql.NullTime{Time: req.StartsAt.UTC(), Valid: true}
	}
	if req.ExpiresAt != nil {
		promo.ExpiresAt = sql.NullTime{Time: req.ExpiresAt.UTC(), Valid: true}
	}
	if promo.StartsAt.Valid && promo.ExpiresAt.Valid && !promo.ExpiresAt.Time.After(promo.StartsAt.Time) {
		err = models.Errorf(models.ErrBadRequest, "expiresAt must be after startsAt")
		return
	}
	if req.MaxUses != nil {
		promo.MaxUses = sql.NullInt64{Int64: int64(*req.MaxUses), Valid: true}
	}
	if req.Active != nil {
		promo.Active = *req.Active
	}

	other, ex, e := ps.pr.GetPromoByCode(ctx, promo.Code)
	if e != nil {
		err = e
		return
	}
	if ex && other.Id != req.Id {
		err = models.Errorf(models.ErrNotAllowed, "promo code %s already exists", promo.Code)
	}
	return
}

func (ps *PromoService) CreatePromoCode(ctx context.Context, req models.PromoCodeRequest) (res entities.PromoCode, err error) {
	req.Id = 0
	promo, err := ps.buildPromo(ctx, req)
	if err != nil {
		return
	}
	promo.Id, err = ps.pr.CreatePromoCode(ctx, promo)
	if err != nil {
		return
	}
	res = toPromoCode(promo)
	return
}

func (ps *PromoService) UpdatePromoCode(ctx context.Context, req models.PromoCodeRequest) (res entities.PromoCode, err error) {
	promo, err := ps.buildPromo(ctx, req)
	if err != nil {
		return
	}
	if err = ps.pr.UpdatePromoCode(ctx, promo); err != nil {
		return
	}
	promo, _, err = ps.pr.GetPromoById(ctx, req.Id)
	res = toPromoCode(promo)
	return
}

func (ps *PromoService) DeletePromoCode(ctx context.Context, id int) (err error) {
	err = ps.pr.DeletePromoCode(ctx, id)
	return
}

package services

import (
	"storefront/entities"
	"storefront/models"
	"storefront/pricing"
)

func toUser(u models.User_db) entities.User {
	return entities.User{
		Id:        u.Id,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func toCategory(c models.Category_db) entities.Category {
	return entities.Category{
		Id:           c.Id,
		Name:         c.Name,
		Slug:         c.Slug,
		DisplayOrder: c.DisplayOrder,
		ProductCount: c.ProductCount,
	}
}

func toProduct(p models.Product_db) entities.Product {
	pEnt := entities.Product{
		Id:          p.Id,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price,
		OldPrice:    p.OldPrice,
		Discount:    p.Discount,
		Stock:       p.Stock,
		InStock:     p.Stock > 0,
		Images:      p.Images,
		Rating:      p.Rating,
		ReviewCount: p.ReviewCount,
		IsNew:       p.IsNew,
		IsFeatured:  p.IsFeatured,
		CreatedAt:   p.CreatedAt,
	}
	if pEnt.Images == nil {
		pEnt.Images = []string{}
	}
	if p.CategoryId.Valid {
		pEnt.Category = &entities.Category{
			Id:   int(p.CategoryId.Int64),
			Name: p.CategoryName.String,
			Slug: p.CategorySlug.String,
		}
	}
	return pEnt
}

func toProducts(prods []models.Product_db) []entities.Product {
	res := make([]entities.Product, 0, len(prods))
	for _, p := range prods {
		res = append(res, toProduct(p))
	}
	return res
}

func toOrder(o models.Order_db, items []models.OrderItem_db) entities.Order {
	ord := entities.Order{
		Id:              o.Id,
		Number:          o.Number,
		UserId:          o.UserId,
		Status:          o.Status,
		Items:           make([]entities.OrderItem, 0, len(items)),
		Subtotal:        o.Subtotal,
		Shipping:        o.Shipping,
		Discount:        o.Discount,
		Total:           o.Total,
		PromoCode:       o.PromoCode.String,
		ShippingAddress: o.Address,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range items {
		ord.Items = append(ord.Items, entities.OrderItem{
			ProductId: it.ProductId,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			LineTotal: pricing.LineTotal(pricing.Item{ProductID: it.ProductId, Price: it.Price, Quantity: it.Quantity}),
		})
	}
	return ord
}

func toPromoCode(p models.PromoCode_db) entities.PromoCode {
	promo := entities.PromoCode{
		Id:             p.Id,
		Code:           p.Code,
		Type:           p.Type,
		Value:          p.Value,
		MinOrderAmount: p.MinOrderAmount,
		UsedCount:      p.UsedCount,
		Active:         p.Active,
	}
	if p.StartsAt.Valid {
		t := p.StartsAt.Time
		promo.StartsAt = &t
	}
	if p.ExpiresAt.Valid {
		t := p.ExpiresAt.Time
		promo.ExpiresAt = &t
	}
	if p.MaxUses.Valid {
		n := int(p.MaxUses.Int64)
		promo.MaxUses = &n
	}
	return promo
}

func toReview(r models.Review_db) entities.Review {
	return entities.Review{
		Id:         r.Id,
		ProductId:  r.ProductId,
		UserId:     r.UserId,
		AuthorName: r.AuthorName,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}

// pageBounds normalises page/limit query values.
func pageBounds(page, limit, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return page, limit
}

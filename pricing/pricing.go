// Package pricing computes checkout totals for a list of cart lines.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	Percentage   DiscountType = "percentage"
	Fixed        DiscountType = "fixed"
	FreeShipping DiscountType = "free_shipping"
)

func (t DiscountType) Valid() bool {
	switch t {
	case Percentage, Fixed, FreeShipping:
		return true
	}
	return false
}

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

var hundred = decimal.NewFromInt(100)

type Item struct {
	ProductID int
	Price     decimal.Decimal
	Quantity  int
}

type Promo struct {
	Code  string
	Type  DiscountType
	Value decimal.Decimal
}

type Breakdown struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Shipping     decimal.Decimal `json:"shipping"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	FreeShipping bool            `json:"freeShipping"`
}

// Validate rejects lines with a quantity below one.
func Validate(items []Item) error {
	for _, it := range items {
		if it.Quantity < 1 {
			return fmt.Errorf("product %d: %w", it.ProductID, ErrInvalidQuantity)
		}
	}
	return nil
}

func LineTotal(it Item) decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(LineTotal(it))
	}
	return sum
}

// Discount returns the amount a promo takes off the subtotal. Percentage codes
// round down to whole units, fixed codes never exceed the subtotal and
// free-shipping codes discount nothing here.
func Discount(subtotal decimal.Decimal, promo Promo) decimal.Decimal {
	if !subtotal.IsPositive() || promo.Value.IsNegative() {
		return decimal.Zero
	}
	switch promo.Type {
	case Percentage:
		pct := decimal.Min(promo.Value, hundred)
		return subtotal.Mul(pct).Div(hundred).Floor()
	case Fixed:
		return decimal.Min(promo.Value, subtotal)
	}
	return decimal.Zero
}

// Quote prices a cart. The flat shipping fee applies to non-empty carts unless
// the promo waives it. The total never goes below zero.
func Quote(items []Item, shippingFee decimal.Decimal, promo *Promo) Breakdown {
	b := Breakdown{
		Subtotal: Subtotal(items),
		Shipping: decimal.Zero,
		Discount: decimal.Zero,
	}
	if len(items) > 0 {
		b.Shipping = shippingFee
	}
	if promo != nil {
		if promo.Type == FreeShipping {
			b.Shipping = decimal.Zero
			b.FreeShipping = true
		} else {
			b.Discount = Discount(b.Subtotal, *promo)
		}
	}
	b.Total = b.Subtotal.Add(b.Shipping).Sub(b.Discount)
	if b.Total.IsNegative() {
		b.Total = decimal.Zero
	}
	return b
}

package entities

import (
	"time"

	"storefront/models"
	"storefront/pricing"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	Id          int                 `json:"id"`
	Name        string              `json:"name"`
	Slug        string              `json:"slug"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	OldPrice    decimal.NullDecimal `json:"oldPrice"`
	Discount    int                 `json:"discount"`
	Category    *Category           `json:"category,omitempty"`
	Stock       int                 `json:"stock"`
	InStock     bool                `json:"inStock"`
	Images      []string            `json:"images"`
	Rating      float64             `json:"rating"`
	ReviewCount int                 `json:"reviewCount"`
	IsNew       bool                `json:"isNew"`
	IsFeatured  bool                `json:"isFeatured"`
	CreatedAt   time.Time           `json:"createdAt"`
}

type ProductPage struct {
	Items      []Product `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"totalPages"`
}

type Category struct {
	Id           int    `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	DisplayOrder int    `json:"displayOrder"`
	ProductCount int    `json:"productCount"`
}

type User struct {
	Id        int       `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserPage struct {
	Items      []User `json:"items"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"totalPages"`
}

type AuthResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         User      `json:"user"`
}

type OrderItem struct {
	ProductId int             `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type Order struct {
	Id              int                    `json:"id"`
	Number          string                 `json:"number"`
	UserId          int                    `json:"userId"`
	Status          string                 `json:"status"`
	Items           []OrderItem            `json:"items"`
	Subtotal        decimal.Decimal        `json:"subtotal"`
	Shipping        decimal.Decimal        `json:"shipping"`
	Discount        decimal.Decimal        `json:"discount"`
	Total           decimal.Decimal        `json:"total"`
	PromoCode       string                 `json:"promoCode,omitempty"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

type OrderPage struct {
	Items      []Order `json:"items"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
}

// OrderEvent is pushed to admin feed subscribers.
type OrderEvent struct {
	Type  string `json:"type"` // "order.created" or "order.status"
	Order Order  `json:"order"`
}

type Quote struct {
	pricing.Breakdown
	Items     []OrderItem `json:"items"`
	PromoCode string      `json:"promoCode,omitempty"`
}

type PromoCode struct {
	Id             int                 `json:"id"`
	Code           string              `json:"code"`
	Type           string              `json:"type"`
	Value          decimal.Decimal     `json:"value"`
	MinOrderAmount decimal.NullDecimal `json:"minOrderAmount"`
	StartsAt       *time.Time          `json:"startsAt"`
	ExpiresAt      *time.Time          `json:"expiresAt"`
	MaxUses        *int                `json:"maxUses"`
	UsedCount      int                 `json:"usedCount"`
	Active         bool                `json:"active"`
}

type PromoValidation struct {
	Code         string          `json:"code"`
	Type         string          `json:"type"`
	Value        decimal.Decimal `json:"value"`
	Discount     decimal.Decimal `json:"discount"`
	FreeShipping bool            `json:"freeShipping"`
}

type Review struct {
	Id         int       `json:"id"`
	ProductId  int       `json:"productId"`
	UserId     int       `json:"userId"`
	AuthorName string    `json:"authorName"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ReviewPage struct {
	Items      []Review `json:"items"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"totalPages"`
}

type Stats struct {
	Products      int             `json:"products"`
	Categories    int             `json:"categories"`
	Users         int             `json:"users"`
	Orders        int             `json:"orders"`
	PendingOrders int             `json:"pendingOrders"`
	Revenue       decimal.Decimal `json:"revenue"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// TotalPages is the page count for total rows split into pages of limit.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

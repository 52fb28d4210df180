package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentCard           = "card"
	PaymentCashOnDelivery = "cash_on_delivery"
)

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type PasswordData struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type ProfileRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

type ProductRequest struct {
	Id          int                 `json:"-"`
	Name        string              `json:"name" validate:"required,min=2,max=120"`
	Slug        string              `json:"slug" validate:"omitempty,max=140"`
	Description string              `json:"description" validate:"max=5000"`
	Price       decimal.Decimal     `json:"price"`
	OldPrice    decimal.NullDecimal `json:"oldPrice"`
	Discount    *int                `json:"discount" validate:"omitempty,min=0,max=100"`
	CategoryId  *int                `json:"categoryId"`
	Stock       int                 `json:"stock" validate:"min=0"`
	Images      []string            `json:"images" validate:"omitempty,dive,required"`
	IsNew       bool                `json:"isNew"`
	IsFeatured  bool                `json:"isFeatured"`
}

type CategoryRequest struct {
	Id           int    `json:"-"`
	Name         string `json:"name" validate:"required,min=2,max=80"`
	Slug         string `json:"slug" validate:"omitempty,max=100"`
	DisplayOrder int    `json:"displayOrder"`
}

type PromoCodeRequest struct {
	Id             int                 `json:"-"`
	Code           string              `json:"code" validate:"required,min=3,max=32,alphanum"`
	Type           string              `json:"type" validate:"required,oneof=percentage fixed free_shipping"`
	Value          decimal.Decimal     `json:"value"`
	MinOrderAmount decimal.NullDecimal `json:"minOrderAmount"`
	StartsAt       *time.Time          `json:"startsAt"`
	ExpiresAt      *time.Time          `json:"expiresAt"`
	MaxUses        *int                `json:"maxUses" validate:"omitempty,min=1"`
	Active         *bool               `json:"active"`
}

type PromoValidateRequest struct {
	Code     string          `json:"code" validate:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type OrderItemRequest struct {
	ProductId int `json:"productId" validate:"required,min=1"`
	Quantity  int `json:"quantity" validate:"required,min=1,max=999"`
}

type QuoteRequest struct {
	Items     []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PromoCode string             `json:"promoCode" validate:"omitempty,max=32"`
}

type ShippingAddress struct {
	FullName   string `json:"fullName" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=60"`
}

type OrderRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PromoCode       string             `json:"promoCode" validate:"omitempty,max=32"`
	ShippingAddress ShippingAddress    `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod" validate:"required,oneof=card cash_on_delivery"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

type ReviewRequest struct {
	ProductId int    `json:"productId" validate:"required,min=1"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

type FavoriteRequest struct {
	ProductId int `json:"productId" validate:"required,min=1"`
}

type ProductFilter struct {
	Category string
	Query    string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
	IsNew    *bool
	Featured *bool
	InStock  bool
	Sort     string
	Page     int
	Limit    int
}

type OrderSearchData struct {
	DateStart *time.Time
	DateEnd   *time.Time
	UserId    *int
	Status    *string
	ProdId    *int
	Page      int
	Limit     int
}

type User_db struct {
	Id           int
	Email        string
	PasswordHash string
	Name         string
	Phone        string
	Role         string
	CreatedAt    time.Time
}

type Category_db struct {
	Id           int
	Name         string
	Slug         string
	DisplayOrder int
	ProductCount int
}

type Product_db struct {
	Id           int
	Name         string
	Slug         string
	Description  string
	Price        decimal.Decimal
	OldPrice     decimal.NullDecimal
	Discount     int
	CategoryId   sql.NullInt64
	CategoryName sql.NullString
	CategorySlug sql.NullString
	Stock        int
	Images       []string
	Rating       float64
	ReviewCount  int
	IsNew        bool
	IsFeatured   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PromoCode_db struct {
	Id             int
	Code           string
	Type           string
	Value          decimal.Decimal
	MinOrderAmount decimal.NullDecimal
	StartsAt       sql.NullTime
	ExpiresAt      sql.NullTime
	MaxUses        sql.NullInt64
	UsedCount      int
	Active         bool
	CreatedAt      time.Time
}

type Order_db struct {
	Id            int
	Number        string
	UserId        int
	Status        string
	Subtotal      decimal.Decimal
	Shipping      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	PromoCode     sql.NullString
	Address       ShippingAddress
	PaymentMethod string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem_db struct {
	Id        int
	OrderId   int
	ProductId int
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

type Review_db struct {
	Id         int
	ProductId  int
	UserId     int
	AuthorName string
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"storefront/entities"
	"storefront/models"

	"github.com/shopspring/decimal"
)

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (entities.User, error) {
	var res entities.AuthResponse
	if err := c.send(ctx, http.MethodPost, "/api/auth/register", req, &res, false); err != nil {
		return entities.User{}, err
	}
	return res.User, c.setTokens(res)
}

func (c *Client) Login(ctx context.Context, email, password string) (entities.User, error) {
	var res entities.AuthResponse
	err := c.send(ctx, http.MethodPost, "/api/auth/login", models.Credentials{Email: email, Password: password}, &res, false)
	if err != nil {
		return entities.User{}, err
	}
	return res.User, c.setTokens(res)
}

// Logout revokes the refresh token on the server and forgets local tokens.
// Local tokens are dropped even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	tok, err := c.tokens()
	if err != nil {
		return err
	}
	var callErr error
	if tok.RefreshToken != "" {
		callErr = c.send(ctx, http.MethodPost, "/api/auth/logout", models.RefreshRequest{RefreshToken: tok.RefreshToken}, nil, false)
	}
	if err = c.clearTokens(); err != nil {
		return err
	}
	return callErr
}

func (c *Client) Me(ctx context.Context) (user entities.User, err error) {
	err = c.Do(ctx, http.MethodGet, "/api/auth/me", nil, &user)
	return
}

// ProductQuery mirrors the catalog list filters. Zero values are left out.
type ProductQuery struct {
	Category string
	Query    string
	MinPrice string
	MaxPrice string
	IsNew    *bool
	Featured *bool
	InStock  bool
	Sort     string
	Page     int
	Limit    int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("category", q.Category)
	set("q", q.Query)
	set("minPrice", q.MinPrice)
	set("maxPrice", q.MaxPrice)
	set("sort", q.Sort)
	if q.IsNew != nil {
		v.Set("isNew", strconv.FormatBool(*q.IsNew))
	}
	if q.Featured != nil {
		v.Set("featured", strconv.FormatBool(*q.Featured))
	}
	if q.InStock {
		v.Set("inStock", "true")
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

func (c *Client) Products(ctx context.Context, q ProductQuery) (page entities.ProductPage, err error) {
	err = c.Do(ctx, http.MethodGet, withQuery("/api/products", q.values()), nil, &page)
	return
}

func (c *Client) Product(ctx context.Context, idOrSlug string) (p entities.Product, err error) {
	err = c.Do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(idOrSlug), nil, &p)
	return
}

func (c *Client) RelatedProducts(ctx context.Context, idOrSlug string) (prods []entities.Product, err error) {
	err = c.Do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(idOrSlug)+"/related", nil, &prods)
	return
}

func (c *Client) Categories(ctx context.Context) (cats []entities.Category, err error) {
	err = c.Do(ctx, http.MethodGet, "/api/categories", nil, &cats)
	return
}

func (c *Client) Reviews(ctx context.Context, productId, page int) (res entities.ReviewPage, err error) {
	v := url.Values{"productId": {strconv.Itoa(productId)}}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	err = c.Do(ctx, http.MethodGet, withQuery("/api/reviews", v), nil, &res)
	return
}

func (c *Client) AddReview(ctx context.Context, req models.ReviewRequest) (rev entities.Review, err error) {
	err = c.Do(ctx, http.MethodPost, "/api/reviews", req, &rev)
	return
}

func (c *Client) ValidatePromo(ctx context.Context, code string, subtotal decimal.Decimal) (res entities.PromoValidation, err error) {
	err = c.Do(ctx, http.MethodPost, "/api/promo/validate", models.PromoValidateRequest{Code: code, Subtotal: subtotal}, &res)
	return
}

func (c *Client) Quote(ctx context.Context, req models.QuoteRequest) (q entities.Quote, err error) {
	err = c.Do(ctx, http.MethodPost, "/api/orders/quote", req, &q)
	return
}

func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (o entities.Order, err error) {
	err = c.Do(ctx, http.MethodPost, "/api/orders", req, &o)
	return
}

func (c *Client) Orders(ctx context.Context) (orders []entities.Order, err error) {
	err = c.Do(ctx, http.MethodGet, "/api/orders", nil, &orders)
	return
}

func (c *Client) Order(ctx context.Context, id int) (o entities.Order, err error) {
	err = c.Do(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d", id), nil, &o)
	return
}

func (c *Client) CancelOrder(ctx context.Context, id int) (o entities.Order, err error) {
	err = c.Do(ctx, http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", id), nil, &o)
	return
}

func (c *Client) Favorites(ctx context.Context) (prods []entities.Product, err error) {
	err = c.Do(ctx, http.MethodGet, "/api/favorites", nil, &prods)
	return
}

func (c *Client) AddFavorite(ctx context.Context, productId int) error {
	return c.Do(ctx, http.MethodPost, "/api/favorites", models.FavoriteRequest{ProductId: productId}, nil)
}

func (c *Client) RemoveFavorite(ctx context.Context, productId int) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/api/favorites/%d", productId), nil, nil)
}

// Checkout places an order for everything in the cart. On success the cart is
// emptied and the order is added to the local history.
func (c *Client) Checkout(ctx context.Context, cart *Cart, history *OrderHistory, promoCode string,
	address models.ShippingAddress, paymentMethod string) (entities.Order, error) {
	if cart.Count() == 0 {
		return entities.Order{}, fmt.Errorf("cart is empty")
	}
	order, err := c.PlaceOrder(ctx, models.OrderRequest{
		Items:           cart.OrderItems(),
		PromoCode:       promoCode,
		ShippingAddress: address,
		PaymentMethod:   paymentMethod,
	})
	if err != nil {
		return entities.Order{}, err
	}
	if err = cart.Clear(); err != nil {
		return order, err
	}
	if history != nil {
		err = history.Record(order)
	}
	return order, err
}

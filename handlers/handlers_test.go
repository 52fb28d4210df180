package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/entities"
	"storefront/models"
	"storefront/repository"
	"storefront/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	t      *testing.T
	srv    *httptest.Server
	hub    *Hub
	admin  string
	health map[string]HealthCheck
}

func newTestAPI(t *testing.T, authRate float64, authBurst int) *testAPI {
	t.Helper()
	ctx := context.Background()

	db, err := repository.OpenDB(ctx, "sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Migrate(ctx, db, "sqlite3"))
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	uR, _ := repository.NewUserRepository(db)
	sR, _ := repository.NewSessionRepository(ctx, rdb)
	cacheR, _ := repository.NewCacheRepository(ctx, rdb, time.Minute)
	pR, _ := repository.NewProductRepository(db)
	cR, _ := repository.NewCategoryRepository(db)
	oR, _ := repository.NewOrderRepository(db)
	promoR, _ := repository.NewPromoRepository(db)
	rR, _ := repository.NewReviewRepository(db)
	fR, _ := repository.NewFavoriteRepository(db)

	hub := NewHub()
	us := services.NewUserService(uR, sR, services.NewTokenManager("handler-test-secret", 15*time.Minute), time.Hour)
	promos := services.NewPromoService(promoR)
	created, err := us.EnsureAdmin(ctx, "admin@example.com", "admin-password", "Admin")
	require.NoError(t, err)
	require.True(t, created)

	api := &testAPI{t: t, hub: hub}
	api.health = map[string]HealthCheck{
		"db":    db.PingContext,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	h := NewHandler(HandlerParams{
		UsrService:   us,
		PrdService:   services.NewProductService(pR, cR, cacheR),
		CatsService:  services.NewCategoryService(cR, cacheR),
		PromoService: promos,
		OrdService:   services.NewOrderService(oR, pR, promos, cacheR, decimal.NewFromInt(300), hub),
		RevService:   services.NewReviewService(rR, pR, cacheR),
		FavService:   services.NewFavoriteService(fR, pR),
		AdmService:   services.NewAdminService(pR, cR, uR, oR),
		Feed:         hub,
		HealthChecks: api.health,
		AuthRate:     authRate,
		AuthBurst:    authBurst,
	})
	api.srv = httptest.NewServer(h.Server([]string{"*"}, io.Discard))
	t.Cleanup(api.srv.Close)

	var auth entities.AuthResponse
	api.do("POST", "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "admin-password"}, http.StatusOK, &auth)
	api.admin = auth.AccessToken
	return api
}

// do sends a JSON request and checks the status code. out may be nil.
func (a *testAPI) do(method, path, token string, body any, wantStatus int, out any) *http.Response {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	require.Equal(a.t, wantStatus, resp.StatusCode, "%s %s: %s", method, path, data)
	if out != nil {
		require.NoError(a.t, json.Unmarshal(data, out), string(data))
	}
	return resp
}

func (a *testAPI) register(email string) entities.AuthResponse {
	var res entities.AuthResponse
	a.do("POST", "/api/auth/register", "", map[string]string{"email": email, "password": "password123", "name": "Shopper"}, http.StatusCreated, &res)
	return res
}

func (a *testAPI) product(name string, price, stock int) entities.Product {
	var p entities.Product
	a.do("POST", "/api/admin/products", a.admin, map[string]any{"name": name, "price": price, "stock": stock}, http.StatusCreated, &p)
	return p
}

func address() map[string]string {
	return map[string]string{
		"fullName": "Ann Lee", "phone": "+100", "line1": "1 Main St", "city": "Town", "postalCode": "100", "country": "XX",
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, 0, 0)
	var body map[string]string
	api.do("GET", "/health", "", nil, http.StatusOK, &body)
	assert.Equal(t, "ok", body["status"])

	api.health["redis"] = func(context.Context) error { return errors.New("down") }
	api.do("GET", "/health", "", nil, http.StatusServiceUnavailable, &body)
	assert.Equal(t, "redis", body["failing"])
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t, 0, 0)
	var msg entities.MessageResponse

	res := api.register("shopper@example.com")
	assert.Equal(t, models.RoleUser, res.User.Role)

	api.do("POST", "/api/auth/register", "", map[string]string{"email": "shopper@example.com", "password": "password123", "name": "Again"}, http.StatusConflict, &msg)
	assert.Equal(t, "email is already registered", msg.Message)
	api.do("POST", "/api/auth/register", "", map[string]string{"email": "not-an-email", "password": "password123", "name": "Bad"}, http.StatusBadRequest, &msg)
	assert.Equal(t, "email must be a valid email", msg.Message)
	api.do("POST", "/api/auth/login", "", map[string]string{"email": "shopper@example.com", "password": "nope"}, http.StatusUnauthorized, &msg)
	assert.Equal(t, "invalid email or password", msg.Message)

	api.do("GET", "/api/auth/me", "", nil, http.StatusUnauthorized, nil)
	api.do("GET", "/api/auth/me", "garbage", nil, http.StatusUnauthorized, nil)
	var me entities.User
	api.do("GET", "/api/auth/me", res.AccessToken, nil, http.StatusOK, &me)
	assert.Equal(t, "shopper@example.com", me.Email)

	api.do("PUT", "/api/auth/me", res.AccessToken, map[string]string{"name": "Ann", "phone": "+1"}, http.StatusOK, &me)
	assert.Equal(t, "Ann", me.Name)

	var refreshed entities.AuthResponse
	api.do("POST", "/api/auth/refresh", "", map[string]string{"refreshToken": res.RefreshToken}, http.StatusOK, &refreshed)
	api.do("POST", "/api/auth/refresh", "", map[string]string{"refreshToken": res.RefreshToken}, http.StatusUnauthorized, nil)
	api.do("POST", "/api/auth/logout", "", map[string]string{"refreshToken": refreshed.RefreshToken}, http.StatusNoContent, nil)
	api.do("POST", "/api/auth/refresh", "", map[string]string{"refreshToken": refreshed.RefreshToken}, http.StatusUnauthorized, nil)

	api.do("GET", "/api/admin/stats", res.AccessToken, nil, http.StatusForbidden, &msg)
	assert.Equal(t, "admin access required", msg.Message)
	var stats entities.Stats
	api.do("GET", "/api/admin/stats", api.admin, nil, http.StatusOK, &stats)
	assert.Equal(t, 2, stats.Users)

	var users entities.UserPage
	api.do("GET", "/api/admin/users?page=1&limit=1", api.admin, nil, http.StatusOK, &users)
	assert.Equal(t, 2, users.Total)
	assert.Len(t, users.Items, 1)
	api.do("GET", "/api/admin/users?page=abc", api.admin, nil, http.StatusBadRequest, &msg)
	assert.Equal(t, "page must be a number", msg.Message)
	api.do("GET", "/api/admin/users?limit=ten", api.admin, nil, http.StatusBadRequest, &msg)
	assert.Equal(t, "limit must be a number", msg.Message)
}

func TestQueryTokenOnlyOnFeed(t *testing.T) {
	api := newTestAPI(t, 0, 0)
	buyer := api.register("buyer@example.com")

	api.do("GET", "/api/auth/me?token="+buyer.AccessToken, "", nil, http.StatusUnauthorized, nil)
	api.do("GET", "/api/orders?access_token="+buyer.AccessToken, "", nil, http.StatusUnauthorized, nil)
	api.do("GET", "/api/admin/stats?token="+api.admin, "", nil, http.StatusUnauthorized, nil)
	// the header still works when a query token rides along
	api.do("GET", "/api/auth/me?token=junk", buyer.AccessToken, nil, http.StatusOK, nil)
}

func TestAccessLogOmitsQueryToken(t *testing.T) {
	var logs bytes.Buffer
	rec := httptest.NewRecorder()
	(&Handler{}).Server([]string{"*"}, &logs).ServeHTTP(rec, httptest.NewRequest("GET", "/api/auth/me?access_token=secret-value&lang=en", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	line := logs.String()
	assert.Contains(t, line, "/api/auth/me?lang=en")
	assert.NotContains(t, line, "secret-value")
	assert.NotContains(t, line, "access_token")
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, 0.001, 2)
	creds := map[string]string{"email": "x@example.com", "password": "whatever"}
	// the admin login in newTestAPI used one token
	api.do("POST", "/api/auth/login", "", creds, http.StatusUnauthorized, nil)
	var msg entities.MessageResponse
	resp := api.do("POST", "/api/auth/login", "", creds, http.StatusTooManyRequests, &msg)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.NotEmpty(t, msg.Message)

	// other routes are not limited
	api.do("GET", "/api/products", "", nil, http.StatusOK, nil)
}

func TestCatalogRoutes(t *testing.T) {
	api := newTestAPI(t, 0, 0)

	var cat entities.Category
	api.do("POST", "/api/admin/categories", api.admin, map[string]any{"name": "Kites", "displayOrder": 1}, http.StatusCreated, &cat)
	assert.Equal(t, "kites", cat.Slug)

	var kite entities.Product
	api.do("POST", "/api/admin/products", api.admin, map[string]any{
		"name": "Box Kite", "price": 1500, "oldPrice": 2000, "categoryId": cat.Id, "stock": 3, "images": []string{"/a.jpg"},
	}, http.StatusCreated, &kite)
	assert.Equal(t, 25, kite.Discount)
	api.product("Delta Kite", 900, 0)

	var page entities.ProductPage
	api.do("GET", "/api/products?category=kites", "", nil, http.StatusOK, &page)
	assert.Equal(t, 1, page.Total)
	api.do("GET", "/api/products?sort=price_asc&limit=1&page=2", "", nil, http.StatusOK, &page)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "box-kite", page.Items[0].Slug)
	api.do("GET", "/api/products?inStock=true&q=KITE", "", nil, http.StatusOK, &page)
	assert.Equal(t, 1, page.Total)
	api.do("GET", "/api/products?page=9", "", nil, http.StatusOK, &page)
	assert.Empty(t, page.Items)

	api.do("GET", "/api/products?minPrice=abc", "", nil, http.StatusBadRequest, nil)
	api.do("GET", "/api/products?isNew=maybe", "", nil, http.StatusBadRequest, nil)

	var got entities.Product
	api.do("GET", "/api/products/box-kite", "", nil, http.StatusOK, &got)
	assert.Equal(t, kite.Id, got.Id)
	api.do("GET", fmt.Sprintf("/api/products/%d", kite.Id), "", nil, http.StatusOK, &got)
	assert.Equal(t, "box-kite", got.Slug)
	api.do("GET", "/api/products/nope", "", nil, http.StatusNotFound, nil)

	var cats []entities.Category
	api.do("GET", "/api/categories", "", nil, http.StatusOK, &cats)
	require.Len(t, cats, 1)
	assert.Equal(t, 1, cats[0].ProductCount)
	api.do("DELETE", fmt.Sprintf("/api/admin/categories/%d", cat.Id), api.admin, nil, http.StatusConflict, nil)

	var updated entities.Product
	api.do("PUT", fmt.Sprintf("/api/admin/products/%d", kite.Id), api.admin, map[string]any{
		"name": "Box Kite", "slug": "box-kite", "price": 1200, "stock": 3,
	}, http.StatusOK, &updated)
	assert.Nil(t, updated.Category)
	assert.True(t, decimal.NewFromInt(1200).Equal(updated.Price), updated.Price.String())

	resp, err := api.srv.Client().Do(mustRequest(t, "GET", api.srv.URL+"/api/admin/products/export", api.admin))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "products.xlsx")
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, bytes.HasPrefix(body, []byte("PK")))

	api.do("GET", "/api/unknown", "", nil, http.StatusNotFound, nil)
}

func mustRequest(t *testing.T, method, url, token string) *http.Request {
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestCheckoutRoutes(t *testing.T) {
	api := newTestAPI(t, 0, 0)
	buyer := api.register("buyer@example.com")
	other := api.register("other@example.com")
	kite := api.product("Kite", 1500, 2)

	api.do("POST", "/api/admin/promo-codes", api.admin, map[string]any{"code": "save10", "type": "percentage", "value": 10}, http.StatusCreated, nil)

	var v entities.PromoValidation
	api.do("POST", "/api/promo/validate", "", map[string]any{"code": "SAVE10", "subtotal": 1999}, http.StatusOK, &v)
	assert.True(t, v.Discount.Equal(decimal.NewFromInt(199)))
	api.do("POST", "/api/promo/validate", "", map[string]any{"code": "missing", "subtotal": 10}, http.StatusNotFound, nil)

	items := []map[string]int{{"productId": kite.Id, "quantity": 2}}
	var quote entities.Quote
	api.do("POST", "/api/orders/quote", "", map[string]any{"items": items, "promoCode": "save10"}, http.StatusOK, &quote)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(3000)), quote.Total.String())

	api.do("POST", "/api/orders", "", map[string]any{"items": items}, http.StatusUnauthorized, nil)
	var order entities.Order
	api.do("POST", "/api/orders", buyer.AccessToken, map[string]any{
		"items": items, "promoCode": "save10", "shippingAddress": address(), "paymentMethod": "card",
	}, http.StatusCreated, &order)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	var msg entities.MessageResponse
	api.do("POST", "/api/orders", buyer.AccessToken, map[string]any{
		"items": items, "shippingAddress": address(), "paymentMethod": "card",
	}, http.StatusBadRequest, &msg)
	assert.Equal(t, "only 0 of Kite left in stock", msg.Message)

	path := fmt.Sprintf("/api/orders/%d", order.Id)
	statusPath := fmt.Sprintf("/api/admin/orders/%d/status", order.Id)
	api.do("GET", path, other.AccessToken, nil, http.StatusNotFound, nil)
	api.do("GET", path, api.admin, nil, http.StatusOK, nil)
	var mine []entities.Order
	api.do("GET", "/api/orders", buyer.AccessToken, nil, http.StatusOK, &mine)
	require.Len(t, mine, 1)

	api.do("PATCH", statusPath, api.admin, map[string]string{"status": "delivered"}, http.StatusBadRequest, nil)
	api.do("PATCH", statusPath, api.admin, map[string]string{"status": "confirmed"}, http.StatusOK, &order)
	api.do("POST", path+"/cancel", buyer.AccessToken, nil, http.StatusBadRequest, &msg)
	assert.Equal(t, "only pending orders can be cancelled", msg.Message)
	api.do("PATCH", statusPath, api.admin, map[string]string{"status": "cancelled"}, http.StatusOK, &order)

	var got entities.Product
	api.do("GET", fmt.Sprintf("/api/products/%d", kite.Id), "", nil, http.StatusOK, &got)
	assert.Equal(t, 2, got.Stock)

	var found entities.OrderPage
	api.do("GET", "/api/admin/orders?status=cancelled&productId="+fmt.Sprint(kite.Id), api.admin, nil, http.StatusOK, &found)
	assert.Equal(t, 1, found.Total)
	api.do("GET", "/api/admin/orders?from=2030-01-01", api.admin, nil, http.StatusOK, &found)
	assert.Equal(t, 0, found.Total)
	api.do("GET", "/api/admin/orders?from=yesterday", api.admin, nil, http.StatusBadRequest, nil)
}

func TestReviewAndFavoriteRoutes(t *testing.T) {
	api := newTestAPI(t, 0, 0)
	author := api.register("author@example.com")
	other := api.register("other@example.com")
	kite := api.product("Kite", 1500, 2)

	var rev entities.Review
	api.do("POST", "/api/reviews", author.AccessToken, map[string]any{"productId": kite.Id, "rating": 5, "comment": "great"}, http.StatusCreated, &rev)
	api.do("POST", "/api/reviews", author.AccessToken, map[string]any{"productId": kite.Id, "rating": 4}, http.StatusConflict, nil)

	var page entities.ReviewPage
	api.do("GET", fmt.Sprintf("/api/reviews?productId=%d", kite.Id), "", nil, http.StatusOK, &page)
	assert.Equal(t, 1, page.Total)
	api.do("DELETE", fmt.Sprintf("/api/reviews/%d", rev.Id), other.AccessToken, nil, http.StatusForbidden, nil)
	api.do("DELETE", fmt.Sprintf("/api/reviews/%d", rev.Id), author.AccessToken, nil, http.StatusNoContent, nil)

	var favs []entities.Product
	api.do("GET", "/api/favorites", author.AccessToken, nil, http.StatusOK, &favs)
	assert.Empty(t, favs)
	api.do("POST", "/api/favorites", author.AccessToken, map[string]int{"productId": kite.Id}, http.StatusNoContent, nil)
	api.do("POST", "/api/favorites", author.AccessToken, map[string]int{"productId": 999}, http.StatusNotFound, nil)
	api.do("GET", "/api/favorites", author.AccessToken, nil, http.StatusOK, &favs)
	require.Len(t, favs, 1)
	api.do("DELETE", fmt.Sprintf("/api/favorites/%d", kite.Id), author.AccessToken, nil, http.StatusNoContent, nil)
}

func TestOrderFeed(t *testing.T) {
	api := newTestAPI(t, 0, 0)
	buyer := api.register("buyer@example.com")
	kite := api.product("Kite", 1500, 2)

	wsURL := "ws" + strings.TrimPrefix(api.srv.URL, "http") + "/api/admin/orders/feed"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+buyer.AccessToken, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+api.admin, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return api.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	var order entities.Order
	api.do("POST", "/api/orders", buyer.AccessToken, map[string]any{
		"items": []map[string]int{{"productId": kite.Id, "quantity": 1}}, "shippingAddress": address(), "paymentMethod": "cash_on_delivery",
	}, http.StatusCreated, &order)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event entities.OrderEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, services.EventOrderCreated, event.Type)
	assert.Equal(t, order.Number, event.Order.Number)
}

func TestErrorHandleMiddleware(t *testing.T) {
	h := &Handler{}
	rec := httptest.NewRecorder()
	h.ErrorHandleMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "something went wrong")
}

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{models.Errorf(models.ErrBadRequest, "bad thing"), http.StatusBadRequest, "bad thing"},
		{models.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{models.Errorf(models.ErrForbidden, "nope"), http.StatusForbidden, "nope"},
		{models.Errorf(models.ErrNotFound, "gone"), http.StatusNotFound, "gone"},
		{models.Errorf(models.ErrNotAllowed, "taken"), http.StatusConflict, "taken"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "server error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteErrorResponse(rec, tt.err)
		assert.Equal(t, tt.status, rec.Code)
		var msg entities.MessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
		assert.Equal(t, tt.msg, msg.Message)
	}
}

package services

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/entities"
	"storefront/models"
	"storefront/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []entities.OrderEvent
}

func (r *recorder) Publish(e entities.OrderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type env struct {
	users     UserService
	products  ProductService
	cats      CategoryService
	promos    PromoService
	orders    OrderService
	reviews   ReviewService
	favorites FavoriteService
	admin     AdminService
	seed      SeedService
	events    *recorder
	mr        *miniredis.Miniredis

	productRepo repository.ProductRepository
	catRepo     repository.CategoryRepository
	cache       repository.CacheRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	db, err := repository.OpenDB(ctx, "sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Migrate(ctx, db, "sqlite3"))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	uR, err := repository.NewUserRepository(db)
	require.NoError(t, err)
	sR, err := repository.NewSessionRepository(ctx, rdb)
	require.NoError(t, err)
	cacheR, err := repository.NewCacheRepository(ctx, rdb, time.Minute)
	require.NoError(t, err)
	pR, _ := repository.NewProductRepository(db)
	cR, _ := repository.NewCategoryRepository(db)
	oR, _ := repository.NewOrderRepository(db)
	promoR, _ := repository.NewPromoRepository(db)
	rR, _ := repository.NewReviewRepository(db)
	fR, _ := repository.NewFavoriteRepository(db)

	e := &env{events: &recorder{}, mr: mr, productRepo: pR, catRepo: cR, cache: cacheR}
	e.users = NewUserService(uR, sR, NewTokenManager("test-secret-0123456789", 15*time.Minute), time.Hour)
	e.products = NewProductService(pR, cR, cacheR)
	e.cats = NewCategoryService(cR, cacheR)
	e.promos = NewPromoService(promoR)
	e.orders = NewOrderService(oR, pR, e.promos, cacheR, decimal.NewFromInt(300), e.events)
	e.reviews = NewReviewService(rR, pR, cacheR)
	e.favorites = NewFavoriteService(fR, pR)
	e.admin = NewAdminService(pR, cR, uR, oR)
	e.seed = NewSeedService(e.users, e.cats, e.products, e.promos)
	return e
}

func (e *env) product(t *testing.T, name string, price int64, stock int) entities.Product {
	t.Helper()
	p, err := e.products.CreateProduct(context.Background(), models.ProductRequest{
		Name: name, Price: decimal.NewFromInt(price), Stock: stock,
	})
	require.NoError(t, err)
	return p
}

func (e *env) register(t *testing.T, email string) entities.AuthResponse {
	t.Helper()
	res, err := e.users.Register(context.Background(), models.RegisterRequest{Email: email, Password: "password123", Name: "Tester"})
	require.NoError(t, err)
	return res
}

func shipTo() models.ShippingAddress {
	return models.ShippingAddress{FullName: "Ann Lee", Phone: "+100", Line1: "1 Main St", City: "Town", PostalCode: "100", Country: "XX"}
}

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager("test-secret-0123456789", time.Minute)
	token, exp, err := tm.Issue(42, models.RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	id, role, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	assert.Equal(t, models.RoleAdmin, role)

	other := NewTokenManager("another-secret-0123456789", time.Minute)
	_, _, err = other.Parse(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, err = tm.Parse(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Equal(t, "access token expired", models.Message(err))

	_, _, err = tm.Parse("not-a-token")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestUserService_RegisterLoginRefresh(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.register(t, "Shopper@Example.com")
	assert.Equal(t, "shopper@example.com", res.User.Email)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)

	_, err := e.users.Register(ctx, models.RegisterRequest{Email: "shopper@example.com", Password: "password123", Name: "Again"})
	assert.ErrorIs(t, err, models.ErrNotAllowed)

	_, err = e.users.Register(ctx, models.RegisterRequest{Email: "short@example.com", Password: "123", Name: "Short"})
	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.Equal(t, "password must be at least 8 characters", models.Message(err))

	_, err = e.users.Login(ctx, models.Credentials{Email: "shopper@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	login, err := e.users.Login(ctx, models.Credentials{Email: "SHOPPER@example.com", Password: "password123"})
	require.NoError(t, err)

	id, role, err := e.users.Authenticate(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.Id, id)
	assert.Equal(t, models.RoleUser, role)

	refreshed, err := e.users.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = e.users.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	require.NoError(t, e.users.Logout(ctx, refreshed.RefreshToken))
	_, err = e.users.Refresh(ctx, refreshed.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestUserService_RefreshTokenRedeemedOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.register(t, "racer@example.com")

	token := res.RefreshToken
	for round := 0; round < 20; round++ {
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes []entities.AuthResponse
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out, err := e.users.Refresh(ctx, token)
				if err != nil {
					assert.ErrorIs(t, err, models.ErrUnauthorized)
					return
				}
				mu.Lock()
				successes = append(successes, out)
				mu.Unlock()
			}()
		}
		wg.Wait()
		require.Len(t, successes, 1, "round %d", round)
		token = successes[0].RefreshToken
	}
}

func TestUserService_ChangePasswordRevokesSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.register(t, "ann@example.com")

	err := e.users.ChangePassword(ctx, res.User.Id, models.PasswordData{OldPassword: "nope-nope", NewPassword: "new-password"})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	require.NoError(t, e.users.ChangePassword(ctx, res.User.Id, models.PasswordData{OldPassword: "password123", NewPassword: "new-password"}))
	_, err = e.users.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = e.users.Login(ctx, models.Credentials{Email: "ann@example.com", Password: "new-password"})
	assert.NoError(t, err)

	user, err := e.users.UpdateProfile(ctx, res.User.Id, models.ProfileRequest{Name: " Ann Lee ", Phone: "+100"})
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", user.Name)
}

// listHook runs a callback after the product list query returns.
type listHook struct {
	repository.ProductRepository
	after func()
}

func (h *listHook) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product_db, int, error) {
	prods, total, err := h.ProductRepository.ListProducts(ctx, f)
	if h.after != nil {
		h.after()
		h.after = nil
	}
	return prods, total, err
}

func TestProductService_ListSkipsCacheWriteAfterInvalidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	kite := e.product(t, "Kite", 500, 5)
	buyer := e.register(t, "buyer@example.com")

	hook := &listHook{ProductRepository: e.productRepo}
	products := NewProductService(hook, e.catRepo, e.cache)
	hook.after = func() {
		_, err := e.orders.PlaceOrder(ctx, buyer.User.Id, models.OrderRequest{
			Items:           []models.OrderItemRequest{{ProductId: kite.Id, Quantity: 5}},
			ShippingAddress: shipTo(),
			PaymentMethod:   "card",
		})
		require.NoError(t, err)
	}

	page, err := products.ListProducts(ctx, models.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 5, page.Items[0].Stock)

	page, err = products.ListProducts(ctx, models.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 0, page.Items[0].Stock)
	assert.False(t, page.Items[0].InStock)
}

func TestProductService_CreateAndList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cat, err := e.cats.CreateCategory(ctx, models.CategoryRequest{Name: "Board Games"})
	require.NoError(t, err)
	assert.Equal(t, "board-games", cat.Slug)

	first, err := e.products.CreateProduct(ctx, models.ProductRequest{
		Name: "Chess Set", Price: decimal.NewFromInt(750), OldPrice: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
		CategoryId: &cat.Id, Stock: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "chess-set", first.Slug)
	assert.Equal(t, 25, first.Discount)
	require.NotNil(t, first.Category)
	assert.Equal(t, "board-games", first.Category.Slug)
	assert.True(t, first.InStock)

	second, err := e.products.CreateProduct(ctx, models.ProductRequest{Name: "Chess Set", Price: decimal.NewFromInt(500)})
	require.NoError(t, err)
	assert.Equal(t, "chess-set-2", second.Slug)

	missing := 999
	_, err = e.products.CreateProduct(ctx, models.ProductRequest{Name: "Ghost", Price: decimal.NewFromInt(1), CategoryId: &missing})
	assert.ErrorIs(t, err, models.ErrBadRequest)
	_, err = e.products.CreateProduct(ctx, models.ProductRequest{Name: "Free", Price: decimal.Zero})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	page, err := e.products.ListProducts(ctx, models.ProductFilter{Sort: "price_asc"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageLimit, page.Limit)
	assert.Equal(t, "chess-set-2", page.Items[0].Slug)

	// cached page is dropped after a write
	_, err = e.products.UpdateProduct(ctx, models.ProductRequest{Id: second.Id, Name: "Chess Set", Slug: second.Slug, Price: decimal.NewFromInt(900)})
	require.NoError(t, err)
	page, err = e.products.ListProducts(ctx, models.ProductFilter{Sort: "price_asc"})
	require.NoError(t, err)
	assert.Equal(t, "chess-set", page.Items[0].Slug)

	got, err := e.products.GetProduct(ctx, "chess-set")
	require.NoError(t, err)
	assert.Equal(t, first.Id, got.Id)
	_, err = e.products.GetProduct(ctx, "no-such-thing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = e.products.ListProducts(ctx, models.ProductFilter{
		MinPrice: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		MaxPrice: decimal.NewNullDecimal(decimal.NewFromInt(5)),
	})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	err = e.cats.DeleteCategory(ctx, cat.Id)
	assert.ErrorIs(t, err, models.ErrNotAllowed)
}

func TestProductService_Export(t *testing.T) {
	e := newEnv(t)
	e.product(t, "Kite", 1500, 2)

	var buf strings.Builder
	require.NoError(t, e.products.ExportProducts(context.Background(), &buf))
	// xlsx files are zip archives
	assert.True(t, strings.HasPrefix(buf.String(), "PK"))
}

func TestPromoService_Resolve(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)
	off := false
	one := 1

	mk := func(code string, mut func(*models.PromoCodeRequest)) {
		req := models.PromoCodeRequest{Code: code, Type: "percentage", Value: decimal.NewFromInt(10)}
		if mut != nil {
			mut(&req)
		}
		_, err := e.promos.CreatePromoCode(ctx, req)
		require.NoError(t, err)
	}
	mk("GOOD", nil)
	mk("OFF", func(r *models.PromoCodeRequest) { r.Active = &off })
	mk("LATER", func(r *models.PromoCodeRequest) { r.StartsAt = &future })
	mk("OLD", func(r *models.PromoCodeRequest) { r.ExpiresAt = &past })
	mk("BIGONLY", func(r *models.PromoCodeRequest) {
		r.MinOrderAmount = decimal.NewNullDecimal(decimal.NewFromInt(5000))
	})
	mk("ONCE", func(r *models.PromoCodeRequest) { r.MaxUses = &one })

	tests := []struct {
		code string
		kind error
		msg  string
	}{
		{"good", nil, ""},
		{"missing", models.ErrNotFound, "promo code not found"},
		{"off", models.ErrBadRequest, "promo code is not active"},
		{"later", models.ErrBadRequest, "promo code is not active yet"},
		{"old", models.ErrBadRequest, "promo code has expired"},
		{"bigonly", models.ErrBadRequest, "order subtotal must be at least 5000.00 to use this code"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := e.promos.Resolve(ctx, tt.code, decimal.NewFromInt(1000))
			if tt.kind == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.msg, models.Message(err))
		})
	}

	_, err := e.promos.CreatePromoCode(ctx, models.PromoCodeRequest{Code: "good", Type: "fixed", Value: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, models.ErrNotAllowed)
	_, err = e.promos.CreatePromoCode(ctx, models.PromoCodeRequest{Code: "HUGE", Type: "percentage", Value: decimal.NewFromInt(150)})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	v, err := e.promos.Validate(ctx, models.PromoValidateRequest{Code: "Good", Subtotal: decimal.NewFromInt(999)})
	require.NoError(t, err)
	assert.Equal(t, "GOOD", v.Code)
	assert.True(t, v.Discount.Equal(decimal.NewFromInt(99)), v.Discount.String())
	assert.False(t, v.FreeShipping)
}

func TestOrderService_Checkout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.register(t, "buyer@example.com")
	other := e.register(t, "other@example.com")
	kite := e.product(t, "Kite", 1500, 5)
	ball := e.product(t, "Ball", 250, 1)

	_, err := e.promos.CreatePromoCode(ctx, models.PromoCodeRequest{Code: "SHIPFREE", Type: "free_shipping"})
	require.NoError(t, err)

	q, err := e.orders.Quote(ctx, models.QuoteRequest{
		Items: []models.OrderItemRequest{{ProductId: kite.Id, Quantity: 1}, {ProductId: ball.Id, Quantity: 1}, {ProductId: kite.Id, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, q.Items, 2)
	assert.Equal(t, 2, q.Items[0].Quantity)
	assert.True(t, q.Subtotal.Equal(decimal.NewFromInt(3250)))
	assert.True(t, q.Shipping.Equal(decimal.NewFromInt(300)))
	assert.True(t, q.Total.Equal(decimal.NewFromInt(3550)))

	_, err = e.orders.Quote(ctx, models.QuoteRequest{Items: []models.OrderItemRequest{{ProductId: ball.Id, Quantity: 2}}})
	assert.ErrorIs(t, err, models.ErrBadRequest)
	_, err = e.orders.Quote(ctx, models.QuoteRequest{Items: []models.OrderItemRequest{{ProductId: 999, Quantity: 1}}})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	req := models.OrderRequest{
		Items:           []models.OrderItemRequest{{ProductId: kite.Id, Quantity: 2}},
		PromoCode:       "shipfree",
		ShippingAddress: shipTo(),
		PaymentMethod:   models.PaymentCashOnDelivery,
	}
	order, err := e.orders.PlaceOrder(ctx, buyer.User.Id, req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "SHIPFREE", order.PromoCode)
	assert.True(t, order.Shipping.IsZero())
	assert.True(t, order.Total.Equal(decimal.NewFromInt(3000)))
	assert.Len(t, order.Number, 10)
	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].LineTotal.Equal(decimal.NewFromInt(3000)))

	p, err := e.products.GetProduct(ctx, kite.Slug)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	_, err = e.orders.GetOrder(ctx, other.User.Id, models.RoleUser, order.Id)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = e.orders.GetOrder(ctx, other.User.Id, models.RoleAdmin, order.Id)
	assert.NoError(t, err)

	mine, err := e.orders.ListUserOrders(ctx, buyer.User.Id)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	missingAddress := req
	missingAddress.ShippingAddress.City = ""
	_, err = e.orders.PlaceOrder(ctx, buyer.User.Id, missingAddress)
	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.Equal(t, "shippingAddress.city is required", models.Message(err))

	_, err = e.orders.CancelOrder(ctx, other.User.Id, order.Id)
	assert.ErrorIs(t, err, models.ErrNotFound)
	cancelled, err := e.orders.CancelOrder(ctx, buyer.User.Id, order.Id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	p, _ = e.products.GetProduct(ctx, kite.Slug)
	assert.Equal(t, 5, p.Stock)

	_, err = e.orders.CancelOrder(ctx, buyer.User.Id, order.Id)
	assert.ErrorIs(t, err, models.ErrBadRequest)

	e.events.mu.Lock()
	defer e.events.mu.Unlock()
	require.Len(t, e.events.events, 2)
	assert.Equal(t, EventOrderCreated, e.events.events[0].Type)
	assert.Equal(t, EventOrderStatus, e.events.events[1].Type)
}

func TestOrderService_StatusMachine(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.register(t, "buyer@example.com")
	kite := e.product(t, "Kite", 1500, 5)

	order, err := e.orders.PlaceOrder(ctx, buyer.User.Id, models.OrderRequest{
		Items: []models.OrderItemRequest{{ProductId: kite.Id, Quantity: 1}}, ShippingAddress: shipTo(), PaymentMethod: models.PaymentCard,
	})
	require.NoError(t, err)

	steps := []struct {
		to string
		ok bool
	}{
		{models.OrderStatusShipped, false},
		{models.OrderStatusConfirmed, true},
		{models.OrderStatusConfirmed, false},
		{models.OrderStatusShipped, true},
		{models.OrderStatusCancelled, false},
		{models.OrderStatusDelivered, true},
		{models.OrderStatusPending, false},
	}
	for _, s := range steps {
		_, err := e.orders.SetOrderStatus(ctx, order.Id, models.StatusRequest{Status: s.to})
		if s.ok {
			require.NoError(t, err, s.to)
		} else {
			assert.ErrorIs(t, err, models.ErrBadRequest, s.to)
		}
	}

	_, err = e.orders.SetOrderStatus(ctx, order.Id, models.StatusRequest{Status: "lost"})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	delivered := models.OrderStatusDelivered
	page, err := e.orders.SearchOrders(ctx, models.OrderSearchData{Status: &delivered})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.TotalPages)

	stats, err := e.admin.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Products)
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, 1, stats.Orders)
	assert.Equal(t, 0, stats.PendingOrders)
	assert.True(t, stats.Revenue.Equal(decimal.NewFromInt(1800)), stats.Revenue.String())
}

func TestOrderService_CacheOutageIsLogged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	buyer := e.register(t, "buyer@example.com")
	kite := e.product(t, "Kite", 1500, 5)

	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	e.mr.SetError("LOADING redis is loading the dataset")

	order, err := e.orders.PlaceOrder(ctx, buyer.User.Id, models.OrderRequest{
		Items: []models.OrderItemRequest{{ProductId: kite.Id, Quantity: 1}}, ShippingAddress: shipTo(), PaymentMethod: models.PaymentCard,
	})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "PlaceOrder: ")

	_, err = e.orders.CancelOrder(ctx, buyer.User.Id, order.Id)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "changeStatus: ")

	e.mr.SetError("")
	p, err := e.products.GetProduct(ctx, kite.Slug)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.OrderStatusPending, models.OrderStatusCancelled))
	assert.True(t, CanTransition(models.OrderStatusConfirmed, models.OrderStatusCancelled))
	assert.False(t, CanTransition(models.OrderStatusShipped, models.OrderStatusCancelled))
	assert.False(t, CanTransition(models.OrderStatusDelivered, models.OrderStatusShipped))
	assert.False(t, CanTransition(models.OrderStatusCancelled, models.OrderStatusPending))
}

func TestReviewService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	author := e.register(t, "author@example.com")
	other := e.register(t, "other@example.com")
	kite := e.product(t, "Kite", 1500, 5)

	rev, err := e.reviews.CreateReview(ctx, author.User.Id, models.ReviewRequest{ProductId: kite.Id, Rating: 4, Comment: " nice "})
	require.NoError(t, err)
	assert.Equal(t, "nice", rev.Comment)
	assert.Equal(t, "Tester", rev.AuthorName)

	_, err = e.reviews.CreateReview(ctx, author.User.Id, models.ReviewRequest{ProductId: kite.Id, Rating: 5})
	assert.ErrorIs(t, err, models.ErrNotAllowed)
	_, err = e.reviews.CreateReview(ctx, author.User.Id, models.ReviewRequest{ProductId: kite.Id, Rating: 6})
	assert.ErrorIs(t, err, models.ErrBadRequest)
	_, err = e.reviews.CreateReview(ctx, author.User.Id, models.ReviewRequest{ProductId: 999, Rating: 3})
	assert.ErrorIs(t, err, models.ErrNotFound)

	p, _ := e.products.GetProduct(ctx, kite.Slug)
	assert.Equal(t, 1, p.ReviewCount)
	assert.InDelta(t, 4.0, p.Rating, 0.001)

	page, err := e.reviews.ListReviews(ctx, kite.Id, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	err = e.reviews.DeleteReview(ctx, other.User.Id, models.RoleUser, rev.Id)
	assert.ErrorIs(t, err, models.ErrForbidden)
	require.NoError(t, e.reviews.DeleteReview(ctx, other.User.Id, models.RoleAdmin, rev.Id))
	p, _ = e.products.GetProduct(ctx, kite.Slug)
	assert.Equal(t, 0, p.ReviewCount)
}

func TestFavoriteService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.register(t, "fan@example.com")
	kite := e.product(t, "Kite", 1500, 5)

	err := e.favorites.AddFavorite(ctx, user.User.Id, models.FavoriteRequest{ProductId: 999})
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, e.favorites.AddFavorite(ctx, user.User.Id, models.FavoriteRequest{ProductId: kite.Id}))
	require.NoError(t, e.favorites.AddFavorite(ctx, user.User.Id, models.FavoriteRequest{ProductId: kite.Id}))
	favs, err := e.favorites.GetFavorites(ctx, user.User.Id)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, kite.Id, favs[0].Id)

	require.NoError(t, e.favorites.RemoveFavorite(ctx, user.User.Id, kite.Id))
	require.NoError(t, e.favorites.RemoveFavorite(ctx, user.User.Id, kite.Id))
	favs, err = e.favorites.GetFavorites(ctx, user.User.Id)
	require.NoError(t, err)
	assert.Empty(t, favs)
}

const catalogYAML = `
admin:
  email: admin@example.com
  password: admin-password
  name: Admin
categories:
  - name: Outdoor
    slug: outdoor
    displayOrder: 1
products:
  - name: Kite
    slug: kite
    category: outdoor
    price: "1500.00"
    oldPrice: "2000"
    stock: 4
    images: [/img/kite.jpg]
    isNew: true
promoCodes:
  - code: welcome10
    type: percentage
    value: "10"
    maxUses: 100
`

func TestSeedService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cat, err := LoadCatalog(strings.NewReader(catalogYAML))
	require.NoError(t, err)

	res, err := e.seed.Seed(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{AdminCreated: true, Categories: 1, Products: 1, PromoCodes: 1}, res)

	again, err := e.seed.Seed(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{}, again)

	kite, err := e.products.GetProduct(ctx, "kite")
	require.NoError(t, err)
	assert.Equal(t, 25, kite.Discount)
	assert.Equal(t, "outdoor", kite.Category.Slug)

	admin, err := e.users.Login(ctx, models.Credentials{Email: "admin@example.com", Password: "admin-password"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.User.Role)

	_, err = LoadCatalog(strings.NewReader("unknown: 1\n"))
	assert.Error(t, err)
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/entities"
	"storefront/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI accepts access token "new" and trades refresh token "r1" for it.
type fakeAPI struct {
	refreshes atomic.Int32
	rejectAll bool

	mu     sync.Mutex
	bodies []string
	orders int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	if r.URL.Path == "/api/auth/refresh" {
		f.refreshes.Add(1)
		var req models.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if f.rejectAll || req.RefreshToken != "r1" {
			writeJSON(http.StatusUnauthorized, entities.MessageResponse{Message: "invalid refresh token"})
			return
		}
		writeJSON(http.StatusOK, entities.AuthResponse{
			AccessToken:  "new",
			RefreshToken: "r2",
			ExpiresAt:    time.Now().Add(time.Hour),
			User:         entities.User{Id: 7, Email: "buyer@example.com", Role: "user"},
		})
		return
	}
	if r.URL.Path == "/api/auth/login" {
		writeJSON(http.StatusOK, entities.AuthResponse{
			AccessToken:  "new",
			RefreshToken: "r2",
			User:         entities.User{Id: 7, Email: "buyer@example.com", Role: "user"},
		})
		return
	}
	if r.Header.Get("Authorization") != "Bearer new" {
		writeJSON(http.StatusUnauthorized, entities.MessageResponse{Message: "token expired"})
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	switch r.URL.Path {
	case "/api/auth/me":
		writeJSON(http.StatusOK, entities.User{Id: 7, Email: "buyer@example.com"})
	case "/api/orders":
		var req models.OrderRequest
		if err := json.Unmarshal(body, &req); err != nil || len(req.Items) == 0 {
			writeJSON(http.StatusBadRequest, entities.MessageResponse{Message: "items is required"})
			return
		}
		f.mu.Lock()
		f.orders++
		id := f.orders
		f.mu.Unlock()
		items := make([]entities.OrderItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, entities.OrderItem{ProductId: it.ProductId, Quantity: it.Quantity})
		}
		writeJSON(http.StatusCreated, entities.Order{
			Id:     id,
			Number: "ORD-1",
			Status: "pending",
			Items:  items,
			Total:  decimal.NewFromInt(1200),
		})
	case "/api/favorites/3":
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(http.StatusNotFound, entities.MessageResponse{Message: "not found"})
	}
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, *FileStore) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	return New(srv.URL, store, nil), store
}

func signInStale(t *testing.T, store Store) {
	t.Helper()
	require.NoError(t, store.Save(KeyAuth, Tokens{
		AccessToken:  "old",
		RefreshToken: "r1",
		User:         entities.User{Id: 7, Email: "buyer@example.com"},
	}))
}

var testAddress = models.ShippingAddress{
	FullName:   "Buyer",
	Phone:      "+10000000",
	Line1:      "1 Main St",
	City:       "Springfield",
	PostalCode: "12345",
	Country:    "US",
}

func TestDo_RefreshesOnceAndReplaysBody(t *testing.T) {
	api := &fakeAPI{}
	c, store := newTestClient(t, api)
	signInStale(t, store)

	req := models.OrderRequest{
		Items:           []models.OrderItemRequest{{ProductId: 1, Quantity: 2}},
		ShippingAddress: testAddress,
		PaymentMethod:   "card",
	}
	order, err := c.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", order.Number)
	assert.EqualValues(t, 1, api.refreshes.Load())

	want, err := json.Marshal(req)
	require.NoError(t, err)
	require.Len(t, api.bodies, 1)
	assert.JSONEq(t, string(want), api.bodies[0])

	var tok Tokens
	found, err := store.Load(KeyAuth, &tok)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", tok.AccessToken)
	assert.Equal(t, "r2", tok.RefreshToken)

	// the new token is used directly from now on
	_, err = c.Me(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, api.refreshes.Load())
}

func TestDo_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	api := &fakeAPI{}
	c, store := newTestClient(t, api)
	signInStale(t, store)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Me(context.Background())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, api.refreshes.Load())
}

func TestDo_RefreshRejected(t *testing.T) {
	api := &fakeAPI{rejectAll: true}
	c, store := newTestClient(t, api)
	signInStale(t, store)

	_, err := c.Me(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "token expired", apiErr.Message)
	assert.EqualValues(t, 1, api.refreshes.Load())

	found, err := store.Load(KeyAuth, &Tokens{})
	require.NoError(t, err)
	assert.False(t, found)
	_, ok := c.CurrentUser()
	assert.False(t, ok)

	// signed out now, so no second refresh attempt
	_, err = c.Me(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 1, api.refreshes.Load())
}

func TestLoginAndLogout(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newTestClient(t, api)

	user, err := c.Login(context.Background(), "buyer@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, 7, user.Id)
	current, ok := c.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "buyer@example.com", current.Email)

	require.NoError(t, c.RemoveFavorite(context.Background(), 3))

	// the fake has no logout route; local tokens go away regardless
	err = c.Logout(context.Background())
	require.Error(t, err)
	_, ok = c.CurrentUser()
	assert.False(t, ok)
	assert.Zero(t, api.refreshes.Load())
}

func TestCheckout(t *testing.T) {
	api := &fakeAPI{}
	c, store := newTestClient(t, api)
	signInStale(t, store)

	cart, err := OpenCart(store)
	require.NoError(t, err)
	history, err := OpenOrderHistory(store)
	require.NoError(t, err)

	_, err = c.Checkout(context.Background(), cart, history, "", testAddress, "card")
	require.EqualError(t, err, "cart is empty")

	require.NoError(t, cart.Add(CartItem{ProductId: 1, Name: "Ball", Price: decimal.NewFromInt(600), Quantity: 2}))
	order, err := c.Checkout(context.Background(), cart, history, "", testAddress, "card")
	require.NoError(t, err)
	assert.Equal(t, 1, order.Id)
	assert.Zero(t, cart.Count())

	placed := history.Items()
	require.Len(t, placed, 1)
	assert.Equal(t, "ORD-1", placed[0].Number)
	assert.Equal(t, 2, placed[0].Items)

	reopened, err := OpenCart(store)
	require.NoError(t, err)
	assert.Empty(t, reopened.Items())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")
	s := NewFileStore(path)

	var v []int
	found, err := s.Load(KeyFavorites, &v)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(KeyFavorites, []int{1, 2}))
	require.NoError(t, s.Save(KeyCart, []CartItem{{ProductId: 1, Quantity: 1}}))

	other := NewFileStore(path)
	found, err = other.Load(KeyFavorites, &v)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []int{1, 2}, v)

	require.NoError(t, s.Delete(KeyFavorites))
	require.NoError(t, s.Delete(KeyFavorites))
	found, err = other.Load(KeyFavorites, &v)
	require.NoError(t, err)
	assert.False(t, found)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	_, err = s.Load(KeyCart, &v)
	assert.Error(t, err)
}

func TestCart(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	cart, err := OpenCart(store)
	require.NoError(t, err)

	assert.Error(t, cart.Add(CartItem{ProductId: 1, Quantity: 0}))

	p := entities.Product{Id: 1, Name: "Ball", Slug: "ball", Price: decimal.NewFromInt(250), Images: []string{"ball.png"}}
	require.NoError(t, cart.Add(ItemFromProduct(p, 2)))
	require.NoError(t, cart.Add(ItemFromProduct(p, 1)))
	require.NoError(t, cart.Add(CartItem{ProductId: 2, Name: "Kite", Price: decimal.RequireFromString("99.50"), Quantity: 1}))

	items := cart.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "ball.png", items[0].Image)
	assert.Equal(t, 4, cart.Count())
	assert.True(t, decimal.RequireFromString("849.50").Equal(cart.Subtotal()))

	require.NoError(t, cart.SetQuantity(2, 4))
	assert.Error(t, cart.SetQuantity(9, 1))
	require.NoError(t, cart.SetQuantity(1, 0))
	assert.Equal(t, []models.OrderItemRequest{{ProductId: 2, Quantity: 4}}, cart.OrderItems())

	reopened, err := OpenCart(store)
	require.NoError(t, err)
	assert.Equal(t, cart.OrderItems(), reopened.OrderItems())
	assert.True(t, cart.Subtotal().Equal(reopened.Subtotal()))

	require.NoError(t, cart.Remove(2))
	require.NoError(t, cart.Remove(2))
	assert.Zero(t, cart.Count())
	assert.True(t, cart.Subtotal().IsZero())
}

func TestFavorites(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	fav, err := OpenFavorites(store)
	require.NoError(t, err)

	kite := entities.Product{Id: 3, Name: "Kite", Slug: "kite", Price: decimal.NewFromInt(1500), Images: []string{"kite.jpg", "kite-2.jpg"}}
	ball := entities.Product{Id: 5, Name: "Ball", Slug: "ball", Price: decimal.NewFromInt(600)}

	require.NoError(t, fav.Add(FavoriteFromProduct(kite)))
	kite.Price = decimal.NewFromInt(1400)
	require.NoError(t, fav.Add(FavoriteFromProduct(kite)))
	require.Len(t, fav.Items(), 1)
	assert.True(t, decimal.NewFromInt(1400).Equal(fav.Items()[0].Price))
	assert.Equal(t, "kite.jpg", fav.Items()[0].Image)

	on, err := fav.Toggle(FavoriteFromProduct(ball))
	require.NoError(t, err)
	assert.True(t, on)
	on, err = fav.Toggle(FavoriteFromProduct(kite))
	require.NoError(t, err)
	assert.False(t, on)

	reopened, err := OpenFavorites(store)
	require.NoError(t, err)
	items := reopened.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].ProductId)
	assert.Equal(t, "Ball", items[0].Name)
	assert.Equal(t, "ball", items[0].Slug)
	assert.True(t, decimal.NewFromInt(600).Equal(items[0].Price), items[0].Price.String())
	assert.True(t, reopened.Has(5))
	assert.False(t, reopened.Has(3))
}

func TestSearchHistory(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	h, err := OpenSearchHistory(store)
	require.NoError(t, err)

	require.NoError(t, h.Add("  "))
	assert.Empty(t, h.Items())

	require.NoError(t, h.Add("lego"))
	require.NoError(t, h.Add("puzzle"))
	require.NoError(t, h.Add(" LEGO "))
	assert.Equal(t, []string{"LEGO", "puzzle"}, h.Items())

	for _, q := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		require.NoError(t, h.Add(q))
	}
	items := h.Items()
	assert.Len(t, items, maxSearchHistory)
	assert.Equal(t, "j", items[0])
	assert.NotContains(t, items, "LEGO")

	reopened, err := OpenSearchHistory(store)
	require.NoError(t, err)
	assert.Equal(t, items, reopened.Items())

	require.NoError(t, h.Clear())
	assert.Empty(t, h.Items())
}

func TestOrderHistory(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	h, err := OpenOrderHistory(store)
	require.NoError(t, err)

	require.NoError(t, h.Record(entities.Order{Id: 1, Number: "A", Status: "pending"}))
	require.NoError(t, h.Record(entities.Order{Id: 2, Number: "B", Status: "pending"}))
	require.NoError(t, h.Record(entities.Order{Id: 1, Number: "A", Status: "cancelled"}))

	items := h.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Id)
	assert.Equal(t, "cancelled", items[0].Status)
	assert.Equal(t, 2, items[1].Id)
}

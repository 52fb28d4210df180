package client

import (
	"strings"
	"time"

	"storefront/entities"

	"github.com/shopspring/decimal"
)

const maxSearchHistory = 10

// SearchHistory keeps recent catalog queries, newest first.
type SearchHistory struct {
	store   Store
	queries []string
}

func OpenSearchHistory(store Store) (*SearchHistory, error) {
	h := &SearchHistory{store: store}
	if _, err := store.Load(KeySearchHistory, &h.queries); err != nil {
		return nil, err
	}
	return h, nil
}

// Add moves a query to the front. A query that differs only in case from an
// older one replaces it.
func (h *SearchHistory) Add(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	out := make([]string, 0, maxSearchHistory)
	out = append(out, query)
	for _, q := range h.queries {
		if strings.EqualFold(q, query) {
			continue
		}
		if len(out) == maxSearchHistory {
			break
		}
		out = append(out, q)
	}
	h.queries = out
	return h.store.Save(KeySearchHistory, h.queries)
}

func (h *SearchHistory) Items() []string {
	out := make([]string, len(h.queries))
	copy(out, h.queries)
	return out
}

func (h *SearchHistory) Clear() error {
	h.queries = nil
	return h.store.Delete(KeySearchHistory)
}

// PlacedOrder is what the client remembers about an order it submitted.
type PlacedOrder struct {
	Id        int             `json:"id"`
	Number    string          `json:"number"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	Items     int             `json:"items"`
	CreatedAt time.Time       `json:"createdAt"`
}

// OrderHistory lists orders placed from this client, newest first.
type OrderHistory struct {
	store  Store
	orders []PlacedOrder
}

func OpenOrderHistory(store Store) (*OrderHistory, error) {
	h := &OrderHistory{store: store}
	if _, err := store.Load(KeyOrders, &h.orders); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *OrderHistory) Record(o entities.Order) error {
	units := 0
	for _, it := range o.Items {
		units += it.Quantity
	}
	placed := PlacedOrder{
		Id:        o.Id,
		Number:    o.Number,
		Total:     o.Total,
		Status:    o.Status,
		Items:     units,
		CreatedAt: o.CreatedAt,
	}
	out := []PlacedOrder{placed}
	for _, p := range h.orders {
		if p.Id != o.Id {
			out = append(out, p)
		}
	}
	h.orders = out
	return h.store.Save(KeyOrders, h.orders)
}

func (h *OrderHistory) Items() []PlacedOrder {
	out := make([]PlacedOrder, len(h.orders))
	copy(out, h.orders)
	return out
}

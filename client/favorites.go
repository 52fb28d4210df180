package client

import (
	"storefront/entities"

	"github.com/shopspring/decimal"
)

// FavoriteItem is a snapshot of a product taken when it was favorited, so the
// list can be shown without asking the API.
type FavoriteItem struct {
	ProductId int             `json:"productId"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
}

func FavoriteFromProduct(p entities.Product) FavoriteItem {
	item := FavoriteItem{
		ProductId: p.Id,
		Name:      p.Name,
		Slug:      p.Slug,
		Price:     p.Price,
	}
	if len(p.Images) > 0 {
		item.Image = p.Images[0]
	}
	return item
}

// Favorites is the local list of favorite products, one entry per product id,
// in the order they were added.
type Favorites struct {
	store Store
	items []FavoriteItem
}

func OpenFavorites(store Store) (*Favorites, error) {
	f := &Favorites{store: store}
	if _, err := store.Load(KeyFavorites, &f.items); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Favorites) index(productId int) int {
	for i, it := range f.items {
		if it.ProductId == productId {
			return i
		}
	}
	return -1
}

func (f *Favorites) Has(productId int) bool {
	return f.index(productId) >= 0
}

// Add stores the snapshot. A product already in the list keeps its place and
// gets the fresher snapshot.
func (f *Favorites) Add(item FavoriteItem) error {
	if i := f.index(item.ProductId); i >= 0 {
		f.items[i] = item
	} else {
		f.items = append(f.items, item)
	}
	return f.store.Save(KeyFavorites, f.items)
}

func (f *Favorites) Remove(productId int) error {
	i := f.index(productId)
	if i < 0 {
		return nil
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	return f.store.Save(KeyFavorites, f.items)
}

// Toggle flips a product in or out of the list and reports whether it is now
// a favorite.
func (f *Favorites) Toggle(item FavoriteItem) (bool, error) {
	if f.Has(item.ProductId) {
		return false, f.Remove(item.ProductId)
	}
	return true, f.Add(item)
}

func (f *Favorites) Items() []FavoriteItem {
	out := make([]FavoriteItem, len(f.items))
	copy(out, f.items)
	return out
}

package client

import (
	"fmt"

	"storefront/entities"
	"storefront/models"
	"storefront/pricing"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductId int             `json:"productId"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
}

// Cart is the shopper's cart, kept in the local store between runs. Prices
// are the ones seen when the item was added; checkout reprices on the server.
type Cart struct {
	store Store
	items []CartItem
}

func OpenCart(store Store) (*Cart, error) {
	c := &Cart{store: store}
	if _, err := store.Load(KeyCart, &c.items); err != nil {
		return nil, err
	}
	return c, nil
}

// ItemFromProduct builds a cart line for a catalog product.
func ItemFromProduct(p entities.Product, quantity int) CartItem {
	item := CartItem{
		ProductId: p.Id,
		Name:      p.Name,
		Slug:      p.Slug,
		Price:     p.Price,
		Quantity:  quantity,
	}
	if len(p.Images) > 0 {
		item.Image = p.Images[0]
	}
	return item
}

func (c *Cart) save() error {
	if len(c.items) == 0 {
		return c.store.Delete(KeyCart)
	}
	return c.store.Save(KeyCart, c.items)
}

func (c *Cart) index(productId int) int {
	for i, it := range c.items {
		if it.ProductId == productId {
			return i
		}
	}
	return -1
}

// Add puts an item in the cart, adding to the quantity of a line that is
// already there.
func (c *Cart) Add(item CartItem) error {
	if item.Quantity < 1 {
		return fmt.Errorf("product %d: %w", item.ProductId, pricing.ErrInvalidQuantity)
	}
	if i := c.index(item.ProductId); i >= 0 {
		c.items[i].Quantity += item.Quantity
		c.items[i].Price = item.Price
		c.items[i].Name = item.Name
	} else {
		c.items = append(c.items, item)
	}
	return c.save()
}

// SetQuantity changes a line's quantity. A quantity below one removes it.
func (c *Cart) SetQuantity(productId, quantity int) error {
	i := c.index(productId)
	if i < 0 {
		return fmt.Errorf("product %d is not in the cart", productId)
	}
	if quantity < 1 {
		return c.Remove(productId)
	}
	c.items[i].Quantity = quantity
	return c.save()
}

func (c *Cart) Remove(productId int) error {
	i := c.index(productId)
	if i < 0 {
		return nil
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return c.save()
}

func (c *Cart) Clear() error {
	c.items = nil
	return c.save()
}

func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Count is the number of units in the cart.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) Subtotal() decimal.Decimal {
	items := make([]pricing.Item, 0, len(c.items))
	for _, it := range c.items {
		items = append(items, pricing.Item{ProductID: it.ProductId, Price: it.Price, Quantity: it.Quantity})
	}
	return pricing.Subtotal(items)
}

// OrderItems converts the cart into the line list the order endpoints take.
func (c *Cart) OrderItems() []models.OrderItemRequest {
	out := make([]models.OrderItemRequest, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, models.OrderItemRequest{ProductId: it.ProductId, Quantity: it.Quantity})
	}
	return out
}

package services

import (
	"context"
	"database/sql"
	"log"
	"strings"

	"storefront/entities"
	"storefront/models"
	"storefront/pricing"
	"storefront/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderPublisher receives order events after they are committed.
type OrderPublisher interface {
	Publish(event entities.OrderEvent)
}

const (
	EventOrderCreated = "order.created"
	EventOrderStatus  = "order.status"
)

var orderTransitions = map[string][]string{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:   {models.OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type OrderService struct {
	or          repository.OrderRepository
	pr          repository.ProductRepository
	ps          PromoService
	cache       repository.CacheRepository
	shippingFee decimal.Decimal
	pub         OrderPublisher
}

func NewOrderService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository, promoService PromoService,
	cache repository.CacheRepository, shippingFee decimal.Decimal, pub OrderPublisher) OrderService {
	return OrderService{
		or:          orderRepo,
		pr:          productRepo,
		ps:          promoService,
		cache:       cache,
		shippingFee: shippingFee,
		pub:         pub,
	}
}

// priceItems merges repeated products, checks them against the catalog and
// snapshots name and price for every line.
func (ors *OrderService) priceItems(ctx context.Context, req []models.OrderItemRequest) (lines []models.OrderItem_db, items []pricing.Item, err error) {
	qty := make(map[int]int, len(req))
	var ids []int
	for _, it := range req {
		if it.Quantity < 1 {
			err = models.Errorf(models.ErrBadRequest, "quantity of product %d must be at least 1", it.ProductId)
			return
		}
		if _, ok := qty[it.ProductId]; !ok {
			ids = append(ids, it.ProductId)
		}
		qty[it.ProductId] += it.Quantity
	}

	prods, err := ors.pr.GetProductsByIds(ctx, ids)
	if err != nil {
		return
	}
	for _, id := range ids {
		p, ok := prods[id]
		if !ok {
			err = models.Errorf(models.ErrBadRequest, "product %d does not exist", id)
			return
		}
		if p.Stock < qty[id] {
			err = models.Errorf(models.ErrBadRequest, "only %d of %s left in stock", p.Stock, p.Name)
			return
		}
		lines = append(lines, models.OrderItem_db{ProductId: id, Name: p.Name, Price: p.Price, Quantity: qty[id]})
		items = append(items, pricing.Item{ProductID: id, Price: p.Price, Quantity: qty[id]})
	}
	err = pricing.Validate(items)
	return
}

func (ors *OrderService) quote(ctx context.Context, reqItems []models.OrderItemRequest, code string) (lines []models.OrderItem_db, b pricing.Breakdown, promoCode string, err error) {
	lines, items, err := ors.priceItems(ctx, reqItems)
	if err != nil {
		return
	}
	var promo *pricing.Promo
	if code = strings.TrimSpace(code); code != "" {
		p, e := ors.ps.Resolve(ctx, code, pricing.Subtotal(items))
		if e != nil {
			err = e
			return
		}
		promo = asPricingPromo(p)
		promoCode = p.Code
	}
	b = pricing.Quote(items, ors.shippingFee, promo)
	return
}

// Quote prices a prospective order with current catalog prices.
func (ors *OrderService) Quote(ctx context.Context, req models.QuoteRequest) (res entities.Quote, err error) {
	if err = validate(req); err != nil {
		return
	}
	lines, b, code, err := ors.quote(ctx, req.Items, req.PromoCode)
	if err != nil {
		return
	}
	res = entities.Quote{Breakdown: b, PromoCode: code}
	res.Items = toOrder(models.Order_db{}, lines).Items
	return
}

func newOrderNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func (ors *OrderService) PlaceOrder(ctx context.Context, userId int, req models.OrderRequest) (order entities.Order, err error) {
	if err = validate(req); err != nil {
		return
	}
	lines, b, code, err := ors.quote(ctx, req.Items, req.PromoCode)
	if err != nil {
		return
	}
	oModel := models.Order_db{
		Number:        newOrderNumber(),
		UserId:        userId,
		Status:        models.OrderStatusPending,
		Subtotal:      b.Subtotal,
		Shipping:      b.Shipping,
		Discount:      b.Discount,
		Total:         b.Total,
		Address:       req.ShippingAddress,
		PaymentMethod: req.PaymentMethod,
	}
	if code != "" {
		oModel.PromoCode = sql.NullString{String: code, Valid: true}
	}
	orderId, err := ors.or.CreateOrder(ctx, oModel, lines)
	if err != nil {
		return
	}
	if ors.cache != nil {
		// stock changed
		if e := ors.cache.InvalidateProducts(ctx); e != nil {
			log.Printf("PlaceOrder: %v", e)
		}
	}
	order, err = ors.loadOrder(ctx, orderId)
	if err != nil {
		return
	}
	ors.publish(EventOrderCreated, order)
	return
}

func (ors *OrderService) publish(kind string, order entities.Order) {
	if ors.pub == nil {
		return
	}
	ors.pub.Publish(entities.OrderEvent{Type: kind, Order: order})
}

func (ors *OrderService) loadOrder(ctx context.Context, orderId int) (order entities.Order, err error) {
	oModel, ex, err := ors.or.GetOrderById(ctx, orderId)
	if err != nil {
		return
	}
	if !ex {
		err = models.Errorf(models.ErrNotFound, "order not found")
		return
	}
	items, err := ors.or.GetOrderItems(ctx, []int{orderId})
	if err != nil {
		return
	}
	order = toOrder(oModel, items[orderId])
	return
}

func (ors *OrderService) withItems(ctx context.Context, list []models.Order_db) (orders []entities.Order, err error) {
	ids := make([]int, 0, len(list))
	for _, o := range list {
		ids = append(ids, o.Id)
	}
	items, err := ors.or.GetOrderItems(ctx, ids)
	if err != nil {
		return
	}
	orders = make([]entities.Order, 0, len(list))
	for _, o := range list {
		orders = append(orders, toOrder(o, items[o.Id]))
	}
	return
}

// GetOrder returns an order to its owner or to an admin. Other users get a
// not found error.
func (ors *OrderService) GetOrder(ctx context.Context, userId int, role string, orderId int) (order entities.Order, err error) {
	order, err = ors.loadOrder(ctx, orderId)
	if err != nil {
		return
	}
	if role != models.RoleAdmin && order.UserId != userId {
		log.Printf("GetOrder: user %d asked for order %d", userId, orderId)
		order = entities.Order{}
		err = models.Errorf(models.ErrNotFound, "order not found")
	}
	return
}

func (ors *OrderService) ListUserOrders(ctx context.Context, userId int) (orders []entities.Order, err error) {
	list, err := ors.or.ListUserOrders(ctx, userId)
	if err != nil {
		return
	}
	orders, err = ors.withItems(ctx, list)
	return
}

// CancelOrder lets a customer withdraw an order that nobody has confirmed yet.
func (ors *OrderService) CancelOrder(ctx context.Context, userId int, orderId int) (order entities.Order, err error) {
	order, err = ors.GetOrder(ctx, userId, models.RoleUser, orderId)
	if err != nil {
		return
	}
	if order.Status != models.OrderStatusPending {
		err = models.Errorf(models.ErrBadRequest, "only pending orders can be cancelled")
		return
	}
	order, err = ors.changeStatus(ctx, order, models.OrderStatusCancelled)
	return
}

func (ors *OrderService) SetOrderStatus(ctx context.Context, orderId int, req models.StatusRequest) (order entities.Order, err error) {
	if err = validate(req); err != nil {
		return
	}
	order, err = ors.loadOrder(ctx, orderId)
	if err != nil {
		return
	}
	if !CanTransition(order.Status, req.Status) {
		err = models.Errorf(models.ErrBadRequest, "cannot change order status from %s to %s", order.Status, req.Status)
		return
	}
	order, err = ors.changeStatus(ctx, order, req.Status)
	return
}

func (ors *OrderService) changeStatus(ctx context.Context, order entities.Order, to string) (entities.Order, error) {
	if err := ors.or.SetOrderStatus(ctx, order.Id, order.Status, to); err != nil {
		return entities.Order{}, err
	}
	if to == models.OrderStatusCancelled && ors.cache != nil {
		if e := ors.cache.InvalidateProducts(ctx); e != nil {
			log.Printf("changeStatus: %v", e)
		}
	}
	updated, err := ors.loadOrder(ctx, order.Id)
	if err != nil {
		return entities.Order{}, err
	}
	ors.publish(EventOrderStatus, updated)
	return updated, nil
}

func (ors *OrderService) SearchOrders(ctx context.Context, data models.OrderSearchData) (res entities.OrderPage, err error) {
	data.Page, data.Limit = pageBounds(data.Page, data.Limit, 20, MaxPageLimit)
	if data.DateStart != nil && data.DateEnd != nil && data.DateStart.After(*data.DateEnd) {
		err = models.Errorf(models.ErrBadRequest, "from must not be after to")
		return
	}
	list, total, err := ors.or.SearchOrders(ctx, data)
	if err != nil {
		return
	}
	items, err := ors.withItems(ctx, list)
	if err != nil {
		return
	}
	res = entities.OrderPage{
		Items:      items,
		Total:      total,
		Page:       data.Page,
		Limit:      data.Limit,
		TotalPages: entities.TotalPages(total, data.Limit),
	}
	return
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	"storefront/models"

	"github.com/shopspring/decimal"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, order models.Order_db, items []models.OrderItem_db) (orderId int, err error)
	GetOrderById(ctx context.Context, orderId int) (order models.Order_db, exists bool, err error)
	GetOrderItems(ctx context.Context, orderIds []int) (items map[int][]models.OrderItem_db, err error)
	ListUserOrders(ctx context.Context, userId int) (orders []models.Order_db, err error)
	SearchOrders(ctx context.Context, data models.OrderSearchData) (orders []models.Order_db, total int, err error)
	SetOrderStatus(ctx context.Context, orderId int, from, to string) (err error)
	CountOrders(ctx context.Context) (total int, pending int, err error)
	Revenue(ctx context.Context) (decimal.Decimal, error)
}

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepository(conn *sql.DB) (OrderRepository, error) {
	if conn == nil {
		return nil, errors.New("conn must be non-nil")
	}
	err := conn.Ping()
	if err != nil {
		return nil, err
	}
	return &OrderRepo{
		db: conn,
	}, nil
}

const orderColumns = `o.id, o.number, o.user_id, o.status, o.subtotal, o.shipping, o.discount, o.total, o.promo_code,
	o.ship_full_name, o.ship_phone, o.ship_line1, o.ship_line2, o.ship_city, o.ship_postal_code, o.ship_country,
	o.payment_method, o.created_at, o.updated_at`

func scanOrder(s scanner) (o models.Order_db, err error) {
	a := &o.Address
	err = s.Scan(&o.Id, &o.Number, &o.UserId, &o.Status, &o.Subtotal, &o.Shipping, &o.Discount, &o.Total, &o.PromoCode,
		&a.FullName, &a.Phone, &a.Line1, &a.Line2, &a.City, &a.PostalCode, &a.Country,
		&o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt)
	return
}

// CreateOrder reserves stock, counts promo usage and stores the order with its
// items in a single transaction. Nothing is written when any step fails.
func (o *OrderRepo) CreateOrder(ctx context.Context, order models.Order_db, items []models.OrderItem_db) (orderId int, err error) {
	tx, e := o.db.BeginTx(ctx, nil)
	if e != nil {
		log.Printf("CreateOrder[1]: %v", e)
		err = models.ErrServerError
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ts := now()
	for _, it := range items {
		res, e := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1, updated_at = $2 WHERE id = $3 AND stock >= $4",
			it.Quantity, ts, it.ProductId, it.Quantity)
		if e != nil {
			log.Printf("CreateOrder[2]: %v", e)
			err = models.ErrServerError
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			err = models.Errorf(models.ErrBadRequest, "not enough stock for %s", it.Name)
			return
		}
	}

	if order.PromoCode.Valid {
		res, e := tx.ExecContext(ctx,
			"UPDATE promo_codes SET used_count = used_count + 1 WHERE code = $1 AND active = $2 AND (max_uses IS NULL OR used_count < max_uses)",
			order.PromoCode.String, true)
		if e != nil {
			log.Printf("CreateOrder[3]: %v", e)
			err = models.ErrServerError
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			err = models.Errorf(models.ErrBadRequest, "promo code usage limit reached")
			return
		}
	}

	a := order.Address
	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (number, user_id, status, subtotal, shipping, discount, total, promo_code,
		ship_full_name, ship_phone, ship_line1, ship_line2, ship_city, ship_postal_code, ship_country,
		payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18) RETURNING id`,
		order.Number, order.UserId, order.Status, order.Subtotal, order.Shipping, order.Discount, order.Total, order.PromoCode,
		a.FullName, a.Phone, a.Line1, a.Line2, a.City, a.PostalCode, a.Country,
		order.PaymentMethod, ts, ts,
	).Scan(&orderId)
	if err != nil {
		log.Printf("CreateOrder[4]: %v", err)
		err = models.ErrServerError
		return
	}

	for _, it := range items {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, name, price, quantity) VALUES ($1, $2, $3, $4, $5)",
			orderId, it.ProductId, it.Name, it.Price, it.Quantity)
		if err != nil {
			log.Printf("CreateOrder[5]: %v", err)
			err = models.ErrServerError
			return
		}
	}

	if err = tx.Commit(); err != nil {
		log.Printf("CreateOrder[6]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (o *OrderRepo) GetOrderById(ctx context.Context, orderId int) (order models.Order_db, exists bool, err error) {
	order, err = scanOrder(o.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders o WHERE o.id = $1", orderId))
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return
		}
		log.Printf("GetOrderById: %v", err)
		err = models.ErrServerError
		return
	}
	exists = true
	return
}

func (o *OrderRepo) GetOrderItems(ctx context.Context, orderIds []int) (items map[int][]models.OrderItem_db, err error) {
	items = make(map[int][]models.OrderItem_db, len(orderIds))
	if len(orderIds) == 0 {
		return
	}
	in, params := buildQueryFromSlice(orderIds, 0)
	rows, e := o.db.QueryContext(ctx,
		"SELECT id, order_id, product_id, name, price, quantity FROM order_items WHERE order_id IN "+in+" ORDER BY id", params...)
	if e != nil {
		log.Printf("GetOrderItems[1]: %v", e)
		err = models.ErrServerError
		return
	}
	defer rows.Close()
	for rows.Next() {
		var it models.OrderItem_db
		if err = rows.Scan(&it.Id, &it.OrderId, &it.ProductId, &it.Name, &it.Price, &it.Quantity); err != nil {
			log.Printf("GetOrderItems[2]: %v", err)
			err = models.ErrServerError
			return
		}
		items[it.OrderId] = append(items[it.OrderId], it)
	}
	if err = rows.Err(); err != nil {
		log.Printf("GetOrderItems[3]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (o *OrderRepo) queryOrders(ctx context.Context, query string, args ...any) (orders []models.Order_db, err error) {
	rows, e := o.db.QueryContext(ctx, query, args...)
	if e != nil {
		log.Printf("queryOrders[1]: %v", e)
		err = models.ErrServerError
		return
	}
	defer rows.Close()
	for rows.Next() {
		var ord models.Order_db
		if ord, err = scanOrder(rows); err != nil {
			log.Printf("queryOrders[2]: %v", err)
			err = models.ErrServerError
			return
		}
		orders = append(orders, ord)
	}
	if err = rows.Err(); err != nil {
		log.Printf("queryOrders[3]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (o *OrderRepo) ListUserOrders(ctx context.Context, userId int) ([]models.Order_db, error) {
	return o.queryOrders(ctx,
		"SELECT "+orderColumns+" FROM orders o WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id DESC", userId)
}

func (o *OrderRepo) SearchOrders(ctx context.Context, data models.OrderSearchData) (orders []models.Order_db, total int, err error) {
	var args queryArgs
	var where []string

	if data.DateStart != nil {
		where = append(where, "o.created_at >= "+args.add(data.DateStart.UTC()))
	}
	if data.DateEnd != nil {
		where = append(where, "o.created_at <= "+args.add(data.DateEnd.UTC()))
	}
	if data.UserId != nil {
		where = append(where, "o.user_id = "+args.add(*data.UserId))
	}
	if data.Status != nil {
		where = append(where, "o.status = "+args.add(*data.Status))
	}
	if data.ProdId != nil {
		where = append(where, "EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.product_id = "+args.add(*data.ProdId)+")")
	}

	var whereSQL string
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	if err = o.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders o"+whereSQL, args.params...).Scan(&total); err != nil {
		log.Printf("SearchOrders: %v", err)
		err = models.ErrServerError
		return
	}
	if total == 0 {
		return
	}

	query := "SELECT " + orderColumns + " FROM orders o" + whereSQL + " ORDER BY o.created_at DESC, o.id DESC"
	query = query + " LIMIT " + args.add(data.Limit) + " OFFSET " + args.add((data.Page-1)*data.Limit)
	orders, err = o.queryOrders(ctx, query, args.params...)
	return
}

// SetOrderStatus moves an order from one status to another. The update only
// applies while the order is still in the from status; cancelling puts the
// reserved stock back.
func (o *OrderRepo) SetOrderStatus(ctx context.Context, orderId int, from, to string) (err error) {
	tx, e := o.db.BeginTx(ctx, nil)
	if e != nil {
		log.Printf("SetOrderStatus[1]: %v", e)
		err = models.ErrServerError
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ts := now()
	res, e := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4", to, ts, orderId, from)
	if e != nil {
		log.Printf("SetOrderStatus[2]: %v", e)
		err = models.ErrServerError
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = models.Errorf(models.ErrBadRequest, "order is no longer %s", from)
		return
	}

	if to == models.OrderStatusCancelled {
		var items []models.OrderItem_db
		rows, e := tx.QueryContext(ctx, "SELECT product_id, quantity FROM order_items WHERE order_id = $1", orderId)
		if e != nil {
			log.Printf("SetOrderStatus[3]: %v", e)
			err = models.ErrServerError
			return
		}
		for rows.Next() {
			var it models.OrderItem_db
			if err = rows.Scan(&it.ProductId, &it.Quantity); err != nil {
				rows.Close()
				log.Printf("SetOrderStatus[4]: %v", err)
				err = models.ErrServerError
				return
			}
			items = append(items, it)
		}
		rows.Close()

		for _, it := range items {
			// products deleted since the order was placed are skipped
			_, err = tx.ExecContext(ctx,
				"UPDATE products SET stock = stock + $1, updated_at = $2 WHERE id = $3", it.Quantity, ts, it.ProductId)
			if err != nil {
				log.Printf("SetOrderStatus[5]: %v", err)
				err = models.ErrServerError
				return
			}
		}
	}

	if err = tx.Commit(); err != nil {
		log.Printf("SetOrderStatus[6]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (o *OrderRepo) CountOrders(ctx context.Context) (total int, pending int, err error) {
	err = o.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = $1 THEN 1 ELSE 0 END), 0) FROM orders",
		models.OrderStatusPending).Scan(&total, &pending)
	if err != nil {
		log.Printf("CountOrders: %v", err)
		err = models.ErrServerError
	}
	return
}

func (o *OrderRepo) Revenue(ctx context.Context) (revenue decimal.Decimal, err error) {
	err = o.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(total), 0) FROM orders WHERE status <> $1", models.OrderStatusCancelled).Scan(&revenue)
	if err != nil {
		log.Printf("Revenue: %v", err)
		err = models.ErrServerError
	}
	return
}

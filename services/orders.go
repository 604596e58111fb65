package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unieats/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// RestaurantExists verifies a restaurant id before an order is written.
func (r *Repo) RestaurantExists(ctx context.Context, id string) (bool, error) {
	id, ok := parseID(id)
	if !ok {
		return false, nil
	}
	var found string
	err := r.pool.QueryRow(ctx, `SELECT id::text FROM restaurants WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateOrder writes an order header and returns the stored row.
func (r *Repo) CreateOrder(ctx context.Context, input models.CreateOrderInput) (*models.Order, error) {
	status := input.Status
	if status == "" {
		status = models.OrderStatusPending
	}
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		INSERT INTO orders (restaurant_id, user_id, total_amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+orderColumns,
		input.RestaurantID, input.UserID, input.Total, string(status),
	))
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrderItem writes one order line and returns its id.
func (r *Repo) CreateOrderItem(ctx context.Context, input models.CreateOrderItemInput) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO order_items (order_id, menu_item_id, quantity, price_at_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text`,
		input.OrderID, input.MenuItemID, input.Quantity, input.Price,
	).Scan(&id)
	return id, err
}

// MenuItemStock reads the current remaining count; NULL counts as 0.
func (r *Repo) MenuItemStock(ctx context.Context, menuItemID string) (int, error) {
	id, ok := parseID(menuItemID)
	if !ok {
		return 0, ErrMenuItemNotFound
	}
	var qty *int
	err := r.pool.QueryRow(ctx, `SELECT quantity FROM menu_items WHERE id = $1`, id).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrMenuItemNotFound
		}
		return 0, err
	}
	if qty == nil {
		return 0, nil
	}
	return *qty, nil
}

// SetMenuItemStock overwrites the remaining count. Last write wins.
func (r *Repo) SetMenuItemStock(ctx context.Context, menuItemID string, stock int) error {
	id, ok := parseID(menuItemID)
	if !ok {
		return ErrMenuItemNotFound
	}
	tag, err := r.pool.Exec(ctx, `UPDATE menu_items SET quantity = $1 WHERE id = $2`, stock, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMenuItemNotFound
	}
	return nil
}

const orderColumns = `id::text, restaurant_id::text, user_id::text, total_amount, status, created_at`

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	var status string
	var createdAt time.Time
	if err := row.Scan(&o.ID, &o.RestaurantID, &o.UserID, &o.Total, &status, &createdAt); err != nil {
		return models.Order{}, err
	}
	o.Status = models.OrderStatus(status)
	o.CreatedAt = createdAt
	return o, nil
}

func (r *Repo) listOrders(ctx context.Context, column, id string, limit int) ([]models.Order, error) {
	id, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE `+column+` = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		id, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListUserOrders returns the newest orders of userID without their lines.
func (r *Repo) ListUserOrders(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	return r.listOrders(ctx, "user_id", userID, limit)
}

// ListRestaurantOrders returns the newest orders of a restaurant with their
// lines priced as ordered.
func (r *Repo) ListRestaurantOrders(ctx context.Context, restaurantID string, limit int) ([]models.Order, error) {
	orders, err := r.listOrders(ctx, "restaurant_id", restaurantID, limit)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		lines, err := r.OrderLines(ctx, orders[i].ID)
		if err != nil {
			return nil, fmt.Errorf("lines of order %s: %w", orders[i].ID, err)
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

func (r *Repo) OrderLines(ctx context.Context, orderID string) ([]models.OrderLine, error) {
	id, ok := parseID(orderID)
	if !ok {
		return nil, ErrOrderNotFound
	}
	rows, err := r.pool.Query(ctx, `
		SELECT oi.menu_item_id::text, COALESCE(mi.name, ''), oi.quantity, oi.price_at_time
		FROM order_items oi
		LEFT JOIN menu_items mi ON mi.id = oi.menu_item_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OrderLine
	for rows.Next() {
		var l models.OrderLine
		var price decimal.Decimal
		if err := rows.Scan(&l.MenuItemID, &l.Name, &l.Quantity, &price); err != nil {
			return nil, err
		}
		l.PriceAtTime = price
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	id, ok := parseID(id)
	if !ok {
		return nil, ErrOrderNotFound
	}
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// ValidStatusTransition reports whether an order may move from one status to
// the next. Orders only move forward one step at a time.
func ValidStatusTransition(from, to models.OrderStatus) bool {
	switch from {
	case models.OrderStatusPending:
		return to == models.OrderStatusPreparing
	case models.OrderStatusPreparing:
		return to == models.OrderStatusReady
	case models.OrderStatusReady:
		return to == models.OrderStatusCompleted
	}
	return false
}

// UpdateOrderStatus moves an order along pending → preparing → ready → completed.
func (r *Repo) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	current, err := r.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ValidStatusTransition(current.Status, status) {
		return nil, fmt.Errorf("invalid status transition %s -> %s", current.Status, status)
	}
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		UPDATE orders SET status = $1
		WHERE id = $2 AND status = $3
		RETURNING `+orderColumns,
		string(status), current.ID, string(current.Status),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s changed status concurrently", id)
		}
		return nil, err
	}
	return &o, nil
}

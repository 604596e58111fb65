package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusCompleted:
		return true
	}
	return false
}

// AnonymousUserID is written as the placing user when nobody is signed in.
var AnonymousUserID = uuid.Nil.String()

// CreateOrderInput is the order header written before any line.
type CreateOrderInput struct {
	RestaurantID string
	UserID       string
	Total        decimal.Decimal
	Status       OrderStatus
}

// CreateOrderItemInput is one order line; Price is the price at the time of
// ordering, never looked up again.
type CreateOrderItemInput struct {
	OrderID    string
	MenuItemID string
	Quantity   int
	Price      decimal.Decimal
}

type OrderLine struct {
	MenuItemID  string          `json:"menu_item_id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
}

// Order is a row from orders, optionally with its lines.
type Order struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	UserID       string          `json:"user_id"`
	Lines        []OrderLine     `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

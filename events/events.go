package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventsExchange         = "unieats.events"
	OrderPlacedRoutingKey  = "order.placed.v1"
	OrderPlacedEventName   = "OrderPlaced"
	OrderPlacedVersion     = 1
	producerName           = "unieats-bot"
	orderPlacedSchemaTitle = "unieats.order.placed.v1"
)

// Envelope wraps every published event.
type Envelope[T any] struct {
	EventName    string    `json:"eventName"`
	EventVersion int       `json:"eventVersion"`
	EventID      string    `json:"eventId"`
	Producer     string    `json:"producer"`
	PartitionKey string    `json:"partitionKey"`
	OccurredAt   time.Time `json:"occurredAt"`
	Schema       string    `json:"schema"`
	Payload      T         `json:"payload"`
}

type OrderPlacedLine struct {
	MenuItemID  string          `json:"menuItemId"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"priceAtTime"`
}

type OrderPlaced struct {
	OrderID      string            `json:"orderId"`
	RestaurantID string            `json:"restaurantId"`
	UserID       string            `json:"userId"`
	Status       string            `json:"status"`
	TotalAmount  decimal.Decimal   `json:"totalAmount"`
	Lines        []OrderPlacedLine `json:"lines"`
}

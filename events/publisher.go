package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"unieats/models"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends order events to the topic exchange. It satisfies
// checkout.Notifier.
type Publisher struct {
	ch  channel
	log logrus.FieldLogger
	now func() time.Time
}

// Dial connects to RabbitMQ and declares the events exchange.
func Dial(url string, log logrus.FieldLogger) (*Publisher, *amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("declare %s: %w", EventsExchange, err)
	}
	return newPublisher(ch, log), conn, nil
}

func newPublisher(ch channel, log logrus.FieldLogger) *Publisher {
	return &Publisher{ch: ch, log: log, now: time.Now}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// OrderPlaced publishes an order.placed.v1 event keyed by restaurant.
func (p *Publisher) OrderPlaced(ctx context.Context, o models.Order) error {
	body, err := json.Marshal(p.orderPlacedEnvelope(o))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", OrderPlacedEventName, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err = p.ch.PublishWithContext(pubCtx, EventsExchange, OrderPlacedRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", OrderPlacedRoutingKey, err)
	}
	p.log.WithField("order_id", o.ID).Debug("order event published")
	return nil
}

func (p *Publisher) orderPlacedEnvelope(o models.Order) Envelope[OrderPlaced] {
	payload := OrderPlaced{
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		UserID:       o.UserID,
		Status:       string(o.Status),
		TotalAmount:  o.Total,
		Lines:        make([]OrderPlacedLine, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		payload.Lines = append(payload.Lines, OrderPlacedLine{
			MenuItemID:  l.MenuItemID,
			Name:        l.Name,
			Quantity:    l.Quantity,
			PriceAtTime: l.PriceAtTime,
		})
	}
	return Envelope[OrderPlaced]{
		EventName:    OrderPlacedEventName,
		EventVersion: OrderPlacedVersion,
		EventID:      uuid.NewString(),
		Producer:     producerName,
		PartitionKey: o.RestaurantID,
		OccurredAt:   p.now().UTC(),
		Schema:       orderPlacedSchemaTitle,
		Payload:      payload,
	}
}

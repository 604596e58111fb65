package checkout

import (
	"context"
	"errors"
	"fmt"

	"unieats/cart"
	"unieats/models"

	"github.com/sirupsen/logrus"
)

// ErrNoRestaurant is returned, before any remote call, when the cart has no
// active restaurant or no lines.
var ErrNoRestaurant = errors.New("no restaurant selected")

var (
	errRestaurantNotFound   = errors.New("restaurant not found")
	errInsufficientQuantity = errors.New("insufficient quantity")
)

// Backend is the remote side of order placement.
type Backend interface {
	RestaurantExists(ctx context.Context, id string) (bool, error)
	CreateOrder(ctx context.Context, input models.CreateOrderInput) (*models.Order, error)
	CreateOrderItem(ctx context.Context, input models.CreateOrderItemInput) (string, error)
	MenuItemStock(ctx context.Context, menuItemID string) (int, error)
	SetMenuItemStock(ctx context.Context, menuItemID string, stock int) error
}

// Identity supplies the placing user. ok is false when nobody is signed in.
type Identity interface {
	UserID(ctx context.Context) (id string, ok bool)
}

// Notifier is told about every order that was placed in full.
type Notifier interface {
	OrderPlaced(ctx context.Context, order models.Order) error
}

// Anonymous is an Identity with nobody signed in.
type Anonymous struct{}

func (Anonymous) UserID(context.Context) (string, bool) { return "", false }

type Phase string

const (
	PhaseVerifyRestaurant Phase = "verify_restaurant"
	PhaseCreateOrder      Phase = "create_order"
	PhaseCreateItems      Phase = "create_order_items"
	PhaseDecrementStock   Phase = "decrement_stock"
)

// PlacementError reports which phase failed and what was already written.
// Nothing is rolled back: when OrderID is set the header and every line
// written before the failure stay in the database.
type PlacementError struct {
	Phase   Phase
	OrderID string
	ItemID  string
	Err     error
}

func (e *PlacementError) Error() string {
	return "Failed to place order: " + e.Err.Error()
}

func (e *PlacementError) Unwrap() error { return e.Err }

// Partial reports whether anything was written before the failure.
func (e *PlacementError) Partial() bool { return e.OrderID != "" }

type Placer struct {
	backend   Backend
	identity  Identity
	notifiers []Notifier
	log       logrus.FieldLogger
}

func NewPlacer(backend Backend, identity Identity, log logrus.FieldLogger, notifiers ...Notifier) *Placer {
	if identity == nil {
		identity = Anonymous{}
	}
	return &Placer{backend: backend, identity: identity, notifiers: notifiers, log: log}
}

// PlaceOrder writes the cart as an order: restaurant check, header, lines in
// cart order, then one stock decrement per line. Each remote call completes
// before the next starts. The cart is cleared only when every phase
// succeeded.
func (p *Placer) PlaceOrder(ctx context.Context, c *cart.Engine) (string, error) {
	restaurantID := c.RestaurantID()
	if restaurantID == "" || c.IsEmpty() {
		return "", ErrNoRestaurant
	}
	lines := c.Lines()
	log := p.log.WithField("restaurant_id", restaurantID)

	exists, err := p.backend.RestaurantExists(ctx, restaurantID)
	if err != nil {
		return "", p.fail(log, &PlacementError{Phase: PhaseVerifyRestaurant, Err: err})
	}
	if !exists {
		return "", p.fail(log, &PlacementError{Phase: PhaseVerifyRestaurant, Err: errRestaurantNotFound})
	}

	userID, ok := p.identity.UserID(ctx)
	if !ok || userID == "" {
		userID = models.AnonymousUserID
	}
	order, err := p.backend.CreateOrder(ctx, models.CreateOrderInput{
		RestaurantID: restaurantID,
		UserID:       userID,
		Total:        c.TotalPrice(),
		Status:       models.OrderStatusPending,
	})
	if err != nil {
		return "", p.fail(log, &PlacementError{Phase: PhaseCreateOrder, Err: err})
	}
	log = log.WithField("order_id", order.ID)

	for _, l := range lines {
		_, err := p.backend.CreateOrderItem(ctx, models.CreateOrderItemInput{
			OrderID:    order.ID,
			MenuItemID: l.Item.ID,
			Quantity:   l.Quantity,
			Price:      l.Item.Price,
		})
		if err != nil {
			return "", p.fail(log, &PlacementError{Phase: PhaseCreateItems, OrderID: order.ID, ItemID: l.Item.ID, Err: err})
		}
		order.Lines = append(order.Lines, models.OrderLine{
			MenuItemID:  l.Item.ID,
			Name:        l.Item.Name,
			Quantity:    l.Quantity,
			PriceAtTime: l.Item.Price,
		})
	}

	for _, l := range lines {
		if err := p.decrementStock(ctx, l); err != nil {
			return "", p.fail(log, &PlacementError{Phase: PhaseDecrementStock, OrderID: order.ID, ItemID: l.Item.ID, Err: err})
		}
	}

	if err := c.Reset(ctx); err != nil {
		log.WithError(err).Warn("order placed but saved cart could not be cleared")
	}
	log.WithField("lines", len(lines)).Info("order placed")

	p.notify(ctx, log, *order)
	return order.ID, nil
}

// decrementStock is last write wins; a concurrent buyer can slip between the
// read and the write.
func (p *Placer) decrementStock(ctx context.Context, l cart.Line) error {
	stock, err := p.backend.MenuItemStock(ctx, l.Item.ID)
	if err != nil {
		return err
	}
	newStock := stock - l.Quantity
	if newStock < 0 {
		return fmt.Errorf("%w for %s", errInsufficientQuantity, l.Item.Name)
	}
	return p.backend.SetMenuItemStock(ctx, l.Item.ID, newStock)
}

func (p *Placer) fail(log logrus.FieldLogger, err *PlacementError) error {
	entry := log.WithField("phase", err.Phase).WithError(err.Err)
	if err.ItemID != "" {
		entry = entry.WithField("menu_item_id", err.ItemID)
	}
	if err.Partial() {
		entry.Error("order placement failed, partial order left in place")
	} else {
		entry.Warn("order placement failed")
	}
	return err
}

func (p *Placer) notify(ctx context.Context, log logrus.FieldLogger, order models.Order) {
	for _, n := range p.notifiers {
		if err := n.OrderPlaced(ctx, order); err != nil {
			log.WithError(err).Warn("order notification failed")
		}
	}
}

// IsInsufficientQuantity reports a failed stock decrement.
func IsInsufficientQuantity(err error) bool {
	return errors.Is(err, errInsufficientQuantity)
}

// IsRestaurantNotFound reports a failed restaurant check.
func IsRestaurantNotFound(err error) bool {
	return errors.Is(err, errRestaurantNotFound)
}

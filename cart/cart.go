// Package cart keeps one shopper's selection of menu items.
//
// A cart only ever holds items from one restaurant. Every mutation writes the
// full line list and the active restaurant id to a storage.Store before it
// returns, and Load reads them back.
package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"unieats/models"
	"unieats/storage"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Storage slots.
const (
	CartKey       = "unieats-cart"
	RestaurantKey = "unieats-restaurant"
)

type Line struct {
	Item     models.MenuItem `json:"item"`
	Quantity int             `json:"quantity"`
}

// Subtotal is price × quantity for the line.
func (l Line) Subtotal() decimal.Decimal {
	return l.Item.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Outcome says what AddItem did.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeAdded
	OutcomeIncremented
	OutcomeReplaced
	OutcomeDeclined
)

// ConfirmFunc decides whether the cart of currentRestaurantID may be thrown
// away for an item of incomingRestaurantID.
type ConfirmFunc func(currentRestaurantID, incomingRestaurantID string) bool

// AlwaysConfirm accepts every cross-restaurant replacement.
func AlwaysConfirm(string, string) bool { return true }

type Engine struct {
	lines        []Line
	restaurantID string
	store        storage.Store
	log          logrus.FieldLogger
}

// Load builds an engine over store and rehydrates it. Missing, unreadable or
// malformed slots give an empty cart.
func Load(ctx context.Context, store storage.Store, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Engine{store: store, log: log}

	lines, restaurantID, err := readSlots(ctx, store)
	if err != nil {
		log.WithError(err).Debug("ignoring saved cart")
		return e
	}
	e.lines = lines
	e.restaurantID = restaurantID
	return e
}

func readSlots(ctx context.Context, store storage.Store) ([]Line, string, error) {
	raw, ok, err := store.Get(ctx, CartKey)
	if err != nil {
		return nil, "", err
	}
	var lines []Line
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &lines); err != nil {
			return nil, "", fmt.Errorf("decode cart: %w", err)
		}
	}
	restaurantID, _, err := store.Get(ctx, RestaurantKey)
	if err != nil {
		return nil, "", err
	}

	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		switch {
		case l.Item.ID == "" || l.Quantity <= 0:
			return nil, "", fmt.Errorf("invalid line %q", l.Item.ID)
		case seen[l.Item.ID]:
			return nil, "", fmt.Errorf("duplicate line %q", l.Item.ID)
		}
		seen[l.Item.ID] = true
		if restaurantID == "" {
			restaurantID = l.Item.RestaurantID
		}
		if l.Item.RestaurantID != restaurantID {
			return nil, "", fmt.Errorf("line %q belongs to restaurant %q, cart to %q", l.Item.ID, l.Item.RestaurantID, restaurantID)
		}
	}
	// A restaurant slot left over from a failed delete does not bind an empty cart.
	if len(lines) == 0 {
		restaurantID = ""
	}
	return lines, restaurantID, nil
}

// Lines returns a copy of the cart lines in insertion order.
func (e *Engine) Lines() []Line {
	out := make([]Line, len(e.lines))
	copy(out, e.lines)
	return out
}

// RestaurantID is the active restaurant, "" when none.
func (e *Engine) RestaurantID() string { return e.restaurantID }

func (e *Engine) IsEmpty() bool { return len(e.lines) == 0 }

func (e *Engine) TotalItems() int {
	n := 0
	for _, l := range e.lines {
		n += l.Quantity
	}
	return n
}

func (e *Engine) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Line returns the line for itemID.
func (e *Engine) Line(itemID string) (Line, bool) {
	if i := e.index(itemID); i >= 0 {
		return e.lines[i], true
	}
	return Line{}, false
}

// Conflicts reports whether adding item would need the current cart to be
// replaced.
func (e *Engine) Conflicts(item models.MenuItem) bool {
	return e.restaurantID != "" && e.restaurantID != item.RestaurantID
}

// AddItem puts one more of item into the cart. A conflicting restaurant is
// resolved by confirm; a nil confirm declines.
func (e *Engine) AddItem(ctx context.Context, item models.MenuItem, confirm ConfirmFunc) (Outcome, error) {
	log := e.log.WithFields(logrus.Fields{"item_id": item.ID, "restaurant_id": item.RestaurantID})

	if !item.Available || item.Stock <= 0 {
		return OutcomeNone, &UnavailableError{Name: item.Name}
	}
	prev := e.snapshot()

	if len(e.lines) == 0 && e.restaurantID == "" {
		e.restaurantID = item.RestaurantID
	}

	if e.Conflicts(item) {
		if confirm == nil || !confirm(e.restaurantID, item.RestaurantID) {
			log.Debug("cross-restaurant add declined")
			return OutcomeDeclined, nil
		}
		e.lines = []Line{{Item: item, Quantity: 1}}
		e.restaurantID = item.RestaurantID
		log.Debug("cart replaced")
		return OutcomeReplaced, e.commit(ctx, prev)
	}

	if i := e.index(item.ID); i >= 0 {
		if e.lines[i].Quantity+1 > item.Stock {
			return OutcomeNone, &StockLimitError{Name: item.Name, Available: item.Stock}
		}
		e.lines[i].Quantity++
		e.lines[i].Item = item
		log.WithField("quantity", e.lines[i].Quantity).Debug("cart line incremented")
		return OutcomeIncremented, e.commit(ctx, prev)
	}

	e.lines = append(e.lines, Line{Item: item, Quantity: 1})
	log.Debug("cart line added")
	return OutcomeAdded, e.commit(ctx, prev)
}

// RemoveItem drops the line for itemID; absent ids are ignored.
func (e *Engine) RemoveItem(ctx context.Context, itemID string) error {
	i := e.index(itemID)
	if i < 0 {
		return nil
	}
	prev := e.snapshot()
	e.lines = append(e.lines[:i:i], e.lines[i+1:]...)
	if len(e.lines) == 0 {
		e.restaurantID = ""
	}
	return e.commit(ctx, prev)
}

// UpdateQuantity sets the quantity of an existing line to qty. qty <= 0
// removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, itemID string, qty int) error {
	if qty <= 0 {
		return e.RemoveItem(ctx, itemID)
	}
	i := e.index(itemID)
	if i < 0 {
		return nil
	}
	if qty > e.lines[i].Item.Stock {
		return &StockLimitError{Name: e.lines[i].Item.Name, Available: e.lines[i].Item.Stock}
	}
	prev := e.snapshot()
	e.lines[i].Quantity = qty
	return e.commit(ctx, prev)
}

// Clear empties the cart and forgets the restaurant.
func (e *Engine) Clear(ctx context.Context) error {
	prev := e.snapshot()
	e.lines = nil
	e.restaurantID = ""
	return e.commit(ctx, prev)
}

// Reset empties the cart and removes both storage slots.
func (e *Engine) Reset(ctx context.Context) error {
	e.lines = nil
	e.restaurantID = ""
	if err := e.store.Delete(ctx, CartKey); err != nil {
		return fmt.Errorf("remove saved cart: %w", err)
	}
	if err := e.store.Delete(ctx, RestaurantKey); err != nil {
		return fmt.Errorf("remove saved restaurant: %w", err)
	}
	return nil
}

func (e *Engine) index(itemID string) int {
	for i := range e.lines {
		if e.lines[i].Item.ID == itemID {
			return i
		}
	}
	return -1
}

type state struct {
	lines        []Line
	restaurantID string
}

func (e *Engine) snapshot() state {
	return state{lines: e.Lines(), restaurantID: e.restaurantID}
}

func (e *Engine) restore(s state) {
	e.lines = s.lines
	e.restaurantID = s.restaurantID
}

// commit saves the cart. When saving fails the cart goes back to prev, so a
// shopper told that a change failed does not see it applied.
func (e *Engine) commit(ctx context.Context, prev state) error {
	if err := e.persist(ctx); err != nil {
		e.restore(prev)
		return err
	}
	return nil
}

func (e *Engine) persist(ctx context.Context) error {
	lines := e.lines
	if lines == nil {
		lines = []Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := e.store.Set(ctx, CartKey, string(raw)); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if e.restaurantID == "" {
		err = e.store.Delete(ctx, RestaurantKey)
	} else {
		err = e.store.Set(ctx, RestaurantKey, e.restaurantID)
	}
	if err != nil {
		return fmt.Errorf("save restaurant: %w", err)
	}
	return nil
}

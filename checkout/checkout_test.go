package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"unieats/cart"
	"unieats/models"
	"unieats/storage"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory database that records every call in order.
type fakeBackend struct {
	restaurants map[string]bool
	stock       map[string]int
	orders      []models.CreateOrderInput
	items       []models.CreateOrderItemInput
	calls       []string

	failCreateOrder bool
	failItemWrite   int // 1-based line write that fails; 0 never
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{restaurants: map[string]bool{}, stock: map[string]int{}}
}

func (f *fakeBackend) RestaurantExists(_ context.Context, id string) (bool, error) {
	f.calls = append(f.calls, "restaurant")
	return f.restaurants[id], nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, in models.CreateOrderInput) (*models.Order, error) {
	f.calls = append(f.calls, "order")
	if f.failCreateOrder {
		return nil, errors.New("insert orders: connection reset")
	}
	f.orders = append(f.orders, in)
	return &models.Order{
		ID:           fmt.Sprintf("order-%d", len(f.orders)),
		RestaurantID: in.RestaurantID,
		UserID:       in.UserID,
		Total:        in.Total,
		Status:       in.Status,
	}, nil
}

func (f *fakeBackend) CreateOrderItem(_ context.Context, in models.CreateOrderItemInput) (string, error) {
	f.calls = append(f.calls, "item")
	if f.failItemWrite > 0 && len(f.items)+1 == f.failItemWrite {
		return "", errors.New("insert order_items: connection reset")
	}
	f.items = append(f.items, in)
	return fmt.Sprintf("line-%d", len(f.items)), nil
}

func (f *fakeBackend) MenuItemStock(_ context.Context, id string) (int, error) {
	f.calls = append(f.calls, "stock")
	return f.stock[id], nil
}

func (f *fakeBackend) SetMenuItemStock(_ context.Context, id string, n int) error {
	f.calls = append(f.calls, "set_stock")
	f.stock[id] = n
	return nil
}

type fixedUser string

func (u fixedUser) UserID(context.Context) (string, bool) { return string(u), u != "" }

type recordingNotifier struct {
	orders []models.Order
	err    error
}

func (r *recordingNotifier) OrderPlaced(_ context.Context, o models.Order) error {
	r.orders = append(r.orders, o)
	return r.err
}

func menuItem(id, restaurantID, price string, stock int) models.MenuItem {
	return models.MenuItem{
		ID:           id,
		RestaurantID: restaurantID,
		Name:         "Item " + id,
		Price:        decimal.RequireFromString(price),
		Available:    true,
		Stock:        stock,
	}
}

func loadCart(t *testing.T, store storage.Store) *cart.Engine {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return cart.Load(context.Background(), store, logger)
}

func addN(t *testing.T, c *cart.Engine, item models.MenuItem, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := c.AddItem(context.Background(), item, nil)
		require.NoError(t, err)
	}
}

func TestPlaceOrder_EmptyCartMakesNoCalls(t *testing.T) {
	backend := newFakeBackend()
	logger, _ := test.NewNullLogger()
	p := NewPlacer(backend, nil, logger)

	id, err := p.PlaceOrder(context.Background(), loadCart(t, storage.NewMemoryStore()))
	assert.ErrorIs(t, err, ErrNoRestaurant)
	assert.Equal(t, "no restaurant selected", err.Error())
	assert.Empty(t, id)
	assert.Empty(t, backend.calls)
}

func TestPlaceOrder_HappyPath(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.restaurants["R"] = true
	backend.stock["X"] = 5
	notifier := &recordingNotifier{}
	logger, _ := test.NewNullLogger()
	p := NewPlacer(backend, fixedUser("user-1"), logger, notifier)

	store := storage.NewMemoryStore()
	c := loadCart(t, store)
	addN(t, c, menuItem("X", "R", "8.99", 5), 2)

	id, err := p.PlaceOrder(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "order-1", id)

	assert.Equal(t, []string{"restaurant", "order", "item", "stock", "set_stock"}, backend.calls)
	require.Len(t, backend.orders, 1)
	assert.Equal(t, "user-1", backend.orders[0].UserID)
	assert.Equal(t, models.OrderStatusPending, backend.orders[0].Status)
	assert.Equal(t, "17.98", backend.orders[0].Total.StringFixed(2))
	require.Len(t, backend.items, 1)
	assert.Equal(t, "order-1", backend.items[0].OrderID)
	assert.Equal(t, "X", backend.items[0].MenuItemID)
	assert.Equal(t, 2, backend.items[0].Quantity)
	assert.Equal(t, "8.99", backend.items[0].Price.StringFixed(2))
	assert.Equal(t, 3, backend.stock["X"])

	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.RestaurantID())
	assert.Zero(t, store.Len(), "saved cart is gone")
	assert.True(t, loadCart(t, store).IsEmpty())

	require.Len(t, notifier.orders, 1)
	assert.Equal(t, "order-1", notifier.orders[0].ID)
	require.Len(t, notifier.orders[0].Lines, 1)
	assert.Equal(t, "Item X", notifier.orders[0].Lines[0].Name)
}

func TestPlaceOrder_AnonymousUser(t *testing.T) {
	backend := newFakeBackend()
	backend.restaurants["R"] = true
	backend.stock["X"] = 1
	logger, _ := test.NewNullLogger()
	p := NewPlacer(backend, fixedUser(""), logger)

	c := loadCart(t, storage.NewMemoryStore())
	addN(t, c, menuItem("X", "R", "1.00", 1), 1)

	_, err := p.PlaceOrder(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", backend.orders[0].UserID)
}

func TestPlaceOrder_RestaurantNotFound(t *testing.T) {
	backend := newFakeBackend()
	logger, _ := test.NewNullLogger()
	p := NewPlacer(backend, nil, logger)

	c := loadCart(t, storage.NewMemoryStore())
	addN(t, c, menuItem("X", "gone", "1.00", 3), 1)

	_, err := p.PlaceOrder(context.Background(), c)
	require.Error(t, err)
	assert.True(t, IsRestaurantNotFound(err))
	assert.Equal(t, "Failed to place order: restaurant not found", err.Error())

	var perr *PlacementError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseVerifyRestaurant, perr.Phase)
	assert.False(t, perr.Partial())
	assert.Equal(t, []string{"restaurant"}, backend.calls)
	assert.Equal(t, 1, c.TotalItems())
}

func TestPlaceOrder_LineWriteFailureKeepsCartAndHeader(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.restaurants["R"] = true
	backend.stock["X"] = 5
	backend.stock["Y"] = 5
	backend.failItemWrite = 1
	notifier := &recordingNotifier{}
	logger, hook := test.NewNullLogger()
	p := NewPlacer(backend, nil, logger, notifier)

	store := storage.NewMemoryStore()
	c := loadCart(t, store)
	addN(t, c, menuItem("X", "R", "8.99", 5), 2)
	addN(t, c, menuItem("Y", "R", "2.50", 5), 1)
	before := c.Lines()

	_, err := p.PlaceOrder(ctx, c)
	require.Error(t, err)

	var perr *PlacementError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseCreateItems, perr.Phase)
	assert.Equal(t, "order-1", perr.OrderID)
	assert.Equal(t, "X", perr.ItemID)
	assert.True(t, perr.Partial())
	assert.Contains(t, err.Error(), "Failed to place order:")

	assert.Len(t, backend.orders, 1, "header is not retracted")
	assert.Equal(t, []string{"restaurant", "order", "item"}, backend.calls)
	assert.Equal(t, 5, backend.stock["X"])

	assert.Equal(t, before, c.Lines())
	assert.Equal(t, "R", c.RestaurantID())
	saved := loadCart(t, store)
	assert.Equal(t, 3, saved.TotalItems(), "saved cart is untouched")
	assert.True(t, c.TotalPrice().Equal(saved.TotalPrice()))
	assert.Empty(t, notifier.orders)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "order-1", hook.LastEntry().Data["order_id"])
}

func TestPlaceOrder_StockRace(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.restaurants["R"] = true
	backend.stock["X"] = 1
	logger, _ := test.NewNullLogger()
	p := NewPlacer(backend, nil, logger)

	// Both carts were filled while the menu still showed one left.
	x := menuItem("X", "R", "4.00", 1)
	first := loadCart(t, storage.NewMemoryStore())
	second := loadCart(t, storage.NewMemoryStore())
	addN(t, first, x, 1)
	addN(t, second, x, 1)

	_, err := p.PlaceOrder(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 0, backend.stock["X"])

	_, err = p.PlaceOrder(ctx, second)
	require.Error(t, err)
	assert.True(t, IsInsufficientQuantity(err))
	assert.Contains(t, err.Error(), "insufficient quantity")

	var perr *PlacementError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseDecrementStock, perr.Phase)
	assert.Equal(t, "order-2", perr.OrderID)

	assert.Len(t, backend.orders, 2, "second header stays")
	assert.Len(t, backend.items, 2, "second line stays")
	assert.Equal(t, 0, backend.stock["X"])
	assert.False(t, second.IsEmpty())
}

func TestPlaceOrder_HeaderFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.restaurants["R"] = true
	backend.stock["X"] = 5
	backend.failCreateOrder = true
	notifier := &recordingNotifier{}
	logger, hook := test.NewNullLogger()
	p := NewPlacer(backend, fixedUser("user-1"), logger, notifier)

	store := storage.NewMemoryStore()
	c := loadCart(t, store)
	addN(t, c, menuItem("X", "R", "8.99", 5), 2)
	before := c.Lines()

	id, err := p.PlaceOrder(ctx, c)
	require.Error(t, err)
	assert.Empty(t, id)
	assert.Equal(t, "Failed to place order: insert orders: connection reset", err.Error())

	var perr *PlacementError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseCreateOrder, perr.Phase)
	assert.Empty(t, perr.OrderID)
	assert.False(t, perr.Partial())

	assert.Equal(t, []string{"restaurant", "order"}, backend.calls, "nothing after the header")
	assert.Empty(t, backend.orders)
	assert.Empty(t, backend.items)
	assert.Equal(t, 5, backend.stock["X"])

	assert.Equal(t, before, c.Lines())
	assert.Equal(t, "R", c.RestaurantID())
	assert.Equal(t, 2, loadCart(t, store).TotalItems(), "saved cart is untouched")
	assert.Empty(t, notifier.orders)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, PhaseCreateOrder, hook.LastEntry().Data["phase"])
}

func TestPlaceOrder_ShortSecondLineKeepsEarlierDecrement(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.restaurants["R"] = true
	backend.stock["X"] = 5
	backend.stock["Y"] = 3
	logger, _ := test.NewNullLogger()
	p := NewPlacer(backend, nil, logger)

	c := loadCart(t, storage.NewMemoryStore())
	addN(t, c, menuItem("X", "R", "8.99", 5), 2)
	addN(t, c, menuItem("Y", "R", "2.50", 3), 1)

	// Someone else bought the last Y after this cart was filled.
	backend.stock["Y"] = 0

	_, err := p.PlaceOrder(ctx, c)
	require.Error(t, err)
	assert.True(t, IsInsufficientQuantity(err))
	assert.Contains(t, err.Error(), "insufficient quantity for Item Y")

	var perr *PlacementError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseDecrementStock, perr.Phase)
	assert.Equal(t, "order-1", perr.OrderID)
	assert.Equal(t, "Y", perr.ItemID)
	assert.True(t, perr.Partial())

	assert.Equal(t, []string{"restaurant", "order", "item", "item", "stock", "set_stock", "stock"}, backend.calls)
	assert.Len(t, backend.orders, 1, "header stays")
	require.Len(t, backend.items, 2, "both lines stay")
	assert.Equal(t, "X", backend.items[0].MenuItemID)
	assert.Equal(t, "Y", backend.items[1].MenuItemID)
	assert.Equal(t, 3, backend.stock["X"], "first decrement is not undone")
	assert.Equal(t, 0, backend.stock["Y"])
	assert.Equal(t, 3, c.TotalItems(), "cart kept")
}

func TestPlaceOrder_NotifierErrorIsLogged(t *testing.T) {
	backend := newFakeBackend()
	backend.restaurants["R"] = true
	backend.stock["X"] = 2
	notifier := &recordingNotifier{err: errors.New("broker down")}
	logger, hook := test.NewNullLogger()
	p := NewPlacer(backend, nil, logger, notifier)

	c := loadCart(t, storage.NewMemoryStore())
	addN(t, c, menuItem("X", "R", "3.00", 2), 1)

	id, err := p.PlaceOrder(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "order-1", id)
	assert.True(t, c.IsEmpty())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "order notification failed" {
			warned = true
		}
	}
	assert.True(t, warned)
}

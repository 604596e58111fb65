package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"unieats/config"
	"unieats/models"
	"unieats/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CatalogAdmin is the catalog and order access of the admin bot.
// *services.Repo implements it.
type CatalogAdmin interface {
	GetRestaurants(ctx context.Context) ([]models.Restaurant, error)
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	GetMenuItems(ctx context.Context, restaurantID string) ([]models.MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
	AddRestaurant(ctx context.Context, rest models.Restaurant) (*models.Restaurant, error)
	AddMenuItem(ctx context.Context, item models.MenuItem) (*models.MenuItem, error)
	UpdateMenuItem(ctx context.Context, id string, upd models.MenuItemUpdate) (*models.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id string) error
	ListRestaurantOrders(ctx context.Context, restaurantID string, limit int) ([]models.Order, error)
}

// Steps of the multi-message admin flows.
const (
	stepRestaurantName    = "rest_name"
	stepRestaurantCuisine = "rest_cuisine"
	stepItemName          = "item_name"
	stepItemPrice         = "item_price"
	stepItemStock         = "item_stock"
	stepStock             = "stock"
)

type adderState struct {
	Step         string
	RestaurantID string
	ItemID       string
	Name         string
	Price        decimal.Decimal
}

// AdderBot is the admin bot for managing the catalog (uses ADDER_TOKEN).
// Only ADMIN_ID may use it.
type AdderBot struct {
	api     sender
	adminID int64
	repo    CatalogAdmin
	log     logrus.FieldLogger

	state   map[int64]*adderState // by admin user id
	stateMu sync.Mutex
}

// NewAdderBot creates the admin bot. It needs both ADDER_TOKEN and ADMIN_ID.
func NewAdderBot(cfg *config.Config, repo CatalogAdmin, log logrus.FieldLogger) (*AdderBot, error) {
	if cfg.Telegram.AdderToken == "" {
		return nil, fmt.Errorf("ADDER_TOKEN not set")
	}
	if cfg.Telegram.AdminID == 0 {
		return nil, fmt.Errorf("ADMIN_ID not set")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.AdderToken)
	if err != nil {
		return nil, err
	}
	return newAdderBot(api, cfg.Telegram.AdminID, repo, log), nil
}

func newAdderBot(api sender, adminID int64, repo CatalogAdmin, log logrus.FieldLogger) *AdderBot {
	return &AdderBot{
		api:     api,
		adminID: adminID,
		repo:    repo,
		log:     log.WithField("bot", "adder"),
		state:   make(map[int64]*adderState),
	}
}

func (a *AdderBot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := a.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			a.handleUpdate(ctx, update)
		}
	}
}

func (a *AdderBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		a.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	if userID != a.adminID {
		a.send(chatID, "🔒 This bot is for the store admin.")
		return
	}

	switch text {
	case "/cancel":
		a.setState(userID, nil)
		a.send(chatID, "✅ Cancelled.")
		a.sendPanel(ctx, chatID)
		return
	case "/start":
		a.setState(userID, nil)
		a.sendPanel(ctx, chatID)
		return
	}

	if st := a.getState(userID); st != nil {
		a.handleFlow(ctx, chatID, userID, st, text)
		return
	}
	a.sendPanel(ctx, chatID)
}

func (a *AdderBot) getState(userID int64) *adderState {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state[userID]
}

// setState replaces the flow of userID; nil ends it.
func (a *AdderBot) setState(userID int64, st *adderState) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if st == nil {
		delete(a.state, userID)
		return
	}
	a.state[userID] = st
}

func (a *AdderBot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := a.api.Send(msg); err != nil {
		a.log.WithError(err).WithField("chat_id", chatID).Warn("adder send error")
	}
}

func (a *AdderBot) show(chatID int64, c CardContent) {
	msg := tgbotapi.NewMessage(chatID, c.Text)
	if kb := cardMarkup(c); kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := a.api.Send(msg); err != nil {
		a.log.WithError(err).WithField("chat_id", chatID).Warn("adder send error")
	}
}

func (a *AdderBot) sendPanel(ctx context.Context, chatID int64) {
	rests, err := a.repo.GetRestaurants(ctx)
	if err != nil {
		a.log.WithError(err).Error("list restaurants")
		a.send(chatID, "Failed to load restaurants: "+err.Error())
		return
	}
	a.show(chatID, BuildAdminPanelCard(rests))
}

func (a *AdderBot) sendRestaurant(ctx context.Context, chatID int64, restaurantID string) {
	rest, err := a.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		a.send(chatID, "Failed to load restaurant: "+err.Error())
		return
	}
	a.show(chatID, BuildAdminRestaurantCard(*rest))
}

func (a *AdderBot) sendItems(ctx context.Context, chatID int64, restaurantID string) {
	items, err := a.repo.GetMenuItems(ctx, restaurantID)
	if err != nil {
		a.log.WithError(err).WithField("restaurant_id", restaurantID).Error("list menu")
		a.send(chatID, "Failed to load list: "+err.Error())
		return
	}
	a.show(chatID, BuildAdminItemsCard(restaurantID, items))
}

func (a *AdderBot) sendOrders(ctx context.Context, chatID int64, restaurantID string) {
	orders, err := a.repo.ListRestaurantOrders(ctx, restaurantID, ordersLimit)
	if err != nil {
		a.log.WithError(err).WithField("restaurant_id", restaurantID).Error("list restaurant orders")
		a.send(chatID, "Failed to load orders: "+err.Error())
		return
	}
	a.show(chatID, BuildAdminOrdersCard(restaurantID, orders))
}

func (a *AdderBot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := a.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		a.log.WithError(err).Debug("answer callback")
	}
	if cq.Message == nil || cq.From == nil || cq.From.ID != a.adminID {
		return
	}
	chatID := cq.Message.Chat.ID
	userID := cq.From.ID

	action, arg, _ := strings.Cut(strings.TrimPrefix(cq.Data, "adder:"), ":")
	switch action {
	case "back":
		a.sendPanel(ctx, chatID)
	case "add_rest":
		a.setState(userID, &adderState{Step: stepRestaurantName})
		a.send(chatID, "Send the name of the new restaurant. Cancel: /cancel")
	case "rest":
		a.sendRestaurant(ctx, chatID, arg)
	case "items":
		a.sendItems(ctx, chatID, arg)
	case "orders":
		a.sendOrders(ctx, chatID, arg)
	case "add_item":
		a.setState(userID, &adderState{Step: stepItemName, RestaurantID: arg})
		a.send(chatID, "Send the name for the new menu item (e.g. 🌯 Falafel Wrap). Cancel: /cancel")
	case "toggle":
		item, err := a.repo.GetMenuItem(ctx, arg)
		if err != nil {
			a.send(chatID, "Failed to load item: "+err.Error())
			return
		}
		available := !item.Available
		if _, err := a.repo.UpdateMenuItem(ctx, arg, models.MenuItemUpdate{Available: &available}); err != nil {
			a.send(chatID, "Failed to update: "+err.Error())
			return
		}
		a.log.WithFields(logrus.Fields{"item_id": arg, "available": available}).Info("menu item availability changed")
		a.sendItems(ctx, chatID, item.RestaurantID)
	case "stock":
		item, err := a.repo.GetMenuItem(ctx, arg)
		if err != nil {
			a.send(chatID, "Failed to load item: "+err.Error())
			return
		}
		a.setState(userID, &adderState{Step: stepStock, RestaurantID: item.RestaurantID, ItemID: item.ID, Name: item.Name})
		a.send(chatID, fmt.Sprintf("Send the new stock for «%s» (now %d):", item.Name, item.Stock))
	case "del":
		item, err := a.repo.GetMenuItem(ctx, arg)
		if err != nil {
			a.send(chatID, "Failed to load item: "+err.Error())
			return
		}
		if err := a.repo.DeleteMenuItem(ctx, arg); err != nil {
			if errors.Is(err, services.ErrMenuItemInUse) {
				a.send(chatID, "«"+item.Name+"» has been ordered before and cannot be deleted. Mark it unavailable instead.")
				return
			}
			a.send(chatID, "Failed to delete: "+err.Error())
			return
		}
		a.log.WithField("item_id", arg).Info("menu item deleted")
		a.send(chatID, "✅ Deleted «"+item.Name+"».")
		a.sendItems(ctx, chatID, item.RestaurantID)
	}
}

// handleFlow takes the next answer of an add or stock flow.
func (a *AdderBot) handleFlow(ctx context.Context, chatID, userID int64, st *adderState, text string) {
	switch st.Step {
	case stepRestaurantName:
		if text == "" {
			a.send(chatID, "The name cannot be empty.")
			return
		}
		st.Name = text
		st.Step = stepRestaurantCuisine
		a.send(chatID, fmt.Sprintf("Send the cuisine of «%s» (or - to skip):", text))

	case stepRestaurantCuisine:
		cuisine := text
		if cuisine == "-" {
			cuisine = ""
		}
		a.setState(userID, nil)
		rest, err := a.repo.AddRestaurant(ctx, models.Restaurant{Name: st.Name, Cuisine: cuisine})
		if err != nil {
			a.send(chatID, "Failed to add: "+err.Error())
			return
		}
		a.log.WithField("restaurant_id", rest.ID).Info("restaurant added")
		a.send(chatID, "✅ Added restaurant «"+rest.Name+"».")
		a.show(chatID, BuildAdminRestaurantCard(*rest))

	case stepItemName:
		if text == "" {
			a.send(chatID, "The name cannot be empty.")
			return
		}
		st.Name = text
		st.Step = stepItemPrice
		a.send(chatID, fmt.Sprintf("Enter the price for «%s» (e.g. 8.99):", text))

	case stepItemPrice:
		price, err := decimal.NewFromString(strings.TrimPrefix(text, "$"))
		if err != nil || price.IsNegative() {
			a.send(chatID, "Invalid price. Send a number (e.g. 8.99).")
			return
		}
		st.Price = price.Round(2)
		st.Step = stepItemStock
		a.send(chatID, "How many are in stock?")

	case stepItemStock:
		stock, ok := parseStock(text)
		if !ok {
			a.send(chatID, "Invalid stock. Send a whole number (e.g. 20).")
			return
		}
		a.setState(userID, nil)
		item, err := a.repo.AddMenuItem(ctx, models.MenuItem{
			RestaurantID: st.RestaurantID,
			Name:         st.Name,
			Price:        st.Price,
			Category:     models.DefaultCategory,
			Available:    true,
			Stock:        stock,
		})
		if err != nil {
			a.send(chatID, "Failed to add: "+err.Error())
			return
		}
		a.log.WithFields(logrus.Fields{"item_id": item.ID, "restaurant_id": item.RestaurantID}).Info("menu item added")
		a.send(chatID, fmt.Sprintf("✅ Added %s — %s (%d in stock).", item.Name, money(item.Price), item.Stock))
		a.sendItems(ctx, chatID, st.RestaurantID)

	case stepStock:
		stock, ok := parseStock(text)
		if !ok {
			a.send(chatID, "Invalid stock. Send a whole number (e.g. 20).")
			return
		}
		a.setState(userID, nil)
		if _, err := a.repo.UpdateMenuItem(ctx, st.ItemID, models.MenuItemUpdate{Stock: &stock}); err != nil {
			a.send(chatID, "Failed to update: "+err.Error())
			return
		}
		a.send(chatID, fmt.Sprintf("✅ «%s» now has %d in stock.", st.Name, stock))
		a.sendItems(ctx, chatID, st.RestaurantID)

	default:
		a.setState(userID, nil)
		a.sendPanel(ctx, chatID)
	}
}

func parseStock(text string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(text, " ", ""))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// BuildAdminPanelCard lists restaurants to manage.
func BuildAdminPanelCard(rests []models.Restaurant) CardContent {
	text := "📋 Admin — Restaurants\n\nChoose a restaurant to manage or add a new one."
	if len(rests) == 0 {
		text = "📋 Admin — Restaurants\n\nNo restaurants yet."
	}
	var buttons [][]CardButton
	for _, r := range rests {
		buttons = append(buttons, []CardButton{{Text: r.Name, CallbackData: "adder:rest:" + r.ID}})
	}
	buttons = append(buttons, []CardButton{{Text: "➕ Add restaurant", CallbackData: "adder:add_rest"}})
	return CardContent{Text: text, Buttons: buttons}
}

func BuildAdminRestaurantCard(rest models.Restaurant) CardContent {
	text := "📋 Admin — " + rest.Name
	if rest.Cuisine != "" {
		text += " (" + rest.Cuisine + ")"
	}
	return CardContent{
		Text: text + "\n\nChoose an action below:",
		Buttons: [][]CardButton{
			{{Text: "➕ Add item", CallbackData: "adder:add_item:" + rest.ID}},
			{
				{Text: "📋 Menu items", CallbackData: "adder:items:" + rest.ID},
				{Text: "🧾 Orders", CallbackData: "adder:orders:" + rest.ID},
			},
			{{Text: "« Back to panel", CallbackData: "adder:back"}},
		},
	}
}

// BuildAdminItemsCard lists menu items with availability, stock and delete
// buttons.
func BuildAdminItemsCard(restaurantID string, items []models.MenuItem) CardContent {
	back := []CardButton{{Text: "« Back", CallbackData: "adder:rest:" + restaurantID}}
	if len(items) == 0 {
		return CardContent{Text: "No items on the menu.", Buttons: [][]CardButton{back}}
	}
	var sb strings.Builder
	sb.WriteString("📋 Menu items:\n\n")
	var buttons [][]CardButton
	for _, it := range items {
		state := "on sale"
		toggle := "⛔ Hide"
		if !it.Available {
			state = "hidden"
			toggle = "✅ Show"
		}
		fmt.Fprintf(&sb, "• %s — %s — %d left — %s\n", it.Name, money(it.Price), it.Stock, state)
		buttons = append(buttons, []CardButton{
			{Text: toggle + " " + it.Name, CallbackData: "adder:toggle:" + it.ID},
			{Text: "📦 Stock", CallbackData: "adder:stock:" + it.ID},
			{Text: "🗑", CallbackData: "adder:del:" + it.ID},
		})
	}
	buttons = append(buttons, back)
	return CardContent{Text: sb.String(), Buttons: buttons}
}

func BuildAdminOrdersCard(restaurantID string, orders []models.Order) CardContent {
	back := [][]CardButton{{{Text: "« Back", CallbackData: "adder:rest:" + restaurantID}}}
	if len(orders) == 0 {
		return CardContent{Text: "No orders yet.", Buttons: back}
	}
	var sb strings.Builder
	sb.WriteString("🧾 Latest orders:\n")
	for _, o := range orders {
		fmt.Fprintf(&sb, "\n%s — %s — %s — %s\n", o.CreatedAt.Format("2006-01-02 15:04"), shortID(o.ID), money(o.Total), statusLabel(o.Status))
		for _, l := range o.Lines {
			name := l.Name
			if name == "" {
				name = l.MenuItemID
			}
			fmt.Fprintf(&sb, "  • %s × %d\n", name, l.Quantity)
		}
	}
	return CardContent{Text: sb.String(), Buttons: back}
}

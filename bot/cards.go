package bot

import (
	"fmt"
	"strings"

	"unieats/cart"
	"unieats/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// CardButton is one inline button (text + callback_data or url).
type CardButton struct {
	Text         string
	CallbackData string
	URL          string // if set, use as URL button instead of callback
}

// CardContent is the text and optional inline keyboard of one message.
type CardContent struct {
	Text    string
	Buttons [][]CardButton
}

// cardMarkup converts CardContent.Buttons to Telegram inline keyboard (URL vs callback).
func cardMarkup(c CardContent) *tgbotapi.InlineKeyboardMarkup {
	if len(c.Buttons) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range c.Buttons {
		var btns []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			if btn.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.CallbackData))
			}
		}
		rows = append(rows, btns)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func statusLabel(s models.OrderStatus) string {
	switch s {
	case models.OrderStatusPending:
		return "🕐 Pending"
	case models.OrderStatusPreparing:
		return "👨‍🍳 Preparing"
	case models.OrderStatusReady:
		return "✅ Ready for pickup"
	case models.OrderStatusCompleted:
		return "🏁 Completed"
	default:
		return string(s)
	}
}

// nextStatus is the status an admin can move the order to, or "" when done.
func nextStatus(s models.OrderStatus) models.OrderStatus {
	switch s {
	case models.OrderStatusPending:
		return models.OrderStatusPreparing
	case models.OrderStatusPreparing:
		return models.OrderStatusReady
	case models.OrderStatusReady:
		return models.OrderStatusCompleted
	}
	return ""
}

var advanceLabels = map[models.OrderStatus]string{
	models.OrderStatusPreparing: "👨‍🍳 Start preparing",
	models.OrderStatusReady:     "✅ Mark ready",
	models.OrderStatusCompleted: "🏁 Mark completed",
}

// BuildAdminCard returns the order card sent to the admin chat, with a button
// for the next status step.
func BuildAdminCard(o models.Order) CardContent {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🧾 New order %s\n\n", o.ID)
	for _, l := range o.Lines {
		name := l.Name
		if name == "" {
			name = l.MenuItemID
		}
		fmt.Fprintf(&sb, "• %s × %d — %s\n", name, l.Quantity, money(l.PriceAtTime.Mul(decimal.NewFromInt(int64(l.Quantity)))))
	}
	fmt.Fprintf(&sb, "\nTotal: %s\n", money(o.Total))
	if o.UserID == models.AnonymousUserID {
		sb.WriteString("Customer: guest\n")
	}
	fmt.Fprintf(&sb, "Status: %s", statusLabel(o.Status))

	var buttons [][]CardButton
	if next := nextStatus(o.Status); next != "" {
		buttons = [][]CardButton{
			{{Text: advanceLabels[next], CallbackData: "order_status:" + o.ID + ":" + string(next)}},
		}
	}
	return CardContent{Text: sb.String(), Buttons: buttons}
}

// BuildConfirmationCard is shown to the customer after a successful order.
func BuildConfirmationCard(orderID string) CardContent {
	text := "✅ Order placed!\n\nOrder ID: " + orderID + "\n\nWe'll let the restaurant know. Check /orders for its status."
	return CardContent{
		Text:    text,
		Buttons: [][]CardButton{{{Text: "🍽 Order more", CallbackData: "restaurants"}}},
	}
}

// BuildRestaurantsCard lists the restaurants as buttons.
func BuildRestaurantsCard(rests []models.Restaurant) CardContent {
	if len(rests) == 0 {
		return CardContent{Text: "No restaurants are open right now."}
	}
	var sb strings.Builder
	sb.WriteString("🍽 Choose a restaurant:\n")
	var buttons [][]CardButton
	for _, r := range rests {
		fmt.Fprintf(&sb, "\n%s · ⭐ %.1f · %s", r.Name, r.Rating, r.WaitTime)
		if r.Description != "" {
			sb.WriteString("\n" + r.Description)
		}
		sb.WriteString("\n")
		buttons = append(buttons, []CardButton{{Text: r.Name, CallbackData: "rest:" + r.ID}})
	}
	buttons = append(buttons, []CardButton{{Text: "🛒 Cart", CallbackData: "cart"}})
	return CardContent{Text: sb.String(), Buttons: buttons}
}

// BuildMenuCard lists the menu of one restaurant grouped by category. Items
// that cannot be ordered are shown without a button.
func BuildMenuCard(rest models.Restaurant, items []models.MenuItem) CardContent {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", rest.Name)
	if len(items) == 0 {
		sb.WriteString("\nThe menu is empty.")
	}
	var buttons [][]CardButton
	category := ""
	for _, it := range items {
		if it.Category != category {
			category = it.Category
			fmt.Fprintf(&sb, "\n%s\n", strings.ToUpper(category))
		}
		orderable := it.Available && it.Stock > 0
		if orderable {
			fmt.Fprintf(&sb, "• %s — %s\n", it.Name, money(it.Price))
			buttons = append(buttons, []CardButton{{Text: "➕ " + it.Name, CallbackData: "add:" + it.ID}})
		} else {
			fmt.Fprintf(&sb, "• %s — sold out\n", it.Name)
		}
	}
	buttons = append(buttons, []CardButton{
		{Text: "⬅️ Restaurants", CallbackData: "restaurants"},
		{Text: "🛒 Cart", CallbackData: "cart"},
	})
	return CardContent{Text: sb.String(), Buttons: buttons}
}

// BuildCartCard renders the cart with per-line quantity controls.
func BuildCartCard(lines []cart.Line, total decimal.Decimal) CardContent {
	if len(lines) == 0 {
		return CardContent{
			Text:    "🛒 Your cart is empty.",
			Buttons: [][]CardButton{{{Text: "🍽 Browse restaurants", CallbackData: "restaurants"}}},
		}
	}
	var sb strings.Builder
	sb.WriteString("🛒 Your cart:\n\n")
	var buttons [][]CardButton
	for _, l := range lines {
		fmt.Fprintf(&sb, "• %s × %d — %s\n", l.Item.Name, l.Quantity, money(l.Subtotal()))
		buttons = append(buttons, []CardButton{
			{Text: "➖", CallbackData: "dec:" + l.Item.ID},
			{Text: l.Item.Name, CallbackData: "noop"},
			{Text: "➕", CallbackData: "inc:" + l.Item.ID},
			{Text: "🗑", CallbackData: "rm:" + l.Item.ID},
		})
	}
	fmt.Fprintf(&sb, "\nTotal: %s", money(total))
	buttons = append(buttons,
		[]CardButton{{Text: "✅ Place order", CallbackData: "checkout"}},
		[]CardButton{{Text: "🧹 Clear cart", CallbackData: "clear"}},
	)
	return CardContent{Text: sb.String(), Buttons: buttons}
}

// BuildSwapCard asks whether to replace a cart from another restaurant.
func BuildSwapCard(item models.MenuItem) CardContent {
	return CardContent{
		Text: "Your cart has items from another restaurant. Start a new cart with " + item.Name + "?",
		Buttons: [][]CardButton{{
			{Text: "Start new cart", CallbackData: "swap:" + item.ID},
			{Text: "Keep current cart", CallbackData: "keep"},
		}},
	}
}

// BuildOrdersCard lists past orders, newest first.
func BuildOrdersCard(orders []models.Order) CardContent {
	if len(orders) == 0 {
		return CardContent{Text: "You have no orders yet."}
	}
	var sb strings.Builder
	sb.WriteString("📋 Your orders:\n\n")
	for _, o := range orders {
		fmt.Fprintf(&sb, "%s — %s — %s — %s\n", o.CreatedAt.Format("2006-01-02"), shortID(o.ID), money(o.Total), statusLabel(o.Status))
	}
	return CardContent{Text: sb.String()}
}

func shortID(id string) string {
	if len(id) > 8 {
		return "#" + id[:8]
	}
	return "#" + id
}

package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"unieats/cart"
	"unieats/checkout"
	"unieats/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// parseCallback splits callback data into its action and argument.
func parseCallback(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, ":")
	return action, arg
}

// noticeText returns the message shown for a cart error. Persistence failures
// get a generic text; the details go to the log.
func noticeText(err error) string {
	if cart.IsNotice(err) {
		return err.Error()
	}
	return "Something went wrong, please try again."
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, from *tgbotapi.User) {
	if _, err := b.repo.EnsureCustomer(ctx, from.ID, displayName(from)); err != nil {
		b.log.WithError(err).WithField("tg_user_id", from.ID).Warn("ensure customer")
	}
	b.send(chatID, "👋 Welcome to UniEats! Order from campus restaurants right here.\n\nUse /register to sign in so your orders are saved to your account.")
	b.sendRestaurants(ctx, chatID, 0)
}

func (b *Bot) sendRestaurants(ctx context.Context, chatID int64, editMsgID int) {
	rests, err := b.repo.GetRestaurants(ctx)
	if err != nil {
		b.log.WithError(err).Error("list restaurants")
		b.send(chatID, "Could not load restaurants, please try again.")
		return
	}
	b.show(chatID, editMsgID, BuildRestaurantsCard(rests))
}

func (b *Bot) sendMenu(ctx context.Context, chatID int64, editMsgID int, restaurantID string) {
	rest, err := b.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, services.ErrRestaurantNotFound) {
			b.send(chatID, "That restaurant is no longer available.")
			return
		}
		b.log.WithError(err).WithField("restaurant_id", restaurantID).Error("get restaurant")
		b.send(chatID, "Could not load the menu, please try again.")
		return
	}
	items, err := b.repo.GetMenuItems(ctx, restaurantID)
	if err != nil {
		b.log.WithError(err).WithField("restaurant_id", restaurantID).Error("list menu")
		b.send(chatID, "Could not load the menu, please try again.")
		return
	}
	b.show(chatID, editMsgID, BuildMenuCard(*rest, items))
}

func (b *Bot) sendCart(ctx context.Context, chatID int64, editMsgID int) {
	e := b.cartFor(ctx, chatID)
	b.show(chatID, editMsgID, BuildCartCard(e.Lines(), e.TotalPrice()))
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		b.toast(cq.ID, "")
		return
	}
	chatID := cq.Message.Chat.ID
	msgID := cq.Message.MessageID
	action, arg := parseCallback(cq.Data)

	switch action {
	case "restaurants":
		b.toast(cq.ID, "")
		b.sendRestaurants(ctx, chatID, msgID)
	case "rest":
		b.toast(cq.ID, "")
		b.sendMenu(ctx, chatID, msgID, arg)
	case "cart":
		b.toast(cq.ID, "")
		b.sendCart(ctx, chatID, msgID)
	case "add":
		b.handleAdd(ctx, cq, arg, false)
	case "swap":
		b.handleAdd(ctx, cq, arg, true)
	case "keep":
		b.toast(cq.ID, "Kept your current cart.")
		b.sendCart(ctx, chatID, msgID)
	case "inc", "dec":
		b.handleStep(ctx, cq, arg, action == "inc")
	case "rm":
		e := b.cartFor(ctx, chatID)
		if err := e.RemoveItem(ctx, arg); err != nil {
			b.cartFailed(cq, err)
			return
		}
		b.toast(cq.ID, "Removed.")
		b.sendCart(ctx, chatID, msgID)
	case "clear":
		b.toast(cq.ID, "")
		b.handleClear(ctx, chatID, msgID)
	case "checkout":
		b.handleCheckout(ctx, cq)
	default:
		b.toast(cq.ID, "")
	}
}

// handleAdd adds one menu item. A cross-restaurant add is not applied;
// instead the shopper is asked, and "swap" comes back with replace set.
func (b *Bot) handleAdd(ctx context.Context, cq *tgbotapi.CallbackQuery, itemID string, replace bool) {
	chatID := cq.Message.Chat.ID
	item, err := b.repo.GetMenuItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, services.ErrMenuItemNotFound) {
			b.toast(cq.ID, "This item is no longer on the menu.")
			return
		}
		b.log.WithError(err).WithField("item_id", itemID).Error("get menu item")
		b.toast(cq.ID, "Could not load the item, please try again.")
		return
	}

	e := b.cartFor(ctx, chatID)
	var asked bool
	confirm := func(string, string) bool {
		asked = true
		return replace
	}
	outcome, err := e.AddItem(ctx, *item, confirm)
	if err != nil {
		b.cartFailed(cq, err)
		return
	}

	switch outcome {
	case cart.OutcomeDeclined:
		if asked && !replace {
			b.toast(cq.ID, "")
			b.show(chatID, 0, BuildSwapCard(*item))
			return
		}
		b.toast(cq.ID, "")
	case cart.OutcomeReplaced:
		b.toast(cq.ID, "Started a new cart with "+item.Name+".")
		b.sendCart(ctx, chatID, cq.Message.MessageID)
	case cart.OutcomeIncremented:
		if l, ok := e.Line(item.ID); ok {
			b.toast(cq.ID, item.Name+" × "+strconv.Itoa(l.Quantity)+" in your cart.")
		} else {
			b.toast(cq.ID, "")
		}
	default:
		b.toast(cq.ID, "Added "+item.Name+" to your cart.")
	}
}

func (b *Bot) handleStep(ctx context.Context, cq *tgbotapi.CallbackQuery, itemID string, up bool) {
	chatID := cq.Message.Chat.ID
	e := b.cartFor(ctx, chatID)
	l, ok := e.Line(itemID)
	if !ok {
		b.toast(cq.ID, "")
		b.sendCart(ctx, chatID, cq.Message.MessageID)
		return
	}
	qty := l.Quantity - 1
	if up {
		qty = l.Quantity + 1
	}
	if err := e.UpdateQuantity(ctx, itemID, qty); err != nil {
		b.cartFailed(cq, err)
		return
	}
	b.toast(cq.ID, "")
	b.sendCart(ctx, chatID, cq.Message.MessageID)
}

func (b *Bot) handleClear(ctx context.Context, chatID int64, editMsgID int) {
	e := b.cartFor(ctx, chatID)
	if err := e.Clear(ctx); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Error("clear cart")
		b.send(chatID, noticeText(err))
		return
	}
	b.show(chatID, editMsgID, CardContent{
		Text:    "🧹 Cart cleared.",
		Buttons: [][]CardButton{{{Text: "🍽 Browse restaurants", CallbackData: "restaurants"}}},
	})
}

func (b *Bot) handleCheckout(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	if b.placer == nil {
		b.toast(cq.ID, "Ordering is not available right now.")
		return
	}
	userID := cq.From.ID
	wait, err := b.repo.CheckoutWaitSeconds(ctx, userID)
	if err != nil {
		b.log.WithError(err).WithField("tg_user_id", userID).Warn("checkout throttle lookup")
	}
	if wait > 0 {
		b.toast(cq.ID, "Please wait "+strconv.Itoa(wait)+"s before trying again.")
		return
	}

	e := b.cartFor(ctx, chatID)
	orderID, err := b.placer.PlaceOrder(withTelegramUser(ctx, userID), e)
	if err != nil {
		if errors.Is(err, checkout.ErrNoRestaurant) {
			b.toast(cq.ID, "Your cart is empty.")
			return
		}
		if err := b.repo.RecordCheckoutFailed(ctx, userID); err != nil {
			b.log.WithError(err).WithField("tg_user_id", userID).Warn("record failed checkout")
		}
		var perr *checkout.PlacementError
		if errors.As(err, &perr) {
			b.toast(cq.ID, "Order failed.")
			b.send(chatID, perr.Error())
			return
		}
		b.log.WithError(err).WithField("chat_id", chatID).Error("place order")
		b.toast(cq.ID, "Order failed.")
		b.send(chatID, "Failed to place order, please try again.")
		return
	}
	if err := b.repo.RecordCheckoutSuccess(ctx, userID); err != nil {
		b.log.WithError(err).WithField("tg_user_id", userID).Warn("record checkout")
	}
	b.toast(cq.ID, "Order placed!")
	b.show(chatID, cq.Message.MessageID, BuildConfirmationCard(orderID))
}

func (b *Bot) cartFailed(cq *tgbotapi.CallbackQuery, err error) {
	if !cart.IsNotice(err) {
		b.log.WithError(err).WithField("chat_id", cq.Message.Chat.ID).Error("cart update")
	}
	b.toast(cq.ID, noticeText(err))
}

func (b *Bot) handleOrders(ctx context.Context, chatID int64, userID int64) {
	c, err := b.repo.GetCustomer(ctx, userID)
	if err != nil {
		b.log.WithError(err).WithField("tg_user_id", userID).Error("get customer")
		b.send(chatID, "Could not load your orders, please try again.")
		return
	}
	if c == nil || !c.SignedIn {
		b.send(chatID, "Sign in with /register to see your orders.")
		return
	}
	orders, err := b.repo.ListUserOrders(ctx, c.ID, ordersLimit)
	if err != nil {
		b.log.WithError(err).WithField("user_id", c.ID).Error("list orders")
		b.send(chatID, "Could not load your orders, please try again.")
		return
	}
	b.show(chatID, 0, BuildOrdersCard(orders))
}

func (b *Bot) handleRegister(ctx context.Context, chatID int64, from *tgbotapi.User) {
	c, err := b.repo.EnsureCustomer(ctx, from.ID, displayName(from))
	if err == nil {
		err = b.repo.SetSignedIn(ctx, from.ID, true)
	}
	if err != nil {
		b.log.WithError(err).WithField("tg_user_id", from.ID).Error("sign in")
		b.send(chatID, "Could not sign you in, please try again.")
		return
	}
	b.log.WithField("user_id", c.ID).Info("customer signed in")
	b.send(chatID, "✅ Signed in as "+c.Name+". Your next orders will be saved to your account.")
}

func (b *Bot) handleLogout(ctx context.Context, chatID int64, userID int64) {
	if err := b.repo.SetSignedIn(ctx, userID, false); err != nil {
		b.log.WithError(err).WithField("tg_user_id", userID).Error("sign out")
		b.send(chatID, "Could not sign you out, please try again.")
		return
	}
	b.send(chatID, "👋 Signed out. Orders will be placed as a guest.")
}

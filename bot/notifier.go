package bot

import (
	"context"
	"fmt"
	"strings"

	"unieats/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// AdminNotifier sends the order card of every placed order to the admin chat
// through the message bot. It satisfies checkout.Notifier.
type AdminNotifier struct {
	api         sender
	adminChatID int64
}

func (n *AdminNotifier) OrderPlaced(_ context.Context, o models.Order) error {
	c := BuildAdminCard(o)
	msg := tgbotapi.NewMessage(n.adminChatID, c.Text)
	if kb := cardMarkup(c); kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send admin card for order %s: %w", o.ID, err)
	}
	return nil
}

func (b *Bot) startOrderStatusCallbacks(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.messageBot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			cq := update.CallbackQuery
			if cq != nil && strings.HasPrefix(cq.Data, "order_status:") {
				b.handleOrderStatusCallback(ctx, cq)
			}
		}
	}
}

func (b *Bot) handleOrderStatusCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	answer := func(text string) {
		if _, err := b.messageBot.Request(tgbotapi.NewCallback(cq.ID, text)); err != nil {
			b.log.WithError(err).Debug("answer callback")
		}
	}
	parts := strings.SplitN(cq.Data, ":", 3)
	if len(parts) != 3 || parts[1] == "" {
		answer("Invalid callback.")
		return
	}
	if cq.From == nil || cq.From.ID != b.admin {
		answer("Unauthorized.")
		return
	}
	orderID, status := parts[1], models.OrderStatus(parts[2])
	if !status.Valid() {
		answer("Invalid status.")
		return
	}

	o, err := b.repo.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{"order_id": orderID, "status": status}).Warn("order status update failed")
		answer(err.Error())
		return
	}
	answer("✅ Status updated.")
	if cq.Message == nil {
		return
	}

	// Lines are not reloaded, keep the card body and swap the status part.
	c := BuildAdminCard(*o)
	c.Text = replaceStatusLine(cq.Message.Text, statusLabel(o.Status))
	edit := tgbotapi.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, c.Text)
	edit.ReplyMarkup = cardMarkup(c)
	if _, err := b.messageBot.Send(edit); err != nil && !strings.Contains(err.Error(), "message is not modified") {
		b.log.WithError(err).WithField("order_id", orderID).Warn("edit admin card")
	}
}

// replaceStatusLine swaps the "Status: ..." line of a card.
func replaceStatusLine(text, label string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, "Status: ") {
			lines[i] = "Status: " + label
			return strings.Join(lines, "\n")
		}
	}
	return text + "\nStatus: " + label
}

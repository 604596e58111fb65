package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"unieats/cart"
	"unieats/config"
	"unieats/models"
	"unieats/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// sender is the part of *tgbotapi.BotAPI the storefront uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// Repository is what the storefront reads and writes besides the cart.
// *services.Repo implements it.
type Repository interface {
	GetRestaurants(ctx context.Context) ([]models.Restaurant, error)
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	GetMenuItems(ctx context.Context, restaurantID string) ([]models.MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
	ListUserOrders(ctx context.Context, userID string, limit int) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
	Customers
	CheckoutThrottle
}

// CheckoutThrottle slows down retries after failed placements. Every failed
// attempt may leave a partial order behind.
type CheckoutThrottle interface {
	CheckoutWaitSeconds(ctx context.Context, tgUserID int64) (int, error)
	RecordCheckoutFailed(ctx context.Context, tgUserID int64) error
	RecordCheckoutSuccess(ctx context.Context, tgUserID int64) error
}

// OrderPlacer turns a cart into an order. *checkout.Placer implements it.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, c *cart.Engine) (string, error)
}

const (
	ordersLimit = 10

	// Carts untouched for cartIdleTTL are dropped from memory; the next update
	// of that chat loads them back from the store.
	cartIdleTTL       = 30 * time.Minute
	cartSweepInterval = time.Minute
)

type chatCart struct {
	engine   *cart.Engine
	lastUsed time.Time
}

type Bot struct {
	api        sender
	messageBot sender // bot for sending order notifications (MESSAGE_TOKEN)
	admin      int64

	repo   Repository
	store  storage.Store
	placer OrderPlacer
	log    logrus.FieldLogger

	carts     map[int64]*chatCart // by chat id
	cartsMu   sync.Mutex
	lastSweep time.Time
	now       func() time.Time
}

func New(cfg *config.Config, repo Repository, store storage.Store, log logrus.FieldLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	b := newBot(api, repo, store, log)
	b.admin = cfg.Telegram.AdminID
	// Initialize message bot if MESSAGE_TOKEN is set
	if cfg.Telegram.MessageToken != "" {
		messageBot, err := tgbotapi.NewBotAPI(cfg.Telegram.MessageToken)
		if err != nil {
			log.WithError(err).Warn("failed to initialize message bot")
		} else {
			b.messageBot = messageBot
		}
	}
	return b, nil
}

func newBot(api sender, repo Repository, store storage.Store, log logrus.FieldLogger) *Bot {
	return &Bot{
		api:   api,
		repo:  repo,
		store: store,
		log:   log,
		carts: make(map[int64]*chatCart),
		now:   time.Now,
	}
}

// SetPlacer sets the order workflow used by the checkout button.
func (b *Bot) SetPlacer(p OrderPlacer) {
	b.placer = p
}

// AdminNotifier returns the admin order-card notifier, or nil when there is
// no message bot or admin chat.
func (b *Bot) AdminNotifier() *AdminNotifier {
	if b.messageBot == nil || b.admin == 0 {
		return nil
	}
	return &AdminNotifier{api: b.messageBot, adminChatID: b.admin}
}

// cartFor returns the cart engine of a chat, loading it from the store on
// first use.
func (b *Bot) cartFor(ctx context.Context, chatID int64) *cart.Engine {
	b.cartsMu.Lock()
	defer b.cartsMu.Unlock()
	now := b.now()
	b.evictIdleCarts(now)
	if c, ok := b.carts[chatID]; ok {
		c.lastUsed = now
		return c.engine
	}
	slots := storage.Namespace(b.store, "chat:"+strconv.FormatInt(chatID, 10))
	e := cart.Load(ctx, slots, b.log.WithField("chat_id", chatID))
	b.carts[chatID] = &chatCart{engine: e, lastUsed: now}
	return e
}

// evictIdleCarts drops idle engines at most once per cartSweepInterval.
// Callers hold cartsMu.
func (b *Bot) evictIdleCarts(now time.Time) {
	if now.Sub(b.lastSweep) < cartSweepInterval {
		return
	}
	b.lastSweep = now
	for id, c := range b.carts {
		if now.Sub(c.lastUsed) > cartIdleTTL {
			delete(b.carts, id)
		}
	}
	b.log.WithField("carts", len(b.carts)).Debug("idle carts evicted")
}

func (b *Bot) setBotCommands() error {
	cfg := tgbotapi.SetMyCommandsConfig{
		Commands: []tgbotapi.BotCommand{
			{Command: "start", Description: "Start ordering"},
			{Command: "restaurants", Description: "Browse restaurants"},
			{Command: "cart", Description: "Show my cart"},
			{Command: "orders", Description: "My orders"},
			{Command: "clear", Description: "Empty my cart"},
			{Command: "register", Description: "Sign in"},
			{Command: "logout", Description: "Sign out"},
		},
	}
	_, err := b.api.Request(cfg)
	return err
}

// Start polls for updates until ctx is done. Updates are handled one at a
// time.
func (b *Bot) Start(ctx context.Context) {
	// Register bot command menu (Telegram client shows these in the input menu)
	if err := b.setBotCommands(); err != nil {
		b.log.WithError(err).Warn("set bot commands")
	}
	if b.messageBot != nil {
		go b.startOrderStatusCallbacks(ctx)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case text == "/start":
		b.handleStart(ctx, chatID, msg.From)
	case text == "/restaurants":
		b.sendRestaurants(ctx, chatID, 0)
	case text == "/cart":
		b.sendCart(ctx, chatID, 0)
	case text == "/orders":
		b.handleOrders(ctx, chatID, userID)
	case text == "/clear":
		b.handleClear(ctx, chatID, 0)
	case text == "/register":
		b.handleRegister(ctx, chatID, msg.From)
	case text == "/logout":
		b.handleLogout(ctx, chatID, userID)
	default:
		b.send(chatID, "Use /restaurants to browse menus or /cart to see your cart.")
	}
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Warn("send error")
	}
}

// show edits message editMsgID into c, or sends c as a new message when
// editMsgID is 0 or the edit fails.
func (b *Bot) show(chatID int64, editMsgID int, c CardContent) {
	kb := cardMarkup(c)
	if editMsgID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, editMsgID, c.Text)
		edit.ReplyMarkup = kb
		_, err := b.api.Send(edit)
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			return
		}
		b.log.WithError(err).WithField("chat_id", chatID).Debug("edit failed, sending new message")
	}
	msg := tgbotapi.NewMessage(chatID, c.Text)
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Warn("send error")
	}
}

// toast answers a callback query with a short notification.
func (b *Bot) toast(callbackQueryID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackQueryID, text)); err != nil {
		b.log.WithError(err).Debug("answer callback")
	}
}

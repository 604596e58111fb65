package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"unieats/bot"
	"unieats/checkout"
	"unieats/config"
	"unieats/db"
	"unieats/events"
	"unieats/services"
	"unieats/storage"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := newLogger(cfg.Log)

	// Check for migrate subcommand
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := db.RunMigrations(cfg.DB.URL(), log); err != nil {
			log.WithError(err).Fatal("migrate")
		}
		return
	}

	if cfg.Telegram.Token == "" {
		log.Fatal("TOKEN not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional auto-migration (useful in production and for fresh DBs).
	if cfg.AutoMigrate {
		if err := db.RunMigrations(cfg.DB.URL(), log); err != nil {
			log.WithError(err).Fatal("migrate")
		}
	}

	if err := db.Init(ctx, cfg.DB); err != nil {
		log.WithError(err).Fatal("db")
	}
	defer db.Close()

	repo := services.NewRepo(db.Pool)
	if cfg.SeedCatalog {
		n, err := repo.SeedCatalog(ctx)
		if err != nil {
			log.WithError(err).Fatal("seed catalog")
		}
		log.WithField("rows", n).Info("catalog seeded")
	}

	store, closeStore, err := openCartStore(ctx, cfg.Cart, db.Pool)
	if err != nil {
		log.WithError(err).Fatal("cart store")
	}
	defer closeStore()

	b, err := bot.New(cfg, repo, store, log)
	if err != nil {
		log.WithError(err).Fatal("bot")
	}

	var notifiers []checkout.Notifier
	if n := b.AdminNotifier(); n != nil {
		notifiers = append(notifiers, n)
	}
	if cfg.Events.AMQPURL != "" {
		pub, conn, err := events.Dial(cfg.Events.AMQPURL, log)
		if err != nil {
			// Order events are optional; the shop keeps working without them.
			log.WithError(err).Warn("order events disabled")
		} else {
			defer conn.Close()
			defer pub.Close()
			notifiers = append(notifiers, pub)
		}
	}
	b.SetPlacer(checkout.NewPlacer(repo, bot.NewCustomerIdentity(repo, log), log, notifiers...))

	// Optional catalog admin bot (ADDER_TOKEN).
	if cfg.Telegram.AdderToken != "" {
		adder, err := bot.NewAdderBot(cfg, repo, log)
		if err != nil {
			log.WithError(err).Warn("adder bot disabled")
		} else {
			go adder.Start(ctx)
			log.Info("Adder bot started.")
		}
	}

	log.WithField("cart_store", cfg.Cart.Store).Info("Bot started.")
	b.Start(ctx)
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// openCartStore returns the store behind every chat's cart and a func that
// releases it.
func openCartStore(ctx context.Context, cfg config.CartConfig, pool db.Querier) (storage.Store, func(), error) {
	switch cfg.Store {
	case config.CartStoreMemory:
		return storage.NewMemoryStore(), func() {}, nil
	case config.CartStoreRedis:
		rs, err := storage.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	case config.CartStorePostgres, "":
		return storage.NewPostgresStore(pool), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown CART_STORE %q", cfg.Store)
}

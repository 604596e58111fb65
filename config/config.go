package config

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DB       DBConfig
	Telegram TelegramConfig
	Cart     CartConfig
	Events   EventsConfig
	Log      LogConfig

	AutoMigrate bool
	SeedCatalog bool
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// URL is the postgres:// connection string shared by pgx and the migrator.
func (c DBConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

type TelegramConfig struct {
	Token        string
	MessageToken string // token for sending order notifications to admin
	AdderToken   string // token of the catalog admin bot
	AdminID      int64
}

// CartConfig selects where per-chat cart slots are kept.
type CartConfig struct {
	Store    string // "memory", "redis" or "postgres"
	RedisURL string
}

type EventsConfig struct {
	AMQPURL string // empty disables order event publishing
}

type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

const (
	CartStoreMemory   = "memory"
	CartStoreRedis    = "redis"
	CartStorePostgres = "postgres"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	port, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	adminID, _ := strconv.ParseInt(getEnv("ADMIN_ID", "0"), 10, 64)

	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     port,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "unieats"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Telegram: TelegramConfig{
			Token:        getEnv("TOKEN", ""),
			MessageToken: getEnv("MESSAGE_TOKEN", ""),
			AdderToken:   getEnv("ADDER_TOKEN", ""),
			AdminID:      adminID,
		},
		Cart: CartConfig{
			Store:    strings.ToLower(getEnv("CART_STORE", CartStorePostgres)),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Events: EventsConfig{
			AMQPURL: getEnv("AMQP_URL", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		AutoMigrate: getBool("AUTO_MIGRATE"),
		SeedCatalog: getBool("SEED_CATALOG"),
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return v == "1" || strings.EqualFold(v, "true")
}

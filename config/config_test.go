package config

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DB_HOST", "DB_PORT", "DB_NAME", "CART_STORE", "AUTO_MIGRATE", "SEED_CATALOG", "LOG_LEVEL", "AMQP_URL", "ADMIN_ID"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "unieats", cfg.DB.Database)
	assert.Equal(t, CartStorePostgres, cfg.Cart.Store)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Events.AMQPURL)
	assert.Zero(t, cfg.Telegram.AdminID)
	assert.False(t, cfg.AutoMigrate)
	assert.False(t, cfg.SeedCatalog)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USER", "shop")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "campus")
	t.Setenv("DB_SSLMODE", "require")
	t.Setenv("ADMIN_ID", "12345")
	t.Setenv("CART_STORE", "Redis")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("SEED_CATALOG", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://shop:secret@db:6543/campus?sslmode=require", cfg.DB.URL())
	assert.Equal(t, int64(12345), cfg.Telegram.AdminID)
	assert.Equal(t, CartStoreRedis, cfg.Cart.Store)
	assert.True(t, cfg.AutoMigrate)
	assert.True(t, cfg.SeedCatalog)
}

func TestDBConfigURL_EscapesCredentials(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "shop", Password: "p@ss/w:rd", Database: "unieats", SSLMode: "disable"}

	raw := c.URL()
	assert.Equal(t, "postgres://shop:p%40ss%2Fw%3Ard@db:5432/unieats?sslmode=disable", raw)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss/w:rd", pw)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "/unieats", u.Path)
}

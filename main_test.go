package main

import (
	"context"
	"testing"

	"unieats/config"
	"unieats/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	log := newLogger(config.LogConfig{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log = newLogger(config.LogConfig{Level: "nonsense", Format: "text"})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestOpenCartStore(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := openCartStore(ctx, config.CartConfig{Store: config.CartStoreMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, s)
	closeFn()

	mr := miniredis.RunT(t)
	s, closeFn, err = openCartStore(ctx, config.CartConfig{Store: config.CartStoreRedis, RedisURL: "redis://" + mr.Addr()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.RedisStore{}, s)
	closeFn()

	s, _, err = openCartStore(ctx, config.CartConfig{Store: config.CartStorePostgres}, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.PostgresStore{}, s)

	_, _, err = openCartStore(ctx, config.CartConfig{Store: "etcd"}, nil)
	assert.ErrorContains(t, err, "unknown CART_STORE")
}

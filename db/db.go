package db

import (
	"context"

	"unieats/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

// Querier is the subset of *pgxpool.Pool the repositories use, so tests can
// substitute pgxmock.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func Init(ctx context.Context, cfg config.DBConfig) error {
	var err error
	Pool, err = pgxpool.New(ctx, cfg.URL())
	if err != nil {
		return err
	}
	return Pool.Ping(ctx)
}

func Close() {
	if Pool != nil {
		Pool.Close()
	}
}

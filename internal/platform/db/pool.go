package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens the connection pool backing a postgres knowledge-base
// source. The pool is read-mostly: fact rows are fetched in bulk on load
// and reload, so a small pool is plenty even under query traffic.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	if minConns > maxConns {
		minConns = maxConns
	}
	cfg.MinConns = minConns
	cfg.ConnConfig.RuntimeParams["application_name"] = "reasoner"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping knowledge-base database: %w", err)
	}

	return pool, nil
}

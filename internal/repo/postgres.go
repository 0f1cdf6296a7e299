package repo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// NewPostgres opens a pgx connection pool and exposes it through database/sql.
func NewPostgres(ctx context.Context, databaseURL, schema string, logger *slog.Logger) (*SQLRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	r := newSQLRepository(stdlib.OpenDBFromPool(pool), dialectPostgres, logger)
	r.onClose = pool.Close

	if err := r.Ping(ctx); err != nil {
		r.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return r, nil
}

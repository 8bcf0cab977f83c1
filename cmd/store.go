package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/vanline-group/recon-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "recon.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPostgres is for the commands whose set-based SQL only runs on Postgres
// (linkage, duplicate flagging).
func initPostgres(ctx context.Context) (*store.PostgresStore, error) {
	if cfg.Store.Driver != "postgres" {
		return nil, eris.Errorf("command requires the postgres store driver, got %s", cfg.Store.Driver)
	}
	return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}

package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/blob"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "paytrack.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initBlob() (blob.Storage, error) {
	switch cfg.Blob.Driver {
	case "local":
		return blob.NewLocal(cfg.Blob.Dir)
	case "http":
		if cfg.Blob.BaseURL == "" {
			return nil, eris.New("blob base URL is required (PAYTRACK_BLOB_BASE_URL)")
		}
		return blob.NewHTTP(blob.HTTPOptions{
			BaseURL:           cfg.Blob.BaseURL,
			Token:             cfg.Blob.Token,
			RequestsPerSecond: cfg.Blob.RequestsPerSecond,
		})
	default:
		return nil, eris.Errorf("unsupported blob driver: %s", cfg.Blob.Driver)
	}
}

package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jengzang/whisker-watch-go/internal/config"
	"github.com/jengzang/whisker-watch-go/internal/repository"
)

// viewportStore picks the viewport persistence backend. Redis falls back to
// SQLite when it cannot be reached at startup.
func viewportStore(cfg *config.Config, db *sql.DB, log *slog.Logger) repository.ViewportStore {
	if cfg.StateBackend != "redis" {
		return repository.NewSQLiteViewportStore(db)
	}

	client := repository.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if client == nil {
		return repository.NewSQLiteViewportStore(db)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis_unavailable_using_sqlite", "addr", cfg.RedisAddr, "err", err)
		_ = client.Close()
		return repository.NewSQLiteViewportStore(db)
	}
	log.Info("redis_connected", "addr", cfg.RedisAddr)
	return repository.NewRedisViewportStore(client, "", 0)
}

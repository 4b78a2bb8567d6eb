package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jengzang/whisker-watch-go/internal/api"
	"github.com/jengzang/whisker-watch-go/internal/config"
	"github.com/jengzang/whisker-watch-go/internal/database"
	"github.com/jengzang/whisker-watch-go/internal/logger"
	"github.com/jengzang/whisker-watch-go/internal/repository"
	"github.com/jengzang/whisker-watch-go/internal/service"
	"github.com/jengzang/whisker-watch-go/internal/tiles"
)

func main() {
	if err := run(); err != nil {
		logger.L().Error("server_exit", "err", err)
		os.Exit(1)
	}
}

// run serves until a signal arrives or the listener fails. Every resource is
// released by its defer before run returns.
func run() error {
	cfg := config.Load()
	log := logger.Setup()

	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.NewMigrationManager(db).RunMigrations(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	incidents := service.NewIncidentService(repository.NewIncidentRepository(db))
	maps := service.NewMapService(service.MapServiceOptions{
		MinZoom:       cfg.MinZoom,
		MaxZoom:       cfg.MaxZoom,
		Basemaps:      cfg.Basemaps(),
		Style:         cfg.TileStyle,
		Fetcher:       tiles.NewHTTPFetcher(cfg.TileTimeout, cfg.TileUserAgent),
		CacheCapacity: cfg.TileCacheSize,
		SessionTTL:    cfg.SessionTTL,
		Logger:        log,
	}, incidents, viewportStore(cfg, db, log))
	defer maps.Close()
	incidents.OnChange(maps.RefreshMarkers)

	router, stopRouter := api.SetupRouter(cfg, api.Services{Incidents: incidents, Maps: maps}, log)
	defer stopRouter()

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server_starting", "addr", cfg.Port)
		serveErr <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}
	signal.Stop(quit)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server_stopped")
	return nil
}

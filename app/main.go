package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gktp0528-oss/europe-market-sub001/app/api"
	"github.com/gktp0528-oss/europe-market-sub001/app/cfg"
	"github.com/gktp0528-oss/europe-market-sub001/app/clock"
	"github.com/gktp0528-oss/europe-market-sub001/app/country"
	"github.com/gktp0528-oss/europe-market-sub001/app/database"
	"github.com/gktp0528-oss/europe-market-sub001/app/feed"
	"github.com/gktp0528-oss/europe-market-sub001/app/geo"
	"github.com/gktp0528-oss/europe-market-sub001/app/storage"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Eurosari server", "version", appCfg.Version, "post_store", appCfg.PostStore)

	posts, closePosts, err := openPostStore(appCfg)
	if err != nil {
		slog.Error("Failed to open post store", "error", err)
		os.Exit(1)
	}
	defer closePosts()

	var persist country.Persistence
	localStore, err := storage.NewLocalStore(appCfg.LocalStorePath)
	if err != nil {
		slog.Warn("Local store unavailable, country selection will not persist", "path", appCfg.LocalStorePath, "error", err)
	} else {
		defer localStore.Close()
		persist = localStore
	}

	registry := country.Default()
	resolver := country.NewResolver(registry)
	slog.Info("Country registry loaded", "countries", registry.Len(), "locations", resolver.Size())

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	geoClient := geo.New(appCfg.GeoLookupURL, appCfg.UserAgent, appCfg.GeoTimeout())
	selection := country.NewSelectionStore(rootCtx, registry, geoClient, persist, country.SelectionOptions{
		DefaultCode: appCfg.DefaultCountry,
		GeoTimeout:  appCfg.GeoTimeout(),
	})
	selection.Subscribe(func(sel country.Selection) {
		slog.Info("Country selection changed", "code", sel.Country.Code, "source", selection.Source())
	})

	ticker := clock.NewMinuteTicker(clock.TickerOptions{})
	ticker.Start()
	defer ticker.Stop()

	sessions := api.NewSessionManager(posts, appCfg.DebounceWindow(), appCfg.IdleTimeout())
	ticks, unsubscribe := ticker.Subscribe()
	defer unsubscribe()
	go sessions.Run(ticks)
	defer sessions.CloseAll()

	handler := api.NewHandler(registry, resolver, selection, ticker, posts, sessions, appCfg.PageSize)
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
}

// openPostStore returns the configured post backend and its closer.
func openPostStore(appCfg *cfg.Cfg) (api.PostStore, func(), error) {
	if appCfg.PostStore == "memory" {
		slog.Warn("Serving posts from memory; nothing will be stored")
		return feed.NewMemoryStore(), func() {}, nil
	}

	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName, appCfg.DBSSLMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("Connected to database", "host", appCfg.DBHost, "name", appCfg.DBName)

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations applied", "version", version, "dirty", dirty)

	return database.NewPostRepository(db), func() { db.Close() }, nil
}

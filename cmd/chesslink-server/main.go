package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/castlebridge/chesslink/internal/cache"
	appcfg "github.com/castlebridge/chesslink/internal/config"
	"github.com/castlebridge/chesslink/internal/game"
	"github.com/castlebridge/chesslink/internal/httpapi"
	"github.com/castlebridge/chesslink/internal/obslog"
	"github.com/castlebridge/chesslink/internal/rules"
	"github.com/castlebridge/chesslink/internal/store"
	"github.com/castlebridge/chesslink/internal/ws"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	// Persistence: Postgres when configured, in-memory otherwise.
	var gw store.Gateway
	if cfg.DatabaseURL != "" {
		gw, err = store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres init error: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := store.EnsureSchema(ctx, gw); err != nil {
			cancel()
			log.Fatalf("schema init error: %v", err)
		}
		cancel()
	} else {
		obslog.L().Warn("no DATABASE_URL set, using in-memory store")
		gw = store.NewMemory()
	}

	// Snapshot cache is optional; a nil store is a no-op.
	var snaps *cache.Store
	if cfg.RedisURL != "" {
		snaps, err = cache.New(cfg.RedisURL, cfg.SnapshotTTL)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		defer snaps.Close()
	}

	registry := game.NewRegistry(gw, snaps, rules.NewEngine(), game.Options{
		DisconnectGrace: cfg.DisconnectGrace,
		EvictDelay:      cfg.EvictDelay,
	})
	hub := ws.NewHub(registry, cfg.AllowedOrigins)
	registry.AttachBroadcaster(hub)

	api := httpapi.NewHandler(registry, gw, hub)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("server_listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.L().Info("server_shutdown")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tabsync/tabsync/internal/auth"
	"github.com/tabsync/tabsync/internal/config"
	"github.com/tabsync/tabsync/internal/gateway"
	"github.com/tabsync/tabsync/internal/ledger"
	"github.com/tabsync/tabsync/internal/server"
	"github.com/tabsync/tabsync/internal/service"
	"github.com/tabsync/tabsync/internal/storage/sqlite"
	"github.com/tabsync/tabsync/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()
	slog.Info("storage initialized", "database", cfg.DB.Path)

	hub := gateway.NewHub()

	var bridge *gateway.Bridge
	if cfg.Redis.BridgeEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		bridge, err = gateway.NewBridge(ctx, rdb)
		if err != nil {
			return fmt.Errorf("connecting bridge: %w", err)
		}
		slog.Info("cross-process bridge enabled", "redis", cfg.Redis.Addr)
	}

	gw := gateway.New(hub, bridge)
	ledgers := service.NewLedgerService(store, ledger.New(), gw)
	gw.SetApplier(ledgers)
	if bridge != nil {
		go bridge.Run(ctx, gw)
	}

	jwt := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TokenDuration)
	srv := server.New(
		service.NewAuthService(auth.NewPasswordAuthenticator(store), jwt),
		service.NewGroupService(store),
		ledgers,
		gw,
		jwt,
	)

	// h2c lets HTTP/2 clients in without TLS termination in front.
	handler := h2c.NewHandler(srv.Router(), &http2.Server{})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

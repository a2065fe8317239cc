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

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/monster-duel-backend/internal/battle"
	"github.com/DoyleJ11/monster-duel-backend/internal/catalog"
	"github.com/DoyleJ11/monster-duel-backend/internal/config"
	"github.com/DoyleJ11/monster-duel-backend/internal/discovery"
	"github.com/DoyleJ11/monster-duel-backend/internal/httpapi"
	"github.com/DoyleJ11/monster-duel-backend/internal/hub"
	"github.com/DoyleJ11/monster-duel-backend/internal/logging"
	"github.com/DoyleJ11/monster-duel-backend/internal/store"
	"github.com/DoyleJ11/monster-duel-backend/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.LoadFile(cfg.CatalogPath); err != nil {
			return err
		}
		log.Info("loaded catalog", zap.String("path", cfg.CatalogPath), zap.Int("species", cat.Len()))
	}

	opts := hub.Options{
		Catalog: cat,
		Timing:  battle.Timing{RoundTimeout: cfg.RoundTimeout, Pacing: cfg.HitPacing},
		Logger:  log,
	}
	deps := httpapi.Deps{
		WS:     ws.Options{OriginPatterns: cfg.AllowedOrigins, OutboxSize: cfg.OutboxSize},
		Logger: log,
	}

	if cfg.DatabaseDSN != "" {
		st, openErr := store.Open(cfg.DatabaseDSN)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, st.Close()) }()
		opts.Recorder = st
		deps.History = st
		log.Info("battle history enabled")
	}

	h := hub.NewHub(ctx, opts)
	deps.Hub = h

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.ConsulAddr != "" {
		reg, regErr := discovery.Register(cfg.ConsulAddr, cfg.ServiceName, cfg.Addr, log)
		if regErr != nil {
			return regErr
		}
		defer func() { err = multierr.Append(err, reg.Deregister()) }()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		<-h.Done()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"crew-tracker/internal/api"
	"crew-tracker/internal/config"
	"crew-tracker/internal/connection"
	"crew-tracker/internal/grpchealth"
	"crew-tracker/internal/link"
	"crew-tracker/internal/observability"
	"crew-tracker/internal/scheduler"
	"crew-tracker/internal/store"
	"crew-tracker/internal/traccar"
	"crew-tracker/internal/tracker"
	"crew-tracker/internal/utilities"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger()
	logger.Info("Starting crew-tracker...", "http_port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	holder := connection.NewHolder(st, logger)
	var defaults *connection.Connection
	if cfg.HasTraccarDefaults() {
		defaults = &connection.Connection{
			BaseURL:  cfg.TraccarBaseURL,
			Username: cfg.TraccarUsername,
			Password: cfg.TraccarPassword,
		}
	}
	holder.Load(ctx, defaults)

	clientOpts := []traccar.Option{traccar.WithRate(cfg.TraccarRPS)}
	if cfg.RawLogDir != "" {
		journal := utilities.NewJournal(cfg.RawLogDir)
		clientOpts = append(clientOpts, traccar.WithJournal(func(resource string, body []byte) {
			if err := journal.Write(resource, body); err != nil {
				logger.Warn("raw journal write failed", "resource", resource, "err", err)
			}
		}))
	}

	tr := tracker.New(holder, traccar.NewClient(clientOpts...), scheduler.New(nil), tracker.Options{
		DevicesInterval:   cfg.DevicesInterval,
		PositionsInterval: cfg.PositionsInterval,
		RequestTimeout:    cfg.RequestTimeout,
	}, logger)

	if cfg.NATSURL != "" {
		pub, err := link.Dial(link.Options{
			URL:      cfg.NATSURL,
			User:     cfg.NATSUser,
			Password: cfg.NATSPassword,
			Subject:  cfg.NATSSubject,
		}, logger)
		if err != nil {
			logger.Error("NATS link disabled", "err", err)
		} else {
			tr.SetPublisher(pub)
			defer pub.Close()
		}
	} else {
		logger.Info("link: disabled (no NATS_URL configured)")
	}

	if cfg.GRPCPort != "" {
		hs := grpchealth.New(logger)
		tr.OnState(hs.Update)
		go func() {
			if err := hs.Serve(cfg.GRPCPort); err != nil {
				logger.Error("gRPC health server failed", "err", err)
			}
		}()
		defer hs.Stop()
	}

	go func() {
		if err := observability.StartMetricsServer(cfg.MetricsPort); err != nil {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	tr.Start()
	defer tr.Stop()

	gin.SetMode(cfg.GinMode)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(tr, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "err", err)
			tr.Stop()
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// openStore prefers Redis and falls back to process memory when Redis is
// not configured or not reachable at startup.
func openStore(ctx context.Context, cfg config.Config, lg *slog.Logger) (connection.Store, func()) {
	if cfg.RedisAddr == "" {
		lg.Info("store: using memory (no REDIS_ADDR)")
		return store.NewMemoryStore(), func() {}
	}
	rs, err := store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		lg.Warn("store: redis unavailable, using memory", "addr", cfg.RedisAddr, "err", err)
		return store.NewMemoryStore(), func() {}
	}
	lg.Info("store: using redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return rs, func() { _ = rs.Close() }
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"carteira/internal/amqp"
	"carteira/internal/cache"
	"carteira/internal/cli"
	"carteira/internal/core"
	apphttp "carteira/internal/http"
	"carteira/internal/log"
	"carteira/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", "error", err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	store, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	}()

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithAtomicGroupEdits(cfg.GroupEditsAtomic),
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, services.WithListingCache(cache.New[[]core.Transaction](cfg.CacheTTL)))
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			// Change events are best effort; the API still serves without them.
			logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithPublisher(client))
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
		}
	}
	svc := services.NewTransactionService(store.Backend, opts...)

	srv := apphttp.NewServer(cfg.Addr(), svc, apphttp.ServerConfig{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting carteira server", "port", cfg.Port, "backend", cfg.DataBackend,
			"atomic_group_edits", cfg.GroupEditsAtomic)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

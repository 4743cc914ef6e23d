package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hackportal/portal/internal/di"
	"github.com/hackportal/portal/pkg/config"
	"github.com/hackportal/portal/pkg/kafka"
	"github.com/hackportal/portal/pkg/redis"
	"github.com/hackportal/portal/pkg/telemetry"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// connections opened below are closed here until the container owns them
	var undo cleanup
	defer undo.run()

	stores, db, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		undo.add(db.Close)
	}

	var redisClient *redis.Client
	if cfg.Realtime.Bus == config.BusRedis {
		redisClient, err = redis.NewClient(ctx, &redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		undo.add(func() { _ = redisClient.Close() })
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		kcfg := kafka.DefaultConfig()
		kcfg.Brokers = cfg.Kafka.Brokers
		if cfg.Kafka.ClientID != "" {
			kcfg.ClientID = cfg.Kafka.ClientID
		}
		producer, err = kafka.NewProducer(ctx, kcfg)
		if err != nil {
			return fmt.Errorf("failed to connect to kafka: %w", err)
		}
		undo.add(producer.Close)
	}

	container := di.NewContainer(&di.ContainerConfig{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Redis:    redisClient,
		Producer: producer,
		Stores:   stores,
	})
	undo.release()
	defer container.Close()

	if err := container.Start(ctx); err != nil {
		return fmt.Errorf("failed to start realtime hub: %w", err)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      container.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("bus", cfg.Realtime.Bus),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}

// cleanup closes resources in reverse order of opening
type cleanup struct {
	fns []func()
}

func (c *cleanup) add(fn func()) {
	c.fns = append(c.fns, fn)
}

// release hands the resources to a new owner; run then does nothing
func (c *cleanup) release() {
	c.fns = nil
}

func (c *cleanup) run() {
	for i := len(c.fns) - 1; i >= 0; i-- {
		c.fns[i]()
	}
	c.fns = nil
}

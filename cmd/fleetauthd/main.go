// Command fleetauthd serves the fleetAuth engine over HTTP.
//
// Configuration comes from FLEETAUTH_* environment variables. Without FLEETAUTH_REDIS_ADDR
// or REDIS_ADDR an embedded miniredis backs the redis store and password recovery, which is
// only suitable for development. Verification codes and recovery tokens are written to the
// log.
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

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MrEthical07/fleetAuth"
	"github.com/MrEthical07/fleetAuth/internal/httpapi"
	"github.com/MrEthical07/fleetAuth/metrics/export/prometheus"
	"github.com/MrEthical07/fleetAuth/notifier"
	"github.com/MrEthical07/fleetAuth/store/memstore"
	"github.com/MrEthical07/fleetAuth/store/pgstore"
	"github.com/MrEthical07/fleetAuth/store/redisstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fleetauthd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	var rdb redis.UniversalClient
	if cfg.Store == storeRedis || cfg.RecoveryEnabled {
		client, closeRedis, err := newRedis(cfg, logger)
		if err != nil {
			return err
		}
		rdb = client
		closers = append(closers, closeRedis)
	}

	store, provisioner, closeStore, err := newStore(cfg, rdb, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	engineCfg := fleetAuth.DefaultConfig()
	engineCfg.JWT.PrivateKey = []byte(cfg.JWTSecret)
	engineCfg.JWT.TokenTTL = cfg.TokenTTL
	engineCfg.Lockout.MaxAttempts = cfg.LockoutAttempts
	engineCfg.Lockout.Duration = cfg.LockoutDuration
	engineCfg.PasswordRecovery.Enabled = cfg.RecoveryEnabled
	engineCfg.Audit.Enabled = cfg.AuditEnabled
	engineCfg.Metrics.Enabled = cfg.MetricsEnabled
	engineCfg.Metrics.EnableLatencyHistograms = cfg.MetricsEnabled
	engineCfg.Notify.QueueSize = cfg.NotifyQueueSize
	engineCfg.Notify.Workers = cfg.NotifyWorkers

	for _, warning := range engineCfg.Lint() {
		logger.Warn("config lint", zap.String("code", warning.Code), zap.String("message", warning.Message))
	}

	builder := fleetAuth.New().
		WithConfig(engineCfg).
		WithAccountStore(store).
		WithCompanyProvisioner(provisioner).
		WithNotifier(notifier.NewLogNotifier(logger)).
		WithLogger(logger)
	if rdb != nil {
		builder = builder.WithRedis(rdb)
	}
	if cfg.AuditEnabled {
		builder = builder.WithAuditSink(fleetAuth.NewZapSink(logger.Named("audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}
	defer engine.Close()

	api := httpapi.New(engine,
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithAdminToken(cfg.AdminToken),
	)
	router := mux.NewRouter()
	router.Handle("/metrics", prometheus.Handler(engine)).Methods(http.MethodGet)
	router.PathPrefix("/").Handler(api.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped",
		zap.Uint64("audit_dropped", engine.AuditDropped()),
		zap.Uint64("notifications_dropped", engine.NotificationsDropped()),
	)
	return nil
}

func newLogger(cfg daemonConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var zcfg zap.Config
	if cfg.LogFormat == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("fleetauthd"), nil
}

func newRedis(cfg daemonConfig, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.RedisAddr
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		logger.Warn("no redis address configured, using embedded miniredis", zap.String("addr", addr))
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}, nil
}

// newStore returns the account store and the company provisioner for cfg.Store. The redis
// store keeps companies in memory.
func newStore(
	cfg daemonConfig,
	rdb redis.UniversalClient,
	logger *zap.Logger,
) (fleetAuth.AccountStore, fleetAuth.CompanyProvisioner, func(), error) {
	switch cfg.Store {
	case storePostgres:
		store, err := pgstore.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, nil, err
		}
		if cfg.MigrateOnStartup {
			if err := store.Migrate(ctx); err != nil {
				_ = store.Close()
				return nil, nil, nil, err
			}
			logger.Info("schema applied")
		}
		return store, store, func() { _ = store.Close() }, nil

	case storeRedis:
		return redisstore.New(rdb, redisstore.WithPrefix(cfg.RedisPrefix)), memstore.New(), func() {}, nil

	default:
		store := memstore.New()
		return store, store, func() {}, nil
	}
}

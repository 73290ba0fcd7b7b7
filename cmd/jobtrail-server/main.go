package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/jobtrail/jobtrail/pkg/audit"
	"github.com/jobtrail/jobtrail/pkg/config"
	"github.com/jobtrail/jobtrail/pkg/middleware"
	"github.com/jobtrail/jobtrail/pkg/observability"
	"github.com/jobtrail/jobtrail/pkg/orgs"
	"github.com/jobtrail/jobtrail/pkg/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(db); err != nil {
		return err
	}
	logger.Info("database migrations applied")

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The role cache degrades gracefully without redis.
			logger.WithError(err).Warn("redis unavailable, role cache runs in-process only")
		}
	}

	metrics := observability.NewMetrics(nil)

	roleCache, err := orgs.NewRoleCache(redisClient, cfg.Cache.Size, cfg.Cache.TTL, metrics)
	if err != nil {
		return err
	}

	activityStore := audit.NewStore()
	service := orgs.NewService(db, activityStore, roleCache, logger, metrics)
	handlers := orgs.NewHandlers(service, logger)

	pruner := audit.NewPruner(db, activityStore, cfg.Audit.RetentionDays, cfg.Audit.PruneSchedule, logger, metrics)
	if err := pruner.Start(); err != nil {
		return err
	}
	defer pruner.Stop()

	health := observability.NewHealthChecker(db, redisClient)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", health.Readiness).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(
		middleware.RequestID,
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.Metrics(metrics),
		middleware.NewAuthenticator(cfg.Auth.JWTSecret).Middleware,
	)
	handlers.RegisterRoutes(api)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

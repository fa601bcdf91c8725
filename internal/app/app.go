package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	pb "github.com/godilite/feedback-reward/api/v1"
	"github.com/godilite/feedback-reward/internal/config"
	handler "github.com/godilite/feedback-reward/internal/grpc"
	"github.com/godilite/feedback-reward/internal/kafka"
	"github.com/godilite/feedback-reward/internal/metrics"
	"github.com/godilite/feedback-reward/internal/repository"
	"github.com/godilite/feedback-reward/internal/service"
	"github.com/godilite/feedback-reward/pkg/cache"
	dbbuilder "github.com/godilite/feedback-reward/pkg/database"
	grpcsrv "github.com/godilite/feedback-reward/pkg/grpc/server"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 15 * time.Second
	healthCheckTimeout  = 2 * time.Second
)

type App struct {
	logger      *zap.Logger
	dbPool      *sql.DB
	cache       handler.Cacher
	publisher   *kafka.RewardPublisher
	grpcServer  *grpcsrv.Server
	httpServer  *http.Server
	clock       clockwork.Clock
	healthCheck func(context.Context) error
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	dbPool, err := dbbuilder.New(
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
		dbbuilder.WithInitStatements("PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("driver", cfg.DBDriver), zap.String("path", cfg.DBPath))

	if err := repository.Migrate(dbPool, cfg.DBDriver); err != nil {
		_ = dbPool.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	var cacheClient handler.Cacher
	if cfg.RedisAddr != "" {
		c, err := cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
			cache.WithKeyPrefix(cfg.RedisKeyPrefix),
		)
		if err != nil {
			logger.Warn("Cache unavailable, serving uncached", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			cacheClient = c
			logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	opts := []service.Option{service.WithMetrics(appMetrics)}
	var publisher *kafka.RewardPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewRewardPublisher(cfg.KafkaBrokers, cfg.KafkaRewardTopic, logger)
		opts = append(opts, service.WithPublisher(publisher))
		logger.Info("Reward publisher initialized",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaRewardTopic))
	}

	conversationRepo := repository.NewConversationRepository(dbPool)
	feedbackService := service.NewFeedbackService(conversationRepo, cfg, logger, opts...)
	if !feedbackService.WeightsValid() {
		w := feedbackService.RewardWeights()
		logger.Warn("Reward weights do not sum to 1.0",
			zap.Float64("sum", w.Sum()),
			zap.Float64("ratings", w.Ratings),
			zap.Float64("binary", w.Binary),
			zap.Float64("citation", w.Citation),
			zap.Float64("time", w.Time))
	}

	grpcHandlers := handler.NewGRPCHandlers(feedbackService, cacheClient, logger, cfg.Metrics.CacheTTL,
		handler.WithCacheRecorder(appMetrics))

	grpcServer, err := grpcsrv.New(
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
		grpcsrv.WithLogging(true),
		grpcsrv.WithMetrics(appMetrics),
	)
	if err != nil {
		_ = dbPool.Close()
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}

	pb.RegisterFeedbackRewardServer(grpcServer, grpcHandlers)

	check := databaseHealth(dbPool, grpcServer)
	return &App{
		logger:      logger,
		dbPool:      dbPool,
		cache:       cacheClient,
		publisher:   publisher,
		grpcServer:  grpcServer,
		clock:       clockwork.NewRealClock(),
		healthCheck: check,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           newRouter(registry, check),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

type servingReporter interface {
	SetServing(serving bool)
}

// databaseHealth pings db and reports the outcome to the gRPC health service.
// reporter may be nil.
func databaseHealth(db *sql.DB, reporter servingReporter) func(context.Context) error {
	return func(ctx context.Context) error {
		err := db.PingContext(ctx)
		if reporter != nil {
			reporter.SetServing(err == nil)
		}
		return err
	}
}

// monitorHealth runs check every interval until ctx ends.
func monitorHealth(ctx context.Context, clock clockwork.Clock, interval time.Duration, check func(context.Context) error) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			_ = check(pingCtx)
			cancel()
		}
	}
}

// newRouter serves Prometheus metrics and a liveness probe.
func newRouter(registry *prometheus.Registry, check func(context.Context) error) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()

		if err := check(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

// Run starts the application and blocks until a shutdown signal is received.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	a.logger.Info("application starting")

	a.grpcServer.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("metrics server starting", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	if a.healthCheck != nil {
		g.Go(func() error {
			monitorHealth(gctx, a.clock, healthCheckInterval, a.healthCheck)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	err := g.Wait()
	_ = a.logger.Sync()
	return err
}

func (a *App) shutdown() error {
	a.logger.Info("application shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.grpcServer.Shutdown(ctx); err != nil {
		a.logger.Error("gRPC shutdown error", zap.Error(err))
		errs = append(errs, err)
	}
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("metrics server shutdown error", zap.Error(err))
		errs = append(errs, err)
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("publisher shutdown error", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("cache shutdown error", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if err := a.dbPool.Close(); err != nil {
		a.logger.Error("database shutdown error", zap.Error(err))
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		a.logger.Info("graceful shutdown completed successfully")
	}
	return errors.Join(errs...)
}

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/miradorstack/churn-triage/internal/api"
	"github.com/miradorstack/churn-triage/internal/auth"
	"github.com/miradorstack/churn-triage/internal/cache"
	"github.com/miradorstack/churn-triage/internal/classifier"
	"github.com/miradorstack/churn-triage/internal/config"
	"github.com/miradorstack/churn-triage/internal/engine"
	"github.com/miradorstack/churn-triage/internal/events"
	"github.com/miradorstack/churn-triage/internal/features"
	"github.com/miradorstack/churn-triage/internal/metrics"
	"github.com/miradorstack/churn-triage/internal/repo"
	"github.com/miradorstack/churn-triage/internal/services"
	"github.com/miradorstack/churn-triage/internal/strategy"
	"github.com/miradorstack/churn-triage/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)
	logger.Info("starting churn-triage",
		slog.String("http", cfg.Server.HTTPAddress),
		slog.String("grpc", cfg.Server.GRPCAddress),
		slog.String("storage", cfg.Storage.Driver),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdownTracing, err := utils.SetupTracing(ctx, utils.TracingOptions{
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			Insecure:    cfg.Tracing.Insecure,
		})
		if err != nil {
			logger.Warn("tracing disabled", slog.Any("error", err))
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracing(flushCtx)
			}()
		}
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(ctx, cache.ValkeyConfig{
			Addr:        cfg.Cache.Addr,
			Username:    cfg.Cache.Username,
			Password:    cfg.Cache.Password,
			DB:          cfg.Cache.DB,
			TLS:         cfg.Cache.TLS,
			KeyPrefix:   cfg.Cache.KeyPrefix,
			DialTimeout: cfg.Cache.DialTimeout,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable, using in-process cache", slog.Any("error", err))
			cacheProvider = cache.NewMemoryProvider()
		} else {
			cacheProvider = provider
		}
	}
	defer cacheProvider.Close()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open run store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.Enabled {
		publisher = events.NewKafkaPublisher(logger, cfg.Events.Brokers, cfg.Events.Topic)
	}
	defer publisher.Close()

	loader := classifier.NewFileLoader(logger, cfg.Artifacts.ModelPath, cfg.Artifacts.ThresholdsPath)
	if _, err := loader.Load(); err != nil {
		// Scoring requests report the memoized failure; the process stays up for health checks.
		logger.Error("artifacts failed to load", slog.Any("error", err))
	}

	schema := features.NewSchema(cfg.Features.Numeric, cfg.Features.Categorical)
	pipeline := engine.NewPipeline(logger, loader, schema)

	client := strategy.NewResponsesClient(cfg.Generator.BaseURL, cfg.Generator.APIKey, cfg.Generator.Timeout)
	generator := strategy.NewGenerator(logger, client, cacheProvider, cfg.Cache.StrategyTTL, cfg.Generator.Models)

	triage := services.NewTriageService(logger, pipeline, loader, store, publisher, generator, services.Options{
		IDColumn:     cfg.Features.IDColumn,
		TopN:         cfg.Segments.TopN,
		StrategyTopN: cfg.Segments.StrategyTopN,
	})

	authCfg := auth.Config{
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
		Secret:   cfg.Auth.JWTSecret,
		TTL:      cfg.Auth.TokenTTL,
		Disabled: cfg.Auth.Disabled,
	}
	if authCfg.Secret == "" && !authCfg.Disabled {
		authCfg.Secret = randomSecret()
		logger.Warn("auth.jwtSecret not set; tokens will not survive a restart")
	}
	authn, err := auth.New(authCfg)
	if err != nil {
		logger.Error("failed to configure auth", slog.Any("error", err))
		os.Exit(1)
	}

	grpcServer, err := api.NewServer(cfg.Server, api.NewGRPCService(logger, triage),
		grpc.ChainUnaryInterceptor(authn.UnaryInterceptor()),
	)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}
	grpcServer.SetServing(loader.Ready())

	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddress,
		Handler: api.NewRouter(logger, triage, authn, api.RouterConfig{
			CORSOrigins:    cfg.Server.CORSOrigins,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Generator.Timeout + 30*time.Second,
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", err))
			stop()
		}
	}()

	go func() {
		logger.Info("grpc server listening", slog.String("address", grpcServer.Address()))
		if serveErr := grpcServer.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
	grpcServer.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("churn-triage stopped", slog.Duration("scoring_p95", triage.LatencyP95()))
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repo.Store, error) {
	if cfg.Storage.Driver != "postgres" {
		return repo.NewMemoryStore(), nil
	}
	if cfg.Storage.AutoMigrate {
		if err := repo.MigrateUp(cfg.Storage.DSN, cfg.Storage.MigrationsPath); err != nil {
			return nil, err
		}
		logger.Info("migrations applied", slog.String("path", cfg.Storage.MigrationsPath))
	}
	pool, err := repo.NewPool(ctx, cfg.Storage.DSN, cfg.Storage.MaxConns)
	if err != nil {
		return nil, err
	}
	return repo.NewPostgresStore(pool), nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

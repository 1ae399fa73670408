// Command forwarder runs the edge proxy between the incident dashboard
// and the incident-management backend API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vyrodovalexey/incidentgw/internal/config"
	"github.com/vyrodovalexey/incidentgw/internal/health"
	"github.com/vyrodovalexey/incidentgw/internal/middleware"
	"github.com/vyrodovalexey/incidentgw/internal/observability"
	"github.com/vyrodovalexey/incidentgw/internal/proxy"
)

// Build information, injected via ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config overlay")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json, console)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("forwarder %s (commit %s, built %s)\n", version, commit, buildTime)
		return
	}

	if *configPath == "" {
		*configPath = os.Getenv(config.EnvConfigPath)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	observability.SetGlobalLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("forwarder exited", observability.Error(err))
	}
}

func run(cfg *config.Config, logger observability.Logger) error {
	metrics := observability.NewMetrics("")
	metrics.SetBuildInfo(version, commit, buildTime)

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "incidentgw",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: cfg.Upstream.AttemptTimeout.Duration()}

	forwarder, err := proxy.NewForwarder(cfg.Upstream.BaseURL,
		proxy.WithForwarderLogger(logger),
		proxy.WithHTTPClient(client),
		proxy.WithRetryPolicy(cfg.RetryPolicy()),
		proxy.WithCredential(cfg.Upstream.APIKey),
		proxy.WithCredentialBypass(cfg.Upstream.CredentialBypass...),
		proxy.WithUpstreamDiagnostics(!cfg.IsProduction()),
		proxy.WithForwarderMetrics(metrics),
	)
	if err != nil {
		return err
	}

	if cfg.Upstream.APIKey == "" {
		logger.Warn("no upstream credential configured, dispatching without X-API-Key")
	}

	rateLimitMw, limiter := middleware.RateLimitFromConfig(cfg.RateLimit, logger)
	if limiter != nil {
		defer limiter.Stop()
	}
	cbMw := middleware.CircuitBreakerFromConfig(cfg.CircuitBreaker, logger)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(logger))
	router.Use(observability.TracingMiddleware(tracer))
	router.Use(observability.MetricsMiddleware(metrics))
	router.Use(rateLimitMw)
	router.Use(cbMw)
	router.Handle("/api/v1/*", forwarder)

	checker := health.NewChecker(version)
	checker.RegisterCheck("upstream", health.UpstreamCheck(client, cfg.Upstream.BaseURL))

	opsRouter := chi.NewRouter()
	opsRouter.Handle("/metrics", metrics.Handler())
	opsRouter.Get("/health", checker.HealthHandler())
	opsRouter.Get("/ready", checker.ReadinessHandler())
	opsRouter.Get("/live", checker.LivenessHandler())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	opsServer := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           opsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("forwarding listener started",
			observability.String("addr", cfg.ListenAddr),
			observability.String("upstream", cfg.Upstream.BaseURL),
			observability.String("environment", cfg.Environment),
			observability.String("version", version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		logger.Info("operational listener started",
			observability.String("addr", cfg.OpsAddr),
		)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutdown signal received",
			observability.String("signal", sig.String()),
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forwarding listener shutdown failed", observability.Error(err))
	}
	if err := opsServer.Shutdown(ctx); err != nil {
		logger.Error("operational listener shutdown failed", observability.Error(err))
	}
	if err := tracer.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown failed", observability.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

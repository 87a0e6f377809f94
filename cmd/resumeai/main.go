// Resume AI gateway main entry point
//
// Every setting is a flag or an environment variable (see --help):
//
//	GRPC_PORT            gRPC server port (default: 50051)
//	METRICS_PORT         Prometheus metrics HTTP port (default: 9090)
//	PROVIDERS_FILE       YAML provider catalog (default: built-in providers)
//	MAX_RETRIES          HTTP attempts per provider (default: 2)
//	RETRY_BASE_DELAY     Linear backoff step (default: 1s)
//	ATTEMPT_TIMEOUT      Per-attempt HTTP timeout (default: 30s)
//	REQUEST_TIMEOUT      Per-RPC timeout (default: 120s)
//	CB_FAILURE_THRESHOLD Circuit breaker failure threshold (default: 0, disabled)
//	CB_COOLDOWN          Circuit breaker cooldown (default: 30s)
//	REDIS_ADDR           Redis address; enables the completion cache
//	REDIS_PASSWORD       Redis password (default: "")
//	REDIS_DB             Redis database (default: 0)
//	CACHE_TTL            Cache TTL duration (default: 1h)
//	LOG_LEVEL            debug, info, warn, error (default: info)
//
// Provider credentials are read from the environment on every call:
// OPENROUTER_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY, or whatever
// credential_key the catalog file names.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdhe/resume-ai-gateway/pkg/cache"
	"github.com/abdhe/resume-ai-gateway/pkg/config"
	"github.com/abdhe/resume-ai-gateway/pkg/logging"
	"github.com/abdhe/resume-ai-gateway/pkg/orchestrator"
	"github.com/abdhe/resume-ai-gateway/pkg/resilience"
	"github.com/abdhe/resume-ai-gateway/pkg/resume"
	"github.com/abdhe/resume-ai-gateway/pkg/server"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logging.L().Fatal("invalid configuration", "err", err)
	}

	logging.Init(cfg.Logging())
	log := logging.L()
	log.Info("starting resume AI gateway")

	// -------------------------------------------------------------------------
	// Provider catalog
	// -------------------------------------------------------------------------
	catalog, err := cfg.Catalog()
	if err != nil {
		log.Fatal("failed to load provider catalog", "err", err)
	}
	for _, d := range catalog.Providers() {
		_, configured := resilience.EnvCredentials{}.Lookup(d.CredentialKey)
		log.Info("provider", "priority", d.Priority, "name", d.Name, "family", d.Adapter.Family(),
			"model", d.Model, "configured", configured)
	}

	// -------------------------------------------------------------------------
	// Retry + circuit breakers
	// -------------------------------------------------------------------------
	retryCfg := cfg.Retry()
	invoker := resilience.NewInvoker(retryCfg,
		resilience.WithBreakers(resilience.NewBreakerSet(cfg.Breaker())),
		resilience.WithLogger(logging.With("component", "invoker")),
	)
	log.Info("retry policy", "max_retries", retryCfg.MaxRetries, "base_delay", retryCfg.BaseDelay,
		"attempt_timeout", retryCfg.AttemptTimeout, "circuit_breaker", cfg.Breaker().Enabled())

	orch, err := orchestrator.New(catalog, invoker, orchestrator.WithLogger(logging.With("component", "orchestrator")))
	if err != nil {
		log.Fatal("failed to build orchestrator", "err", err)
	}

	// -------------------------------------------------------------------------
	// Completion cache
	// -------------------------------------------------------------------------
	var gen resume.Generator = orch
	if cfg.CacheEnabled() {
		redisCache := cache.NewRedisCache(cfg.Cache())
		defer redisCache.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis connection failed, cache disabled", "addr", cfg.RedisAddr, "err", err)
		} else {
			gen = cache.NewCachedGenerator(orch, redisCache)
			log.Info("completion cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		}
		cancel()
	}

	// -------------------------------------------------------------------------
	// Start gRPC server
	// -------------------------------------------------------------------------
	grpcServer := server.NewGRPCServer(server.NewHandler(server.Config{
		Generator:      gen,
		RequestTimeout: cfg.RequestTimeout,
	}))

	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal("failed to listen", "port", cfg.GRPCPort, "err", err)
	}

	go func() {
		log.Info("gRPC server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(grpcLis); err != nil {
			log.Fatal("gRPC server error", "err", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Start HTTP metrics server
	// -------------------------------------------------------------------------
	metricsServer := server.NewMetricsServer(":" + cfg.MetricsPort)

	go func() {
		log.Info("metrics server listening", "port", cfg.MetricsPort, "path", "/metrics")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("metrics server error", "err", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Graceful shutdown
	// -------------------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("shutting down", "signal", sig)

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown error", "err", err)
	}
	log.Info("metrics server stopped")

	log.Info("resume AI gateway shut down")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/beacon/internal/adapters/cache"
	"github.com/Amund211/beacon/internal/adapters/upstream"
	"github.com/Amund211/beacon/internal/app"
	"github.com/Amund211/beacon/internal/config"
	"github.com/Amund211/beacon/internal/domain"
	"github.com/Amund211/beacon/internal/logging"
	"github.com/Amund211/beacon/internal/ports"
	"github.com/Amund211/beacon/internal/ratelimiting"
	"github.com/Amund211/beacon/internal/reporting"
	"github.com/Amund211/beacon/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	// Root certificates for minimal container images
	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "beacon"

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTraceLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if config.OTelEnabled() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, serviceName, instanceID)
		if err != nil {
			fail("Failed to initialize OpenTelemetry", "error", err.Error())
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(shutdownCtx); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	coordinator := cache.NewCoordinator[domain.Response](config.CacheTTL())
	defer coordinator.Stop()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	upstreamAPI, err := upstream.NewAPIOrMock(config, httpClient)
	if err != nil {
		fail("Failed to initialize upstream API", "error", err.Error())
	}
	logger.Info("Initialized upstream API")

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	allowedOrigins, err := ports.NewDomainSuffixes(config.AllowedOriginSuffixes()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	ipLimiter, stopIPLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(20),
		ratelimiting.BurstSize(600),
		30*time.Minute,
	)
	defer stopIPLimiter()

	deps := ports.HandlerDeps{
		RootLogger:       logger,
		AllowedOrigins:   allowedOrigins,
		SentryMiddleware: sentryMiddleware,
		IPRateLimiter:    ratelimiting.NewRequestBasedRateLimiter(ipLimiter, ratelimiting.IPKeyFunc),
		AdminAPIKey:      config.AdminAPIKey(),
	}
	if config.AdminAPIKey() == "" {
		logger.Warn("No admin API key configured, cache admin routes will reject every request")
	}

	getResource := app.BuildGetResourceWithCache(coordinator, upstreamAPI)
	mutateResource := app.BuildMutateResource(coordinator, upstreamAPI)
	invalidate := app.BuildInvalidate(coordinator)
	warmResources := app.BuildWarmResources(getResource, 8)

	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/resources/{path...}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/resources/{path...}",
		ports.MakeGetResourceHandler(getResource, deps),
	)
	mutateResourceHandler := ports.MakeMutateResourceHandler(mutateResource, deps)
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		mux.HandleFunc(fmt.Sprintf("%s /v1/resources/{path...}", method), mutateResourceHandler)
	}

	mux.HandleFunc(
		"OPTIONS /v1/cache/invalidate",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"POST /v1/cache/invalidate",
		ports.MakeInvalidateHandler(invalidate, deps),
	)

	mux.HandleFunc(
		"OPTIONS /v1/cache/warm",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"POST /v1/cache/warm",
		ports.MakeWarmHandler(warmResources, deps),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownComplete := make(chan struct{})
	go func() {
		defer close(shutdownComplete)
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}()

	logger.Info("Init complete")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownComplete
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}

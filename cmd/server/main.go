package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ltec/orderrelay/internal/application/relay"
	"github.com/ltec/orderrelay/internal/infrastructure/cache"
	"github.com/ltec/orderrelay/internal/infrastructure/config"
	"github.com/ltec/orderrelay/internal/infrastructure/logger"
	"github.com/ltec/orderrelay/internal/infrastructure/messaging"
	"github.com/ltec/orderrelay/internal/infrastructure/telemetry"
	"github.com/ltec/orderrelay/internal/interfaces/http/handler"
	"github.com/ltec/orderrelay/internal/interfaces/http/middleware"
	"github.com/ltec/orderrelay/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	log.Info("Starting order relay",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Telemetry
	telCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}
	loggerProvider, err := telemetry.NewLoggerProvider(context.Background(), telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, cfg.Telemetry.ServiceName)

	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	relayMetrics, err := telemetry.NewRelayMetrics(meterProvider.Meter("relay"))
	if err != nil {
		log.Fatal("Failed to create relay metrics", zap.Error(err))
	}

	// Messaging gateway
	var onEvent messaging.EventHandler
	if cfg.Gateway.RenderPairingCode {
		onEvent = messaging.TerminalEvents(os.Stdout, log)
	}
	gateway := messaging.NewGateway(cfg.Gateway, log, onEvent)

	// Relay service
	loc, err := time.LoadLocation(cfg.Relay.TimeZone)
	if err != nil {
		log.Fatal("Invalid relay time zone", zap.String("tz", cfg.Relay.TimeZone), zap.Error(err))
	}
	relayOpts := []relay.Option{relay.WithLogger(log), relay.WithMetrics(relayMetrics)}
	if cfg.Idempotency.Enabled {
		store, err := cache.NewIdempotencyStore(cfg.Idempotency, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}()
		relayOpts = append(relayOpts, relay.WithIdempotencyStore(store))
		log.Info("Idempotent submissions enabled",
			zap.String("backend", cfg.Idempotency.Backend),
			zap.Duration("ttl", cfg.Idempotency.TTL),
		)
	}
	relayService, err := relay.NewService(gateway, relay.Config{
		BusinessRecipient: cfg.Relay.BusinessRecipient,
		Location:          loc,
		TimestampLayout:   cfg.Relay.TimestampLayout,
		IdempotencyTTL:    cfg.Idempotency.TTL,
	}, relayOpts...)
	if err != nil {
		log.Fatal("Failed to create relay service", zap.Error(err))
	}

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order: request id, recovery, access log, tracing, CORS, body limit
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if tracerProvider.IsEnabled() {
		engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName))
	}
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// Rate limiting applies to submissions only
	var submitMiddleware []gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		go limiter.Run(rootCtx)
		submitMiddleware = append(submitMiddleware, middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	relayHandler := handler.NewRelayHandler(relayService)
	r := router.NewRouter(engine)
	for _, group := range relayHandler.Routes(submitMiddleware...) {
		r.Register(group)
	}
	r.Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// The API serves health and status while the gateway pairs
	go func() {
		if err := gateway.Initialize(rootCtx); err != nil {
			log.Error("Failed to initialize WhatsApp client", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutting down server...", zap.String("signal", sig.String()))
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := gateway.Destroy(ctx); err != nil {
		log.Error("Error destroying WhatsApp client", zap.Error(err))
	}
	if err := meterProvider.Shutdown(ctx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	if err := loggerProvider.Shutdown(context.Background()); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sheettools/internal/app"
	"sheettools/internal/config"
	"sheettools/internal/handlers"
	"sheettools/internal/logging"
	"sheettools/internal/metrics"
	"sheettools/internal/shopify"
	"sheettools/internal/telemetry"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "sheettools-dev-server"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	tp, err := telemetry.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown", zap.Error(err))
			}
		}()
	}

	reg := metrics.NewRegistry()
	h, cleanup, err := app.BuildWebhook(ctx, cfg, logger, reg, app.Options{MemoryStoreFallback: true, EnsureSchema: cfg.IsLocal()})
	if err != nil {
		log.Fatalf("build webhook: %v", err)
	}
	defer cleanup()

	if !cfg.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))

	r.GET("/health", handlers.Gin(handlers.Health{Service: serviceName, Config: cfg, MemoryStore: true}.Handle))
	r.GET("/metrics", gin.WrapH(reg.Handler()))
	r.Any(shopify.WebhookFunctionPath, handlers.Gin(h.Handle))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	go func() {
		logger.Info("dev server listening", zap.String("port", cfg.Port), zap.String("webhook", shopify.WebhookFunctionPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}

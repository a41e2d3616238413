package main

import (
	"context"
	"log"

	"sheettools/internal/app"
	"sheettools/internal/config"
	"sheettools/internal/logging"
	"sheettools/internal/metrics"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	logger := logging.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	h, cleanup, err := app.BuildWebhook(ctx, cfg, logger, metrics.NewRegistry(), app.Options{})
	if err != nil {
		log.Fatalf("build webhook: %v", err)
	}
	defer cleanup()

	lambda.Start(h.Handle)
}

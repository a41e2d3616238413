package main

import (
	"context"
	"log"
	"time"

	"sheettools/internal/config"
	"sheettools/internal/db"
	"sheettools/internal/etl"
	"sheettools/internal/logging"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		log.Fatalf("missing env DATABASE_URL")
	}
	loc, err := time.LoadLocation(cfg.ETLTimezone)
	if err != nil {
		log.Fatalf("load timezone %s: %v", cfg.ETLTimezone, err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	export := &etl.SalesExport{
		Source: db.NewPostgresStore(pool, cfg.SalesTable),
		S3:     s3.NewFromConfig(awsCfg),
		Athena: athena.NewFromConfig(awsCfg),
		Repair: etl.RepairConfig{
			Database:  cfg.AthenaDatabase,
			Table:     cfg.AthenaTable,
			Workgroup: cfg.AthenaWorkgroup,
			Output:    cfg.AthenaOutput,
		},
		Bucket:   cfg.AnalyticsBucket,
		Prefix:   cfg.SalesExportPrefix,
		Location: loc,
		DaysBack: cfg.ETLDaysBack,
		Logger:   logger,
	}
	lambda.Start(export.Handle)
}

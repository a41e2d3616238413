package app

import (
	"context"
	"fmt"

	"sheettools/internal/config"
	"sheettools/internal/db"
	"sheettools/internal/events"
	"sheettools/internal/handlers"
	"sheettools/internal/ingest"
	"sheettools/internal/metrics"
	"sheettools/internal/sales"
	"sheettools/internal/shopify"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"
)

// Options tune BuildWebhook for the deployable that calls it.
type Options struct {
	// MemoryStoreFallback keeps sales in process when no database is configured.
	MemoryStoreFallback bool
	// EnsureSchema applies the sales table DDL when the Postgres store is used.
	EnsureSchema bool
	// AWS, when set, is used instead of loading the default AWS config.
	AWS *aws.Config
}

// NeedsAWS reports whether any configured feature talks to AWS.
func NeedsAWS(cfg config.Config) bool {
	return cfg.WebhookSecretSSMParam != "" ||
		cfg.ShopToUserTable != "" ||
		cfg.IntegrationsTable != "" ||
		cfg.WebhookDedupeTable != "" ||
		cfg.SalesEventsTopicARN != ""
}

// BuildWebhook wires the webhook handler from configuration. Missing store
// configuration does not fail the build: the handler answers 500 with
// diagnostics instead. The returned func releases pooled connections.
func BuildWebhook(ctx context.Context, cfg config.Config, logger *zap.Logger, reg *metrics.Registry, opts Options) (*handlers.WebhookHandler, func(), error) {
	cleanup := func() {}

	var awsCfg aws.Config
	if opts.AWS != nil {
		awsCfg = *opts.AWS
	} else if NeedsAWS(cfg) {
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, cleanup, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = c
	}
	hasAWS := opts.AWS != nil || NeedsAWS(cfg)

	var configErr error
	if hasAWS {
		if err := cfg.ResolveSecrets(ctx, ssm.NewFromConfig(awsCfg)); err != nil {
			logger.Error("webhook secret lookup failed", zap.Error(err))
			configErr = err
		}
	}

	store, closeStore, err := buildStore(ctx, cfg, opts)
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = closeStore

	if configErr == nil {
		// The in-memory fallback only stands in for a missing store.
		if err := cfg.Validate(); err != nil && (store == nil || cfg.RequireWebhookSignature && cfg.WebhookSecret == "") {
			configErr = err
		}
	}
	if cfg.WebhookSecret == "" && !cfg.RequireWebhookSignature {
		logger.Warn("SHOPIFY_WEBHOOK_SECRET is empty: webhook signatures are not verified")
	}

	h := &handlers.WebhookHandler{
		Secret:           cfg.WebhookSecret,
		RequireSignature: cfg.RequireWebhookSignature,
		ConfigErr:        configErr,
		DebugInfo:        debugInfo(cfg),
		Metrics:          reg,
		Logger:           logger,
	}
	if store == nil {
		return h, cleanup, nil
	}

	in := &ingest.Ingester{
		Store:   store,
		Metrics: reg,
		Logger:  logger,
	}
	chain := &sales.ChainResolver{}
	if hasAWS {
		ddb := db.NewDynamoClient(awsCfg)
		if cfg.ShopToUserTable != "" {
			chain.Links = append(chain.Links, sales.Link{
				Source:   sales.SourceShopMapping,
				Resolver: &shopify.ShopOwnerResolver{DDB: ddb, Table: cfg.ShopToUserTable},
			})
		}
		if cfg.WebhookDedupeTable != "" {
			in.Dedupe = &shopify.Deduper{DDB: ddb, Table: cfg.WebhookDedupeTable}
		}
		if cfg.IntegrationsTable != "" {
			in.Status = &shopify.StatusRecorder{DDB: ddb, Table: cfg.IntegrationsTable}
		}
	}
	chain.Links = append(chain.Links, sales.Link{
		Source:   sales.SourceFirstUser,
		Resolver: &sales.FirstUserResolver{Store: store},
	})
	in.Owners = chain

	var sinks []events.Publisher
	if hasAWS && cfg.SalesEventsTopicARN != "" {
		sinks = append(sinks, &events.SNSPublisher{Client: sns.NewFromConfig(awsCfg), TopicARN: cfg.SalesEventsTopicARN})
	}
	if u := cfg.RabbitMQURL(); u != "" {
		sinks = append(sinks, &events.AMQPPublisher{URL: u, Exchange: cfg.RabbitMQExchange})
	}
	if len(sinks) > 0 {
		in.Events = &events.Multi{
			Sinks:  sinks,
			Logger: logger,
			OnFailure: func(sink string, _ error) {
				if reg != nil {
					reg.PublishErrors.WithLabelValues(sink).Inc()
				}
			},
		}
	}

	h.Ingester = in
	return h, cleanup, nil
}

func buildStore(ctx context.Context, cfg config.Config, opts Options) (sales.Store, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, func() {}, err
		}
		store := db.NewPostgresStore(pool, cfg.SalesTable)
		if opts.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, func() {}, err
			}
		}
		return store, pool.Close, nil
	case cfg.SupabaseURL != "" && cfg.SupabaseServiceRoleKey != "":
		return db.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.SalesTable), func() {}, nil
	case opts.MemoryStoreFallback:
		return sales.NewMemoryStore(), func() {}, nil
	}
	return nil, func() {}, nil
}

func debugInfo(cfg config.Config) map[string]any {
	return map[string]any{
		"env":                       cfg.Env,
		"has_database_url":          cfg.DatabaseURL != "",
		"has_supabase_url":          cfg.SupabaseURL != "",
		"has_service_role_key":      cfg.SupabaseServiceRoleKey != "",
		"has_webhook_secret":        cfg.WebhookSecret != "",
		"require_webhook_signature": cfg.RequireWebhookSignature,
		"sales_table":               cfg.SalesTable,
	}
}

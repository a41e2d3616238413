package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"sheettools/internal/sales"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
)

// Config is read once per process and passed to everything that needs it.
type Config struct {
	Env      string
	LogLevel string
	Port     string
	SiteURL  string

	DatabaseURL            string
	SupabaseURL            string
	SupabaseServiceRoleKey string
	SalesTable             string

	WebhookSecret           string
	WebhookSecretSSMParam   string
	RequireWebhookSignature bool

	ShopToUserTable    string
	IntegrationsTable  string
	WebhookDedupeTable string
	TokenEncKeyB64     string
	ShopifyAPIVersion  string

	SalesEventsTopicARN string
	RabbitMQHost        string
	RabbitMQUser        string
	RabbitMQPassword    string
	RabbitMQExchange    string

	AnalyticsBucket   string
	SalesExportPrefix string
	ETLTimezone       string
	ETLDaysBack       int
	AthenaDatabase    string
	AthenaTable       string
	AthenaWorkgroup   string
	AthenaOutput      string

	OTLPEndpoint string
}

// Load reads the environment. A local .env file is applied first when present.
func Load() Config {
	_ = godotenv.Load()

	daysBack, err := strconv.Atoi(getEnv("ETL_DAYS_BACK", "1"))
	if err != nil || daysBack <= 0 || daysBack > 90 {
		daysBack = 1
	}

	return Config{
		Env:      strings.ToUpper(getEnv("ENV", "PROD")),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("PORT", "8888"),
		SiteURL:  getEnv("URL", ""),

		DatabaseURL:            getEnv("DATABASE_URL", ""),
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SalesTable:             getEnv("SALES_TABLE", "vendas"),

		WebhookSecret:           getEnv("SHOPIFY_WEBHOOK_SECRET", ""),
		WebhookSecretSSMParam:   getEnv("SHOPIFY_WEBHOOK_SECRET_SSM_PARAM", ""),
		RequireWebhookSignature: getBool("SHOPIFY_WEBHOOK_REQUIRE_SIGNATURE"),

		ShopToUserTable:    getEnv("SHOP_TO_USER_TABLE", ""),
		IntegrationsTable:  getEnv("INTEGRATIONS_TABLE", ""),
		WebhookDedupeTable: getEnv("SHOPIFY_WEBHOOK_DEDUPE_TABLE", ""),
		TokenEncKeyB64:     getEnv("TOKEN_ENC_KEY_B64", ""),
		ShopifyAPIVersion:  getEnv("SHOPIFY_API_VERSION", "2025-07"),

		SalesEventsTopicARN: getEnv("SALES_EVENTS_TOPIC_ARN", ""),
		RabbitMQHost:        getEnv("RABBITMQ_HOST", ""),
		RabbitMQUser:        getEnv("RABBITMQ_USER", ""),
		RabbitMQPassword:    getEnv("RABBITMQ_PASSWORD", ""),
		RabbitMQExchange:    getEnv("RABBITMQ_EXCHANGE", "sales"),

		AnalyticsBucket:   getEnv("ANALYTICS_BUCKET", ""),
		SalesExportPrefix: getEnv("SALES_EXPORT_PREFIX", "daily_sales/"),
		ETLTimezone:       getEnv("ETL_TIMEZONE", "America/Sao_Paulo"),
		ETLDaysBack:       daysBack,
		AthenaDatabase:    getEnv("ATHENA_DATABASE", ""),
		AthenaTable:       getEnv("ATHENA_TABLE", ""),
		AthenaWorkgroup:   getEnv("ATHENA_WORKGROUP", "primary"),
		AthenaOutput:      getEnv("ATHENA_OUTPUT", ""),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func (c Config) IsLocal() bool { return c.Env == "LOCAL" }

// HasStore reports whether some sales store can be built.
func (c Config) HasStore() bool {
	return c.DatabaseURL != "" || (c.SupabaseURL != "" && c.SupabaseServiceRoleKey != "")
}

// RabbitMQURL returns "" unless host, user and password are all set.
func (c Config) RabbitMQURL() string {
	if c.RabbitMQHost == "" || c.RabbitMQUser == "" || c.RabbitMQPassword == "" {
		return ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s", c.RabbitMQUser, c.RabbitMQPassword, c.RabbitMQHost)
}

// Validate reports what the webhook cannot run without.
func (c Config) Validate() error {
	var missing []string
	if !c.HasStore() {
		if c.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.SupabaseServiceRoleKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
		}
	}
	if c.RequireWebhookSignature && c.WebhookSecret == "" {
		missing = append(missing, "SHOPIFY_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", sales.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// ParameterGetter is the part of the SSM client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ResolveSecrets fills WebhookSecret from SSM when only the parameter name is set.
func (c *Config) ResolveSecrets(ctx context.Context, p ParameterGetter) error {
	if c.WebhookSecret != "" || c.WebhookSecretSSMParam == "" {
		return nil
	}
	if p == nil {
		return fmt.Errorf("%w: no SSM client for %s", sales.ErrConfiguration, c.WebhookSecretSSMParam)
	}
	out, err := p.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(c.WebhookSecretSSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("ssm get parameter %s: %w", c.WebhookSecretSSMParam, err)
	}
	if out.Parameter == nil || strings.TrimSpace(aws.ToString(out.Parameter.Value)) == "" {
		return fmt.Errorf("%w: ssm parameter %s is empty", sales.ErrConfiguration, c.WebhookSecretSSMParam)
	}
	c.WebhookSecret = strings.TrimSpace(aws.ToString(out.Parameter.Value))
	return nil
}

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getBool(key string) bool {
	b, err := strconv.ParseBool(getEnv(key, "false"))
	return err == nil && b
}

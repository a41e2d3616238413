package handlers

import (
	"context"
	"net/http"

	"sheettools/internal/config"

	"github.com/aws/aws-lambda-go/events"
)

type HealthResponse struct {
	OK        bool   `json:"ok"`
	Service   string `json:"service"`
	Store     string `json:"store"`
	Signature string `json:"signature"`
	Error     string `json:"error,omitempty"`
}

// Health reports whether the webhook function, configured the same way,
// can take deliveries. It answers 503 when it cannot.
type Health struct {
	Service string
	Config  config.Config
	// MemoryStore is set by the dev server, which falls back to an in-process store.
	MemoryStore bool
}

func (h Health) Report() HealthResponse {
	cfg := h.Config
	// The secret parameter is resolved by the webhook function at cold start.
	if cfg.WebhookSecret == "" && cfg.WebhookSecretSSMParam != "" {
		cfg.WebhookSecret = cfg.WebhookSecretSSMParam
	}

	r := HealthResponse{Service: h.Service, Store: storeKind(cfg, h.MemoryStore), Signature: "trusted"}
	if cfg.WebhookSecret != "" {
		r.Signature = "verified"
	}
	err := cfg.Validate()
	if err != nil && (r.Store == "none" || cfg.RequireWebhookSignature && cfg.WebhookSecret == "") {
		r.Error = err.Error()
		return r
	}
	r.OK = true
	return r
}

func (h Health) Handle(_ context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
	}
	r := h.Report()
	status := http.StatusOK
	if !r.OK {
		status = http.StatusServiceUnavailable
	}
	resp, err := jsonResp(status, r)
	resp.Headers["Access-Control-Allow-Origin"] = "*"
	return resp, err
}

func storeKind(cfg config.Config, memory bool) string {
	switch {
	case cfg.DatabaseURL != "":
		return "postgres"
	case cfg.HasStore():
		return "supabase"
	case memory:
		return "memory"
	}
	return "none"
}

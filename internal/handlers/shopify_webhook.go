package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"sheettools/internal/ingest"
	"sheettools/internal/metrics"
	"sheettools/internal/sales"
	"sheettools/internal/shopify"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout keeps one delivery under the platform's 10s function limit.
const DefaultTimeout = 9500 * time.Millisecond

// WebhookHandler answers Shopify orders/create deliveries.
//
// ConfigErr is set at startup when the store or a required secret is
// missing; every POST then answers 500 with DebugInfo so the operator can see
// what is absent without reading logs.
type WebhookHandler struct {
	Ingester         *ingest.Ingester
	Secret           string
	RequireSignature bool
	ConfigErr        error
	DebugInfo        map[string]any
	Timeout          time.Duration
	Metrics          *metrics.Registry
	Logger           *zap.Logger
	Now              func() time.Time
}

func (h *WebhookHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch req.HTTPMethod {
	case http.MethodOptions:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: map[string]string{"Content-Type": "application/json"}}, nil
	case http.MethodPost:
	default:
		return errResp(http.StatusMethodNotAllowed, "Method Not Allowed")
	}

	rid := requestID(req)
	log := h.logger().With(zap.String("request_id", rid))

	if err := h.configError(); err != nil {
		log.Error("webhook misconfigured", zap.Error(err))
		h.count(metrics.OutcomeMisconfig)
		return jsonResp(http.StatusInternalServerError, map[string]any{
			"error":      "Server configuration error",
			"message":    err.Error(),
			"debug_info": h.DebugInfo,
		})
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			h.count(metrics.OutcomeInvalid)
			return h.failure(log, "Invalid request body", err)
		}
		body = decoded
	}

	if err := shopify.VerifyWebhook(body, header(req, shopify.HeaderHmac), h.Secret); err != nil {
		log.Warn("webhook signature rejected",
			zap.String("shop_domain", header(req, shopify.HeaderShopDomain)),
			zap.Error(err))
		h.count(metrics.OutcomeUnauthorized)
		return errResp(http.StatusUnauthorized, "Invalid signature")
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := h.Ingester.Ingest(ctx, ingest.Delivery{
		Body:       body,
		ShopDomain: header(req, shopify.HeaderShopDomain),
		Topic:      header(req, shopify.HeaderTopic),
		WebhookID:  header(req, shopify.HeaderWebhookID),
		RequestID:  rid,
		ReceivedAt: h.now(),
	})
	if err != nil {
		if errors.Is(err, sales.ErrValidation) {
			h.count(metrics.OutcomeInvalid)
			return h.failure(log, "Invalid order payload", err)
		}
		h.count(metrics.OutcomeFailed)
		return h.failure(log, "Internal Server Error", err)
	}

	if res.Duplicate {
		h.count(metrics.OutcomeDuplicate)
		return jsonResp(http.StatusOK, map[string]any{
			"message":  "already processed",
			"order_id": res.OrderID,
		})
	}

	h.count(metrics.OutcomeCreated)
	return jsonResp(http.StatusOK, map[string]any{
		"message":      "Order processed successfully",
		"order_id":     res.OrderID,
		"order_number": res.OrderNumber,
		"items_count":  len(res.Records),
		"vendas":       res.Records,
	})
}

func (h *WebhookHandler) configError() error {
	if h.ConfigErr != nil {
		return h.ConfigErr
	}
	if h.Ingester == nil || h.Ingester.Store == nil || h.Ingester.Owners == nil {
		return sales.ErrConfiguration
	}
	if h.RequireSignature && h.Secret == "" {
		return sales.ErrConfiguration
	}
	return nil
}

// Validation failures keep the 500 the dashboard has always returned.
func (h *WebhookHandler) failure(log *zap.Logger, msg string, err error) (events.APIGatewayProxyResponse, error) {
	log.Error("webhook failed", zap.String("reason", msg), zap.Error(err))
	return jsonResp(http.StatusInternalServerError, map[string]any{
		"error":     msg,
		"message":   err.Error(),
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *WebhookHandler) count(outcome string) {
	if h.Metrics != nil {
		h.Metrics.Webhooks.WithLabelValues(outcome).Inc()
	}
}

func (h *WebhookHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *WebhookHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func requestID(req events.APIGatewayProxyRequest) string {
	if id := req.RequestContext.RequestID; id != "" {
		return id
	}
	if id := header(req, "x-nf-request-id"); id != "" {
		return id
	}
	return uuid.NewString()
}

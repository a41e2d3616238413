package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RoutingKeySaleCreated is the broker routing key and SNS "event" attribute.
const RoutingKeySaleCreated = "sales.created"

// SaleIngested is emitted once per newly stored order.
type SaleIngested struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	ShopDomain  string    `json:"shop_domain"`
	UserID      *string   `json:"user_id"`
	ItemsCount  int       `json:"items_count"`
	Total       float64   `json:"total"`
	Currency    string    `json:"currency"`
	WebhookID   string    `json:"webhook_id,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

func (e SaleIngested) JSON() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, ev SaleIngested) error
	Name() string
}

// FailureHook is told about each sink that failed.
type FailureHook func(sink string, err error)

// Multi publishes to every sink and joins the failures.
type Multi struct {
	Sinks     []Publisher
	Logger    *zap.Logger
	OnFailure FailureHook
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Publish(ctx context.Context, ev SaleIngested) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, s := range m.Sinks {
		if err := s.Publish(ctx, ev); err != nil {
			if m.Logger != nil {
				m.Logger.Warn("sale event publish failed",
					zap.String("sink", s.Name()),
					zap.String("order_id", ev.OrderID),
					zap.Error(err))
			}
			if m.OnFailure != nil {
				m.OnFailure(s.Name(), err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sheettools/internal/events"
	"sheettools/internal/metrics"
	"sheettools/internal/sales"
	"sheettools/internal/shopify"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("shopify-webhook")

// Delivery is one verified webhook request.
type Delivery struct {
	Body       []byte
	ShopDomain string
	Topic      string
	WebhookID  string
	RequestID  string
	ReceivedAt time.Time
}

// Result describes what happened to a delivery. Duplicate deliveries carry
// only the order id.
type Result struct {
	Duplicate   bool
	OrderID     string
	OrderNumber string
	Records     []sales.Record
	Attribution sales.Attribution
}

type OwnerResolver interface {
	Resolve(ctx context.Context, shopDomain string) (sales.Attribution, error)
}

// Deliveries records webhook ids whose sales are stored. Nothing is written
// before the insert succeeds.
type Deliveries interface {
	Seen(ctx context.Context, webhookID string) (bool, error)
	Record(ctx context.Context, webhookID, shopDomain, orderID string) error
}

type StatusUpdater interface {
	UpdateLastEvent(ctx context.Context, ev shopify.LastEvent) error
}

// Ingester turns a Shopify order into stored sales. Store and Owners are
// required; the rest is optional.
type Ingester struct {
	Store   sales.Store
	Owners  OwnerResolver
	Dedupe  Deliveries
	Status  StatusUpdater
	Events  events.Publisher
	Metrics *metrics.Registry
	Logger  *zap.Logger
}

func (in *Ingester) Ingest(ctx context.Context, d Delivery) (Result, error) {
	ctx, span := tracer.Start(ctx, "ingest.order", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	start := time.Now()
	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = start.UTC()
	}

	logger := in.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(
		zap.String("request_id", d.RequestID),
		zap.String("webhook_id", d.WebhookID),
		zap.String("topic", d.Topic),
	)

	order, err := shopify.ParseOrder(d.Body)
	if err != nil {
		err = fmt.Errorf("decode order: %w: %v", sales.ErrValidation, err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	records, err := shopify.MapOrder(order, d.ShopDomain)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	orderID := records[0].OrderID
	shop := records[0].ShopDomain
	res := Result{OrderID: orderID, OrderNumber: records[0].OrderNumber}
	log = log.With(zap.String("order_id", orderID), zap.String("shop_domain", shop))
	span.SetAttributes(
		attribute.String("shopify.order_id", orderID),
		attribute.String("shopify.shop_domain", shop),
		attribute.Int("sales.items", len(records)),
	)

	if in.Dedupe != nil {
		seen, err := in.Dedupe.Seen(ctx, d.WebhookID)
		if err != nil {
			log.Warn("webhook lookup failed, relying on store constraint", zap.Error(err))
		}
		if seen {
			log.Info("webhook already processed")
			span.SetAttributes(attribute.Bool("sales.duplicate", true))
			return Result{Duplicate: true, OrderID: orderID}, nil
		}
	}

	att, err := in.Owners.Resolve(ctx, shop)
	if err != nil {
		log.Warn("owner lookup failed", zap.Error(err))
	}
	if att.UserID == nil {
		log.Warn("unattributed sale", zap.Int("items", len(records)))
		if in.Metrics != nil {
			in.Metrics.Unattributed.Inc()
		}
	}
	sales.Attribute(records, att.UserID)
	res.Attribution = att

	inserted, err := in.Store.InsertSales(ctx, records)
	if err != nil {
		if errors.Is(err, sales.ErrDuplicate) {
			log.Info("order already processed")
			span.SetAttributes(attribute.Bool("sales.duplicate", true))
			in.record(ctx, log, d.WebhookID, shop, orderID)
			return Result{Duplicate: true, OrderID: orderID}, nil
		}
		if !errors.Is(err, sales.ErrDependency) {
			err = fmt.Errorf("%w: %v", sales.ErrDependency, err)
		}
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	if len(inserted) == 0 {
		inserted = records
	}
	res.Records = inserted
	in.record(ctx, log, d.WebhookID, shop, orderID)

	if in.Metrics != nil {
		in.Metrics.SalesInserted.Add(float64(len(inserted)))
		in.Metrics.IngestLatency.Observe(time.Since(start).Seconds())
	}
	log.Info("sales stored",
		zap.Int("items", len(inserted)),
		zap.String("owner_source", att.Source),
	)

	if in.Status != nil && att.Source == sales.SourceShopMapping {
		err := in.Status.UpdateLastEvent(ctx, shopify.LastEvent{
			UserID:     *att.UserID,
			ShopDomain: shop,
			At:         d.ReceivedAt.UTC().Format(time.RFC3339),
			Topic:      d.Topic,
			WebhookID:  d.WebhookID,
			OrderID:    orderID,
		})
		if err != nil {
			log.Warn("last event update failed", zap.Error(err))
		}
	}

	if in.Events != nil {
		ev := events.SaleIngested{
			OrderID:     orderID,
			OrderNumber: res.OrderNumber,
			ShopDomain:  shop,
			UserID:      att.UserID,
			ItemsCount:  len(inserted),
			Total:       sales.Total(inserted),
			Currency:    records[0].Currency,
			WebhookID:   d.WebhookID,
			ReceivedAt:  d.ReceivedAt,
		}
		if err := in.Events.Publish(ctx, ev); err != nil {
			log.Warn("sale event not delivered", zap.Error(err))
		}
	}

	return res, nil
}

func (in *Ingester) record(ctx context.Context, log *zap.Logger, webhookID, shop, orderID string) {
	if in.Dedupe == nil {
		return
	}
	if err := in.Dedupe.Record(context.WithoutCancel(ctx), webhookID, shop, orderID); err != nil {
		log.Warn("webhook record failed", zap.Error(err))
	}
}

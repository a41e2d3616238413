package events

import (
	"context"
	"fmt"
	"net"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher dials the broker for each message. Function instances are
// short-lived, so no connection is kept between invocations.
type AMQPPublisher struct {
	URL      string
	Exchange string
}

func (p *AMQPPublisher) Name() string { return "rabbitmq" }

func (p *AMQPPublisher) Publish(ctx context.Context, ev SaleIngested) error {
	msg, err := publishing(ev)
	if err != nil {
		return err
	}

	config := amqp.Config{
		Dial: func(network, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, network, addr)
		},
	}
	conn, err := amqp.DialConfig(p.URL, config)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel to RabbitMQ: %w", err)
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, p.Exchange, RoutingKeySaleCreated, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish a message to RabbitMQ: %w", err)
	}
	return nil
}

func publishing(ev SaleIngested) (amqp.Publishing, error) {
	body, err := ev.JSON()
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.ReceivedAt,
		MessageId:    ev.OrderID,
		Headers: amqp.Table{
			"X-Shopify-Shop-Domain": ev.ShopDomain,
			"X-Shopify-Webhook-Id":  ev.WebhookID,
		},
	}, nil
}

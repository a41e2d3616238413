package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the part of the SNS client used here.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSPublisher struct {
	Client   SNSAPI
	TopicARN string
}

func (p *SNSPublisher) Name() string { return "sns" }

func (p *SNSPublisher) Publish(ctx context.Context, ev SaleIngested) error {
	body, err := ev.JSON()
	if err != nil {
		return err
	}
	_, err = p.Client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.TopicARN),
		Subject:  aws.String(subject(ev)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(RoutingKeySaleCreated)},
			"shop":  {DataType: aws.String("String"), StringValue: aws.String(shopAttr(ev.ShopDomain))},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// SNS subjects must be under 100 characters.
func subject(ev SaleIngested) string {
	s := fmt.Sprintf("Sheet Tools: nova venda %s (%s)", ev.OrderNumber, ev.ShopDomain)
	if len(s) > 99 {
		s = s[:99]
	}
	return s
}

func shopAttr(shop string) string {
	if strings.TrimSpace(shop) == "" {
		return "unknown"
	}
	return shop
}

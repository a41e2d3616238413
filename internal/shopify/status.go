package shopify

import (
	"context"
	"fmt"
	"strings"

	"sheettools/internal/db"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// LastEvent is what the dashboard shows as "last webhook received" for a shop.
type LastEvent struct {
	UserID     string
	ShopDomain string
	At         string
	Topic      string
	WebhookID  string
	OrderID    string
}

// StatusRecorder writes LastEvent fields onto the integrations item.
// PK = USER#<sub>, SK = SHOPIFY#<shopDomain>
type StatusRecorder struct {
	DDB   db.DynamoAPI
	Table string
}

func (s *StatusRecorder) UpdateLastEvent(ctx context.Context, ev LastEvent) error {
	if strings.TrimSpace(s.Table) == "" {
		return fmt.Errorf("INTEGRATIONS_TABLE not set")
	}
	if strings.TrimSpace(ev.UserID) == "" || strings.TrimSpace(ev.ShopDomain) == "" {
		return fmt.Errorf("missing user/shop for last event")
	}

	updateExpr := "SET LastEventAt=:a, LastEventTopic=:t, LastOrderId=:o"
	vals := map[string]types.AttributeValue{
		":a": &types.AttributeValueMemberS{Value: ev.At},
		":t": &types.AttributeValueMemberS{Value: ev.Topic},
		":o": &types.AttributeValueMemberS{Value: ev.OrderID},
	}
	if strings.TrimSpace(ev.WebhookID) != "" {
		updateExpr += ", LastEventWebhookId=:w"
		vals[":w"] = &types.AttributeValueMemberS{Value: ev.WebhookID}
	}

	_, err := s.DDB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.Table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", ev.UserID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SHOPIFY#%s", strings.ToLower(ev.ShopDomain))},
		},
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeValues: vals,
	})
	if err != nil {
		return fmt.Errorf("update last event: %w", err)
	}
	return nil
}

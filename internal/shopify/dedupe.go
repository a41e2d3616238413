package shopify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sheettools/internal/db"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const dedupeTTL = 7 * 24 * time.Hour

// Deduper remembers webhook delivery ids whose sales are already stored, so a
// redelivered webhook is answered before touching the sales store. A marker is
// only written after the insert succeeded; a delivery that died half way
// leaves nothing behind and its redelivery is processed normally.
type Deduper struct {
	DDB   db.DynamoAPI
	Table string
	Now   func() time.Time
}

func dedupeKey(webhookID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("WH#%s", webhookID)},
	}
}

func (d *Deduper) enabled(webhookID string) bool {
	return d != nil && strings.TrimSpace(d.Table) != "" && webhookID != ""
}

// Seen reports whether the delivery was already stored. An empty table or
// webhook id never blocks.
func (d *Deduper) Seen(ctx context.Context, webhookID string) (bool, error) {
	webhookID = strings.TrimSpace(webhookID)
	if !d.enabled(webhookID) {
		return false, nil
	}
	out, err := d.DDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.Table),
		Key:            dedupeKey(webhookID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("lookup webhook %s: %w", webhookID, err)
	}
	return len(out.Item) > 0, nil
}

// Record marks the delivery as stored. Writing the same id twice is harmless.
func (d *Deduper) Record(ctx context.Context, webhookID, shopDomain, orderID string) error {
	webhookID = strings.TrimSpace(webhookID)
	if !d.enabled(webhookID) {
		return nil
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	t := now().UTC()

	item := dedupeKey(webhookID)
	item["Shop"] = &types.AttributeValueMemberS{Value: shopDomain}
	item["OrderId"] = &types.AttributeValueMemberS{Value: orderID}
	item["CreatedAt"] = &types.AttributeValueMemberS{Value: t.Format(time.RFC3339)}
	item["ExpiresAt"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", t.Add(dedupeTTL).Unix())}

	_, err := d.DDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.Table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("record webhook %s: %w", webhookID, err)
	}
	return nil
}

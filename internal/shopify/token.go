package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sheettools/internal/db"
	"sheettools/internal/security"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IntegrationItem mirrors the integrations table item written when a user
// connects a shop.
type IntegrationItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	Shop           string `dynamodbav:"Shop"`
	AccessTokenEnc string `dynamodbav:"AccessTokenEnc"`
	Scope          string `dynamodbav:"Scope"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	LastEventAt    string `dynamodbav:"LastEventAt,omitempty"`
}

// LoadAccessToken reads the user's integration for a shop and opens the
// sealed Admin API token.
func LoadAccessToken(ctx context.Context, ddb db.DynamoAPI, table string, tc *security.TokenCipher, userID, shopDomain string) (string, *IntegrationItem, error) {
	if userID == "" {
		return "", nil, errors.New("missing user id")
	}
	if shopDomain == "" {
		return "", nil, errors.New("missing shop domain")
	}
	if strings.TrimSpace(table) == "" {
		return "", nil, errors.New("INTEGRATIONS_TABLE not configured")
	}

	out, err := ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SHOPIFY#%s", strings.ToLower(shopDomain))},
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("get integration: %w", err)
	}
	if out.Item == nil {
		return "", nil, fmt.Errorf("shop not connected: %s", shopDomain)
	}

	var integ IntegrationItem
	if err := attributevalue.UnmarshalMap(out.Item, &integ); err != nil {
		return "", nil, fmt.Errorf("unmarshal integration: %w", err)
	}
	enc := strings.TrimSpace(integ.AccessTokenEnc)
	if enc == "" {
		return "", nil, errors.New("no AccessTokenEnc on record")
	}

	token, err := tc.Open(enc)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decrypt token: %w", err)
	}
	return token, &integ, nil
}

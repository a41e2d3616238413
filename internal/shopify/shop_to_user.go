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

// UsersForShop lists the user ids mapped to a shop.
// Items: PK=SHOP#<domain>, SK=USER#<sub>.
func UsersForShop(ctx context.Context, ddb db.DynamoAPI, table, shopDomain string) ([]string, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("SHOP_TO_USER_TABLE not set")
	}

	out, err := ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :u)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("SHOP#%s", strings.ToLower(shopDomain))},
			":u":  &types.AttributeValueMemberS{Value: "USER#"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query shop owners: %w", err)
	}

	var subs []string
	for _, it := range out.Items {
		if sk, ok := it["SK"].(*types.AttributeValueMemberS); ok {
			if s := strings.TrimPrefix(sk.Value, "USER#"); s != "" {
				subs = append(subs, s)
			}
		}
	}
	return subs, nil
}

// ShopOwnerResolver maps a shop domain to the user that connected it.
type ShopOwnerResolver struct {
	DDB   db.DynamoAPI
	Table string
}

// ResolveOwner returns the first mapped user, or nil for an unknown shop.
func (r *ShopOwnerResolver) ResolveOwner(ctx context.Context, shopDomain string) (*string, error) {
	if !ValidShopDomain(shopDomain) {
		return nil, nil
	}
	subs, err := UsersForShop(ctx, r.DDB, r.Table, shopDomain)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

// ValidShopDomain accepts only <name>.myshopify.com hosts.
func ValidShopDomain(shop string) bool {
	shop = strings.ToLower(strings.TrimSpace(shop))
	if !strings.HasSuffix(shop, ".myshopify.com") {
		return false
	}
	if strings.ContainsAny(shop, "/ ") {
		return false
	}
	return len(shop) >= len("a.myshopify.com")
}

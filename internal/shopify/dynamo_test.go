package shopify

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"sheettools/internal/security"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDynamo struct {
	mock.Mock
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func attrS(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func TestDeduper_Seen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		Title string
		Out   *dynamodb.GetItemOutput
		Err   error
		Want  bool
	}{
		{Title: "unknown delivery", Out: &dynamodb.GetItemOutput{}, Want: false},
		{Title: "stored delivery", Out: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "WH#wh-1"},
		}}, Want: true},
		{Title: "dynamo failure", Err: errors.New("throttled")},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			ddb := new(mockDynamo)
			ddb.On("GetItem", ctx, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
				return *in.TableName == "dedupe" && attrS(in.Key["PK"]) == "WH#wh-1" && *in.ConsistentRead
			})).Return(tt.Out, tt.Err)

			seen, err := (&Deduper{DDB: ddb, Table: "dedupe"}).Seen(ctx, " wh-1 ")
			if tt.Err != nil {
				assert.ErrorContains(t, err, "throttled")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.Want, seen)
			ddb.AssertNotCalled(t, "PutItem", mock.Anything, mock.Anything)
		})
	}

	t.Run("not configured", func(t *testing.T) {
		ddb := new(mockDynamo)
		var nilDeduper *Deduper
		seen, err := nilDeduper.Seen(ctx, "wh-1")
		assert.NoError(t, err)
		assert.False(t, seen)

		seen, err = (&Deduper{DDB: ddb, Table: "dedupe"}).Seen(ctx, "  ")
		assert.NoError(t, err)
		assert.False(t, seen)
		ddb.AssertNotCalled(t, "GetItem", mock.Anything, mock.Anything)
	})
}

func TestDeduper_Record(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ddb := new(mockDynamo)
	ddb.On("PutItem", ctx, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		exp, _ := in.Item["ExpiresAt"].(*types.AttributeValueMemberN)
		return *in.TableName == "dedupe" &&
			attrS(in.Item["PK"]) == "WH#wh-2" &&
			attrS(in.Item["OrderId"]) == "99" &&
			attrS(in.Item["CreatedAt"]) == "2026-01-02T03:04:05Z" &&
			exp != nil && exp.Value == "1767927845" &&
			in.ConditionExpression == nil
	})).Return(&dynamodb.PutItemOutput{}, nil)

	d := &Deduper{DDB: ddb, Table: "dedupe", Now: func() time.Time { return fixed }}
	require.NoError(t, d.Record(ctx, "wh-2", "shop.myshopify.com", "99"))
	ddb.AssertExpectations(t)

	failing := new(mockDynamo)
	failing.On("PutItem", ctx, mock.Anything).Return(nil, errors.New("throttled"))
	assert.ErrorContains(t, (&Deduper{DDB: failing, Table: "dedupe"}).Record(ctx, "wh-2", "", ""), "throttled")
}

func TestShopOwnerResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("mapped shop", func(t *testing.T) {
		ddb := new(mockDynamo)
		ddb.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return attrS(in.ExpressionAttributeValues[":pk"]) == "SHOP#loja.myshopify.com"
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
			{"SK": &types.AttributeValueMemberS{Value: "USER#owner-1"}},
			{"SK": &types.AttributeValueMemberS{Value: "USER#owner-2"}},
		}}, nil)

		r := &ShopOwnerResolver{DDB: ddb, Table: "shop_to_user"}
		id, err := r.ResolveOwner(ctx, "Loja.myshopify.com")
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, "owner-1", *id)
	})

	t.Run("unknown shop", func(t *testing.T) {
		ddb := new(mockDynamo)
		ddb.On("Query", ctx, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

		r := &ShopOwnerResolver{DDB: ddb, Table: "shop_to_user"}
		id, err := r.ResolveOwner(ctx, "x.myshopify.com")
		require.NoError(t, err)
		assert.Nil(t, id)
	})

	t.Run("empty or foreign shop skips lookup", func(t *testing.T) {
		ddb := new(mockDynamo)
		r := &ShopOwnerResolver{DDB: ddb, Table: "shop_to_user"}
		for _, shop := range []string{"", "loja.com.br", "evil.com/x.myshopify.com"} {
			id, err := r.ResolveOwner(ctx, shop)
			require.NoError(t, err)
			assert.Nil(t, id)
		}
		ddb.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
	})

	t.Run("missing table", func(t *testing.T) {
		r := &ShopOwnerResolver{DDB: new(mockDynamo)}
		_, err := r.ResolveOwner(ctx, "x.myshopify.com")
		assert.ErrorContains(t, err, "SHOP_TO_USER_TABLE")
	})
}

func TestStatusRecorder_UpdateLastEvent(t *testing.T) {
	ctx := context.Background()
	ddb := new(mockDynamo)
	ddb.On("UpdateItem", ctx, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return attrS(in.Key["PK"]) == "USER#u1" &&
			attrS(in.Key["SK"]) == "SHOPIFY#loja.myshopify.com" &&
			strings.Contains(*in.UpdateExpression, "LastEventWebhookId") &&
			attrS(in.ExpressionAttributeValues[":o"]) == "7"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	s := &StatusRecorder{DDB: ddb, Table: "integrations"}
	err := s.UpdateLastEvent(ctx, LastEvent{
		UserID: "u1", ShopDomain: "loja.myshopify.com", At: "2026-01-01T00:00:00Z",
		Topic: "orders/create", WebhookID: "wh", OrderID: "7",
	})
	require.NoError(t, err)
	ddb.AssertExpectations(t)

	err = s.UpdateLastEvent(ctx, LastEvent{ShopDomain: "loja.myshopify.com"})
	assert.ErrorContains(t, err, "missing user/shop")

	err = (&StatusRecorder{DDB: ddb}).UpdateLastEvent(ctx, LastEvent{UserID: "u1", ShopDomain: "s"})
	assert.ErrorContains(t, err, "INTEGRATIONS_TABLE")
}

func TestLoadAccessToken(t *testing.T) {
	ctx := context.Background()
	tc, err := security.NewTokenCipherFromBase64(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("z", 32))))
	require.NoError(t, err)
	sealed, err := tc.Seal("shpat_abc")
	require.NoError(t, err)

	ddb := new(mockDynamo)
	ddb.On("GetItem", ctx, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return attrS(in.Key["SK"]) == "SHOPIFY#loja.myshopify.com"
	})).Return(&dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: "USER#u1"},
		"SK":             &types.AttributeValueMemberS{Value: "SHOPIFY#loja.myshopify.com"},
		"Shop":           &types.AttributeValueMemberS{Value: "loja.myshopify.com"},
		"AccessTokenEnc": &types.AttributeValueMemberS{Value: sealed},
	}}, nil).Once()

	token, integ, err := LoadAccessToken(ctx, ddb, "integrations", tc, "u1", "loja.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat_abc", token)
	assert.Equal(t, "loja.myshopify.com", integ.Shop)

	ddb.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil).Once()
	_, _, err = LoadAccessToken(ctx, ddb, "integrations", tc, "u1", "other.myshopify.com")
	assert.ErrorContains(t, err, "shop not connected")

	_, _, err = LoadAccessToken(ctx, ddb, "", tc, "u1", "x")
	assert.ErrorContains(t, err, "INTEGRATIONS_TABLE")
}

func TestValidShopDomain(t *testing.T) {
	assert.True(t, ValidShopDomain("loja.myshopify.com"))
	assert.True(t, ValidShopDomain(" Loja.MyShopify.com "))
	assert.False(t, ValidShopDomain(".myshopify.com"))
	assert.False(t, ValidShopDomain("loja.myshopify.com.evil.io"))
	assert.False(t, ValidShopDomain("a b.myshopify.com"))
}

func strPtr(s string) *string { return &s }

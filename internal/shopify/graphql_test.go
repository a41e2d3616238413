package shopify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminTestServer(t *testing.T, status int, response string, seen *map[string]any) *AdminClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2025-07/graphql.json", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get("X-Shopify-Access-Token"))
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	c := NewAdminClient("loja.myshopify.com", "", "tok")
	c.BaseURL = srv.URL
	return c
}

func TestRegisterOrderWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("created", func(t *testing.T) {
		var seen map[string]any
		c := adminTestServer(t, 200, `{"data":{"webhookSubscriptionCreate":{"webhookSubscription":{"id":"gid://shopify/WebhookSubscription/1"},"userErrors":[]}}}`, &seen)

		id, err := RegisterOrderWebhook(ctx, c, WebhookCallbackURL("https://sheet.tools/"))
		require.NoError(t, err)
		assert.Equal(t, "gid://shopify/WebhookSubscription/1", id)

		vars := seen["variables"].(map[string]any)
		assert.Equal(t, "ORDERS_CREATE", vars["topic"])
		assert.Equal(t, "https://sheet.tools/.netlify/functions/shopify-webhook", vars["sub"].(map[string]any)["callbackUrl"])
	})

	t.Run("user errors", func(t *testing.T) {
		c := adminTestServer(t, 200, `{"data":{"webhookSubscriptionCreate":{"webhookSubscription":null,"userErrors":[{"field":["webhookSubscription","callbackUrl"],"message":"Address for this topic has already been taken"}]}}}`, nil)
		_, err := RegisterOrderWebhook(ctx, c, "https://sheet.tools/x")
		assert.ErrorContains(t, err, "already been taken")
	})

	t.Run("graphql errors", func(t *testing.T) {
		c := adminTestServer(t, 200, `{"errors":[{"message":"Access denied","extensions":{"code":"ACCESS_DENIED"}}]}`, nil)
		_, err := RegisterOrderWebhook(ctx, c, "https://sheet.tools/x")
		assert.ErrorContains(t, err, "Access denied (ACCESS_DENIED)")
	})

	t.Run("http error", func(t *testing.T) {
		c := adminTestServer(t, 401, `{"errors":"[API] Invalid API key or access token"}`, nil)
		_, err := RegisterOrderWebhook(ctx, c, "https://sheet.tools/x")
		assert.ErrorContains(t, err, "non-2xx")
	})

	t.Run("insecure callback", func(t *testing.T) {
		_, err := RegisterOrderWebhook(ctx, NewAdminClient("x", "", ""), "http://sheet.tools/x")
		assert.ErrorContains(t, err, "https")
	})
}

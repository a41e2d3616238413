package shopify

import (
	"context"
	"fmt"
	"strings"
)

const webhookSubscriptionCreate = `
mutation webhookSubscriptionCreate($topic: WebhookSubscriptionTopic!, $sub: WebhookSubscriptionInput!) {
  webhookSubscriptionCreate(topic: $topic, webhookSubscription: $sub) {
    webhookSubscription { id }
    userErrors { field message }
  }
}`

type webhookSubscriptionCreateData struct {
	WebhookSubscriptionCreate struct {
		WebhookSubscription *struct {
			ID string `json:"id"`
		} `json:"webhookSubscription"`
		UserErrors []struct {
			Field   []string `json:"field"`
			Message string   `json:"message"`
		} `json:"userErrors"`
	} `json:"webhookSubscriptionCreate"`
}

// WebhookFunctionPath is where the webhook function is served on the site.
const WebhookFunctionPath = "/.netlify/functions/shopify-webhook"

// WebhookCallbackURL joins the site base URL and the function path.
func WebhookCallbackURL(siteURL string) string {
	return strings.TrimRight(siteURL, "/") + WebhookFunctionPath
}

// RegisterOrderWebhook subscribes the shop's orders/create topic to callbackURL
// and returns the subscription gid.
func RegisterOrderWebhook(ctx context.Context, c *AdminClient, callbackURL string) (string, error) {
	if !strings.HasPrefix(callbackURL, "https://") {
		return "", fmt.Errorf("callback url must be https: %q", callbackURL)
	}
	resp, err := PostGraphQL[webhookSubscriptionCreateData](ctx, c, webhookSubscriptionCreate, map[string]any{
		"topic": "ORDERS_CREATE",
		"sub": map[string]any{
			"callbackUrl": callbackURL,
			"format":      "JSON",
		},
	})
	if err != nil {
		return "", err
	}
	payload := resp.Data.WebhookSubscriptionCreate
	if len(payload.UserErrors) > 0 {
		msgs := make([]string, 0, len(payload.UserErrors))
		for _, ue := range payload.UserErrors {
			msgs = append(msgs, fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message))
		}
		return "", fmt.Errorf("create webhook failed: %s", strings.Join(msgs, "; "))
	}
	if payload.WebhookSubscription == nil {
		return "", fmt.Errorf("create webhook failed: empty subscription")
	}
	return payload.WebhookSubscription.ID, nil
}

package shopify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultAPIVersion = "2025-07"

type GraphQLError struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code,omitempty"`
	} `json:"extensions,omitempty"`
}

type GraphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// AdminClient talks to one shop's Admin GraphQL API.
type AdminClient struct {
	http        *resty.Client
	BaseURL     string
	APIVersion  string
	AccessToken string
}

func NewAdminClient(shopDomain, apiVersion, accessToken string) *AdminClient {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &AdminClient{
		http:        resty.New().SetTimeout(30 * time.Second),
		BaseURL:     "https://" + strings.ToLower(shopDomain),
		APIVersion:  apiVersion,
		AccessToken: accessToken,
	}
}

func (c *AdminClient) endpoint() string {
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", strings.TrimRight(c.BaseURL, "/"), c.APIVersion)
}

// PostGraphQL runs one query. Non-2xx statuses and top-level GraphQL errors
// are returned as errors.
func PostGraphQL[T any](ctx context.Context, c *AdminClient, query string, variables any) (*GraphQLResponse[T], error) {
	var out GraphQLResponse[T]
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Shopify-Access-Token", c.AccessToken).
		SetBody(map[string]any{
			"query":     query,
			"variables": variables,
		}).
		SetResult(&out).
		Post(c.endpoint())
	if err != nil {
		return nil, fmt.Errorf("error requesting GraphQL query: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("non-2xx response from GraphQL query: [%s] %s", res.Status(), res.Body())
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			if e.Extensions.Code != "" {
				msgs = append(msgs, e.Message+" ("+e.Extensions.Code+")")
			} else {
				msgs = append(msgs, e.Message)
			}
		}
		return &out, fmt.Errorf("errors in GraphQL response: %s", strings.Join(msgs, "; "))
	}
	return &out, nil
}

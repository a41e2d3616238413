package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
)

// LambdaFunc is the signature of a function handler.
type LambdaFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Gin serves a function handler from a local gin router, so the dev server
// exercises the same code path as the deployed function.
func Gin(fn LambdaFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
			return
		}

		headers := make(map[string]string, len(c.Request.Header))
		multi := make(map[string][]string, len(c.Request.Header))
		for k, vs := range c.Request.Header {
			lk := strings.ToLower(k)
			multi[lk] = vs
			if len(vs) > 0 {
				headers[lk] = vs[0]
			}
		}
		query := map[string]string{}
		for k, vs := range c.Request.URL.Query() {
			if len(vs) > 0 {
				query[k] = vs[0]
			}
		}

		resp, err := fn(c.Request.Context(), events.APIGatewayProxyRequest{
			HTTPMethod:            c.Request.Method,
			Path:                  c.Request.URL.Path,
			Headers:               headers,
			MultiValueHeaders:     multi,
			QueryStringParameters: query,
			Body:                  string(body),
			RequestContext: events.APIGatewayProxyRequestContext{
				RequestID: c.GetHeader("X-Request-Id"),
			},
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		for k, v := range resp.Headers {
			c.Header(k, v)
		}
		c.Status(resp.StatusCode)
		_, _ = c.Writer.WriteString(resp.Body)
	}
}

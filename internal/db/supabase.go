package db

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sheettools/internal/sales"

	"github.com/go-resty/resty/v2"
)

// SupabaseStore inserts sales through the PostgREST API using the service role key.
type SupabaseStore struct {
	http  *resty.Client
	table string
}

type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func NewSupabaseStore(baseURL, serviceRoleKey, table string) *SupabaseStore {
	if table == "" {
		table = "vendas"
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/rest/v1").
		SetTimeout(8*time.Second).
		SetHeader("apikey", serviceRoleKey).
		SetAuthToken(serviceRoleKey).
		SetHeader("Content-Type", "application/json")
	return &SupabaseStore{http: c, table: table}
}

func (s *SupabaseStore) InsertSales(ctx context.Context, records []sales.Record) ([]sales.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	var inserted []sales.Record
	var perr postgrestError
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(records).
		SetResult(&inserted).
		SetError(&perr).
		Post("/" + s.table)
	if err != nil {
		return nil, fmt.Errorf("insert sales: %w: %v", sales.ErrDependency, err)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusConflict || perr.Code == uniqueViolation {
			return nil, fmt.Errorf("insert sales: %w: %s", sales.ErrDuplicate, perr.Message)
		}
		return nil, fmt.Errorf("insert sales: %w: status=%d code=%s %s", sales.ErrDependency, resp.StatusCode(), perr.Code, perr.Message)
	}
	return inserted, nil
}

func (s *SupabaseStore) FirstUserID(ctx context.Context) (*string, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]any{}).
		Post("/rpc/get_first_user")
	if err != nil {
		return nil, fmt.Errorf("get_first_user: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get_first_user: status=%d body=%s", resp.StatusCode(), resp.String())
	}

	var id *string
	if err := json.Unmarshal(resp.Body(), &id); err != nil {
		return nil, fmt.Errorf("get_first_user: decode: %w", err)
	}
	if id != nil && strings.TrimSpace(*id) == "" {
		return nil, nil
	}
	return id, nil
}

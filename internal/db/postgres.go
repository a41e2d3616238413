package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"sheettools/internal/sales"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

var salesColumns = []string{
	"order_id", "line_item_id", "produto", "preco", "quantidade", "customer_email",
	"customer_name", "order_number", "financial_status", "fulfillment_status",
	"currency", "shop_domain", "product_image_url", "user_id",
}

// NewPostgresPool opens a small pool suited to a short-lived function.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	config.MaxConns = 4
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// PostgresStore writes sales straight into Postgres (Supabase's database or any other).
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresStore(pool *pgxpool.Pool, table string) *PostgresStore {
	if table == "" {
		table = "vendas"
	}
	return &PostgresStore{pool: pool, table: table}
}

// EnsureSchema creates the sales table and the first-user function.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// BuildInsertSQL returns a single multi-row INSERT ... RETURNING statement and its args.
func BuildInsertSQL(table string, records []sales.Record) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(pgx.Identifier{table}.Sanitize())
	sb.WriteString(" (")
	sb.WriteString(strings.Join(salesColumns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*len(salesColumns))
	for i, r := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := range salesColumns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*len(salesColumns)+j+1)
		}
		sb.WriteString(")")
		args = append(args,
			r.OrderID, r.LineItemID, r.Produto, r.Preco, r.Quantidade, r.CustomerEmail,
			r.CustomerName, r.OrderNumber, r.FinancialStatus, r.FulfillmentStatus,
			r.Currency, r.ShopDomain, r.ProductImageURL, r.UserID,
		)
	}
	sb.WriteString(" RETURNING id, ")
	for _, c := range salesColumns {
		if c == "user_id" {
			sb.WriteString("user_id::text AS user_id, ")
			continue
		}
		sb.WriteString(c + ", ")
	}
	sb.WriteString("created_at")
	return sb.String(), args
}

func (s *PostgresStore) InsertSales(ctx context.Context, records []sales.Record) ([]sales.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	sql, args := BuildInsertSQL(s.table, records)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classifyPgError("insert sales", err)
	}
	inserted, err := pgx.CollectRows(rows, pgx.RowToStructByName[sales.Record])
	if err != nil {
		return nil, classifyPgError("insert sales", err)
	}
	return inserted, nil
}

func (s *PostgresStore) FirstUserID(ctx context.Context) (*string, error) {
	var id *string
	if err := s.pool.QueryRow(ctx, "SELECT get_first_user()::text").Scan(&id); err != nil {
		return nil, fmt.Errorf("get_first_user: %w", err)
	}
	return id, nil
}

// DailyShopSales is one (shop, day) aggregate of the sales table.
type DailyShopSales struct {
	ShopDomain        string
	Day               string
	GrossRevenue      float64
	Orders            int64
	Items             int64
	UnattributedItems int64
}

// DailySales aggregates rows created in [from, to) per shop and calendar day in loc.
func (s *PostgresStore) DailySales(ctx context.Context, from, to time.Time, loc *time.Location) ([]DailyShopSales, error) {
	q := fmt.Sprintf(`
SELECT shop_domain,
       to_char(created_at AT TIME ZONE $3, 'YYYY-MM-DD') AS day,
       COALESCE(SUM(preco * quantidade), 0)::float8,
       COUNT(DISTINCT order_id),
       COALESCE(SUM(quantidade), 0)::bigint,
       COUNT(*) FILTER (WHERE user_id IS NULL)
FROM %s
WHERE created_at >= $1 AND created_at < $2
GROUP BY 1, 2
ORDER BY 2, 1`, pgx.Identifier{s.table}.Sanitize())

	rows, err := s.pool.Query(ctx, q, from, to, loc.String())
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DailyShopSales, error) {
		var d DailyShopSales
		err := row.Scan(&d.ShopDomain, &d.Day, &d.GrossRevenue, &d.Orders, &d.Items, &d.UnattributedItems)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	return out, nil
}

func classifyPgError(op string, err error) error {
	if IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %v", op, sales.ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w: %v", op, sales.ErrDependency, err)
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

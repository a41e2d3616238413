package etl

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sheettools/internal/db"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"
)

// DailySalesRow matches the Athena table columns.
type DailySalesRow struct {
	ShopDomain        string  `parquet:"name=shop_domain, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	SalesDate         string  `parquet:"name=sales_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"` // YYYY-MM-DD
	GrossRevenue      float64 `parquet:"name=gross_revenue, type=DOUBLE"`
	Orders            int64   `parquet:"name=orders, type=INT64"`
	Items             int64   `parquet:"name=items, type=INT64"`
	UnattributedItems int64   `parquet:"name=unattributed_items, type=INT64"`
}

type DailySalesSource interface {
	DailySales(ctx context.Context, from, to time.Time, loc *time.Location) ([]db.DailyShopSales, error)
}

type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SalesExport writes one parquet object per (shop, day) under
//
//	<prefix>dt=YYYY-MM-DD/shop=<shop>/part-<rand>.parquet
//
// and then repairs the Athena partitions when Athena is configured.
type SalesExport struct {
	Source   DailySalesSource
	S3       S3API
	Athena   AthenaAPI
	Repair   RepairConfig
	Bucket   string
	Prefix   string
	Location *time.Location
	DaysBack int
	Logger   *zap.Logger
	Now      func() time.Time
}

type ExportResult struct {
	Ok       bool          `json:"ok"`
	From     string        `json:"from"`
	To       string        `json:"to"`
	Written  int           `json:"written"`
	Keys     []string      `json:"keys,omitempty"`
	Repair   *RepairResult `json:"repair,omitempty"`
	Bucket   string        `json:"bucket"`
	Prefix   string        `json:"prefix"`
	DaysBack int           `json:"days_back"`
}

// Handle is triggered by an EventBridge schedule.
func (e *SalesExport) Handle(ctx context.Context, _ events.CloudWatchEvent) (ExportResult, error) {
	return e.Run(ctx)
}

// Run exports the DaysBack full days before today (in Location).
func (e *SalesExport) Run(ctx context.Context) (ExportResult, error) {
	if e.Bucket == "" {
		return ExportResult{}, fmt.Errorf("missing env ANALYTICS_BUCKET")
	}
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	daysBack := e.DaysBack
	if daysBack <= 0 {
		daysBack = 1
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}

	today := now().In(loc)
	to := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	from := to.AddDate(0, 0, -daysBack)

	res := ExportResult{
		From:     from.Format("2006-01-02"),
		To:       to.AddDate(0, 0, -1).Format("2006-01-02"),
		Bucket:   e.Bucket,
		Prefix:   ensureTrailingSlash(e.Prefix),
		DaysBack: daysBack,
	}

	aggs, err := e.Source.DailySales(ctx, from, to, loc)
	if err != nil {
		return res, err
	}

	for _, a := range aggs {
		row := DailySalesRow{
			ShopDomain:        a.ShopDomain,
			SalesDate:         a.Day,
			GrossRevenue:      a.GrossRevenue,
			Orders:            a.Orders,
			Items:             a.Items,
			UnattributedItems: a.UnattributedItems,
		}
		key := PartitionKey(e.Prefix, a.Day, a.ShopDomain)
		data, err := EncodeParquet([]DailySalesRow{row})
		if err != nil {
			return res, fmt.Errorf("encode parquet for shop=%s dt=%s: %w", a.ShopDomain, a.Day, err)
		}
		if err := e.put(ctx, key, data); err != nil {
			return res, fmt.Errorf("write parquet for shop=%s dt=%s: %w", a.ShopDomain, a.Day, err)
		}
		res.Written++
		res.Keys = append(res.Keys, key)
	}
	log.Info("daily sales exported",
		zap.String("from", res.From),
		zap.String("to", res.To),
		zap.Int("written", res.Written))

	if e.Athena != nil && e.Repair.Enabled() && res.Written > 0 {
		rr, err := RepairPartitions(ctx, e.Athena, e.Repair)
		res.Repair = &rr
		if err != nil {
			return res, err
		}
		log.Info("athena partitions repaired", zap.String("query_id", rr.QueryID))
	}

	res.Ok = true
	return res, nil
}

// PartitionKey builds a Hive-style object key; the shop is lowercased so one
// shop never splits across partitions.
func PartitionKey(prefix, day, shop string) string {
	return fmt.Sprintf("%sdt=%s/shop=%s/part-%s.parquet",
		ensureTrailingSlash(prefix),
		day,
		strings.ToLower(strings.TrimSpace(shop)),
		randHex(8),
	)
}

// EncodeParquet writes rows to a temporary parquet file and returns its bytes.
func EncodeParquet(rows []DailySalesRow) ([]byte, error) {
	localPath := filepath.Join(os.TempDir(), "daily_sales_"+randHex(8)+".parquet")
	defer func() { _ = os.Remove(localPath) }()

	fw, err := local.NewLocalFileWriter(localPath)
	if err != nil {
		return nil, fmt.Errorf("parquet file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(DailySalesRow), 1)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = 0 // uncompressed

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return nil, fmt.Errorf("parquet write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("parquet close: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("read parquet tmp: %w", err)
	}
	return data, nil
}

func (e *SalesExport) put(ctx context.Context, key string, data []byte) error {
	_, err := e.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		ACL:         s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("s3 putobject failed: %w", err)
	}
	return nil
}

func ensureTrailingSlash(s string) string {
	if s == "" {
		return ""
	}
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

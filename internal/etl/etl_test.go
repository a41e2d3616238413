package etl

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"sheettools/internal/db"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	rows     []db.DailyShopSales
	err      error
	from, to time.Time
}

func (f *fakeSource) DailySales(_ context.Context, from, to time.Time, _ *time.Location) ([]db.DailyShopSales, error) {
	f.from, f.to = from, to
	return f.rows, f.err
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

type mockAthena struct {
	mock.Mock
}

func (m *mockAthena) StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*athena.StartQueryExecutionOutput)
	return out, args.Error(1)
}

func (m *mockAthena) GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, _ ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*athena.GetQueryExecutionOutput)
	return out, args.Error(1)
}

func queryState(s athenatypes.QueryExecutionState, reason string) *athena.GetQueryExecutionOutput {
	return &athena.GetQueryExecutionOutput{QueryExecution: &athenatypes.QueryExecution{
		Status: &athenatypes.QueryExecutionStatus{State: s, StateChangeReason: aws.String(reason)},
	}}
}

func readParquet(t *testing.T, data []byte) []DailySalesRow {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.parquet")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(DailySalesRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	rows := make([]DailySalesRow, int(pr.GetNumRows()))
	require.NoError(t, pr.Read(&rows))
	return rows
}

func TestEncodeParquet_RoundTrip(t *testing.T) {
	in := []DailySalesRow{
		{ShopDomain: "loja.myshopify.com", SalesDate: "2026-04-30", GrossRevenue: 61, Orders: 1, Items: 3, UnattributedItems: 0},
		{ShopDomain: "outra.myshopify.com", SalesDate: "2026-04-30", GrossRevenue: 9.5, Orders: 2, Items: 2, UnattributedItems: 2},
	}
	data, err := EncodeParquet(in)
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, in, readParquet(t, data))
}

func TestPartitionKey(t *testing.T) {
	key := PartitionKey("daily_sales", "2026-04-30", " Loja.myshopify.com ")
	assert.Regexp(t, regexp.MustCompile(`^daily_sales/dt=2026-04-30/shop=loja\.myshopify\.com/part-[0-9a-f]{16}\.parquet$`), key)
}

func TestSalesExport_Run(t *testing.T) {
	ctx := context.Background()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	src := &fakeSource{rows: []db.DailyShopSales{
		{ShopDomain: "loja.myshopify.com", Day: "2026-04-29", GrossRevenue: 61, Orders: 1, Items: 3},
	}}
	store := &fakeS3{objects: map[string][]byte{}}
	ath := new(mockAthena)
	ath.On("StartQueryExecution", ctx, mock.MatchedBy(func(in *athena.StartQueryExecutionInput) bool {
		return aws.ToString(in.QueryString) == "MSCK REPAIR TABLE daily_sales;"
	})).Return(&athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("q-1")}, nil)
	ath.On("GetQueryExecution", ctx, mock.Anything).Return(queryState(athenatypes.QueryExecutionStateRunning, ""), nil).Once()
	ath.On("GetQueryExecution", ctx, mock.Anything).Return(queryState(athenatypes.QueryExecutionStateSucceeded, ""), nil).Once()

	e := &SalesExport{
		Source:   src,
		S3:       store,
		Athena:   ath,
		Repair:   RepairConfig{Database: "analytics", Table: "daily_sales", Output: "s3://results/", PollInterval: time.Millisecond},
		Bucket:   "analytics-bucket",
		Prefix:   "daily_sales/",
		Location: loc,
		DaysBack: 1,
		Logger:   zaptest.NewLogger(t),
		Now:      func() time.Time { return time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC) },
	}

	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Ok)
	assert.Equal(t, "2026-04-29", res.From, "02:00 UTC is still April 30 in São Paulo")
	assert.Equal(t, "2026-04-29", res.To)
	assert.Equal(t, time.Date(2026, 4, 30, 0, 0, 0, 0, loc), src.to)
	assert.Equal(t, 1, res.Written)
	require.NotNil(t, res.Repair)
	assert.Equal(t, "q-1", res.Repair.QueryID)

	require.Len(t, store.objects, 1)
	for key, data := range store.objects {
		assert.Contains(t, key, "daily_sales/dt=2026-04-29/shop=loja.myshopify.com/")
		rows := readParquet(t, data)
		require.Len(t, rows, 1)
		assert.Equal(t, 61.0, rows[0].GrossRevenue)
	}
	ath.AssertExpectations(t)
}

func TestSalesExport_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := (&SalesExport{}).Run(ctx)
	assert.ErrorContains(t, err, "ANALYTICS_BUCKET")

	e := &SalesExport{Source: &fakeSource{err: errors.New("db down")}, S3: &fakeS3{objects: map[string][]byte{}}, Bucket: "b"}
	_, err = e.Run(ctx)
	assert.ErrorContains(t, err, "db down")
}

func TestRepairPartitions(t *testing.T) {
	ctx := context.Background()

	t.Run("failed query", func(t *testing.T) {
		ath := new(mockAthena)
		ath.On("StartQueryExecution", ctx, mock.Anything).Return(&athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("q-2")}, nil)
		ath.On("GetQueryExecution", ctx, mock.Anything).Return(queryState(athenatypes.QueryExecutionStateFailed, "table not found"), nil)

		res, err := RepairPartitions(ctx, ath, RepairConfig{Database: "d", Table: "t", Output: "s3://o/"})
		assert.ErrorContains(t, err, "table not found")
		assert.Equal(t, "q-2", res.QueryID)
		assert.Equal(t, "primary", res.Workgroup)
	})

	t.Run("bad output location", func(t *testing.T) {
		_, err := RepairPartitions(ctx, new(mockAthena), RepairConfig{Database: "d", Table: "t", Output: "results/"})
		assert.ErrorContains(t, err, "s3://")
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := RepairPartitions(ctx, new(mockAthena), RepairConfig{})
		assert.ErrorContains(t, err, "ATHENA_DATABASE")
	})
}

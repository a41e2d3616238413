package etl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
)

type AthenaAPI interface {
	StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

type RepairConfig struct {
	Database     string
	Table        string
	Workgroup    string
	Output       string // s3://bucket/prefix/
	Timeout      time.Duration
	PollInterval time.Duration
}

func (c RepairConfig) Enabled() bool {
	return c.Database != "" && c.Table != "" && c.Output != ""
}

type RepairResult struct {
	Ok        bool   `json:"ok"`
	QueryID   string `json:"query_id,omitempty"`
	State     string `json:"state,omitempty"`
	Database  string `json:"database,omitempty"`
	Table     string `json:"table,omitempty"`
	Workgroup string `json:"workgroup,omitempty"`
	Output    string `json:"output,omitempty"`
}

// RepairPartitions runs MSCK REPAIR TABLE so Athena sees new dt=/shop= prefixes.
func RepairPartitions(ctx context.Context, ath AthenaAPI, c RepairConfig) (RepairResult, error) {
	if !c.Enabled() {
		return RepairResult{}, fmt.Errorf("missing env: ATHENA_DATABASE, ATHENA_TABLE, ATHENA_OUTPUT are required")
	}
	if !strings.HasPrefix(c.Output, "s3://") {
		return RepairResult{}, fmt.Errorf("ATHENA_OUTPUT must start with s3://")
	}
	if c.Workgroup == "" {
		c.Workgroup = "primary"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}

	startOut, err := ath.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(fmt.Sprintf("MSCK REPAIR TABLE %s;", c.Table)),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(c.Database),
		},
		WorkGroup: aws.String(c.Workgroup),
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(c.Output),
		},
	})
	if err != nil {
		return RepairResult{}, fmt.Errorf("StartQueryExecution: %w", err)
	}

	qid := aws.ToString(startOut.QueryExecutionId)
	base := RepairResult{QueryID: qid, Database: c.Database, Table: c.Table, Workgroup: c.Workgroup, Output: c.Output}

	deadline := time.Now().Add(c.Timeout)
	for time.Now().Before(deadline) {
		st, err := ath.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(qid),
		})
		if err != nil {
			return base, fmt.Errorf("GetQueryExecution: %w", err)
		}
		base.State = string(st.QueryExecution.Status.State)
		switch st.QueryExecution.Status.State {
		case athenatypes.QueryExecutionStateSucceeded:
			base.Ok = true
			return base, nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			reason := aws.ToString(st.QueryExecution.Status.StateChangeReason)
			return base, fmt.Errorf("repair %s: %s", base.State, reason)
		}

		select {
		case <-ctx.Done():
			return base, ctx.Err()
		case <-time.After(c.PollInterval):
		}
	}

	base.State = "TIMEOUT"
	return base, fmt.Errorf("repair timed out waiting for qid=%s", qid)
}

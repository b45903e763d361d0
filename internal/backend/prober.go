package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/stackpilot/stackpilot/pkg/logging"
)

// State is the observed existence of the remote backend, derived fresh on
// every run. It is never cached across runs: bucket existence can change
// between runs, e.g. after a teardown.
type State struct {
	Exists      bool   `json:"exists"`
	Bucket      string `json:"bucket"`
	Table       string `json:"table"`
	TableExists bool   `json:"table_exists"`
	ProbedAt    string `json:"probed_at"`
}

// S3ProbeAPI is the subset of the S3 client the prober needs.
type S3ProbeAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// DynamoDBProbeAPI is the subset of the DynamoDB client the prober needs.
type DynamoDBProbeAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Prober determines whether the backend storage already exists.
type Prober struct {
	s3Client  S3ProbeAPI
	ddbClient DynamoDBProbeAPI
	bucket    string
	table     string
	logger    *logging.Logger
}

// NewProber creates a prober for the given bucket and lock table.
func NewProber(s3Client S3ProbeAPI, ddbClient DynamoDBProbeAPI, bucket, table string) *Prober {
	return &Prober{
		s3Client:  s3Client,
		ddbClient: ddbClient,
		bucket:    bucket,
		table:     table,
		logger:    logging.New("prober"),
	}
}

// Probe lists the bucket and describes the lock table to derive the backend
// state. The error handling is deliberately asymmetric: only a definitive
// "no such bucket" maps to Exists=false; a successful listing or any other
// error (network, auth, throttling) maps to Exists=true so that a transient
// failure can never trigger a duplicate-creation attempt.
func (p *Prober) Probe(ctx context.Context) State {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	state := State{
		Bucket:   p.bucket,
		Table:    p.table,
		ProbedAt: time.Now().UTC().Format(time.RFC3339),
	}

	_, err := p.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(1),
	})
	switch {
	case err == nil:
		state.Exists = true
	case isNoSuchBucket(err):
		state.Exists = false
	default:
		state.Exists = true
		p.logger.Warn("Bucket probe failed, assuming backend exists",
			"bucket", p.bucket, "error", err)
	}

	state.TableExists = p.probeTable(ctx)

	p.logger.Debug("Backend probe complete",
		"bucket", p.bucket,
		"exists", state.Exists,
		"table", p.table,
		"table_exists", state.TableExists)

	return state
}

// probeTable applies the same fail-safe polarity to the lock table.
func (p *Prober) probeTable(ctx context.Context) bool {
	_, err := p.ddbClient.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(p.table),
	})
	if err == nil {
		return true
	}

	var notFound *ddbtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return false
	}

	p.logger.Warn("Table probe failed, assuming table exists",
		"table", p.table, "error", err)
	return true
}

// isNoSuchBucket reports whether err is the "bucket does not exist" class of
// S3 error.
func isNoSuchBucket(err error) bool {
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchBucket" || code == "NotFound"
	}

	return strings.Contains(err.Error(), "NoSuchBucket")
}

// Package backend implements the remote-state backend reconciliation
// protocol: probing for backend existence, deciding whether the backend must
// be created, emptying the state bucket before teardown, and guarding runs
// with a DynamoDB lock.
package backend

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/stackpilot/stackpilot/internal/config"
)

// Clients bundles the AWS service clients used by the backend package.
type Clients struct {
	S3       *s3.Client
	DynamoDB *dynamodb.Client
}

// NewClients creates S3 and DynamoDB clients from the explicit AWS config.
func NewClients(ctx context.Context, cfg config.AWSConfig) (*Clients, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	return &Clients{
		S3:       newS3Client(awsCfg, cfg.Endpoint),
		DynamoDB: newDynamoDBClient(awsCfg, cfg.Endpoint),
	}, nil
}

// loadAWSConfig loads the shared AWS config for a region and optional custom
// endpoint. LocalStack endpoints get static test credentials.
func loadAWSConfig(ctx context.Context, region, endpoint string) (aws.Config, error) {
	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	if isLocalEndpoint(endpoint) {
		options = append(options,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
		)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// isLocalEndpoint detects LocalStack or other local test endpoints.
func isLocalEndpoint(endpoint string) bool {
	if endpoint != "" {
		lower := strings.ToLower(endpoint)
		if strings.Contains(lower, "localstack") || strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1") {
			return true
		}
	}
	return os.Getenv("LOCALSTACK_ENDPOINT") != ""
}

func newS3Client(awsCfg aws.Config, endpoint string) *s3.Client {
	if endpoint != "" {
		return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true // Required for LocalStack
		})
	}
	return s3.NewFromConfig(awsCfg)
}

func newDynamoDBClient(awsCfg aws.Config, endpoint string) *dynamodb.Client {
	if endpoint != "" {
		return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return dynamodb.NewFromConfig(awsCfg)
}

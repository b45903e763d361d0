package endpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// loadEC2Config loads the shared AWS config for a region and optional custom
// endpoint. LocalStack endpoints get static test credentials.
func loadEC2Config(ctx context.Context, region, endpoint string) (aws.Config, error) {
	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	if endpoint != "" {
		lower := strings.ToLower(endpoint)
		if strings.Contains(lower, "localstack") || strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1") {
			options = append(options,
				awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
			)
		}
		options = append(options, awsconfig.WithBaseEndpoint(endpoint))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

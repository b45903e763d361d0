package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

type fakeS3Probe struct {
	err error
}

func (f *fakeS3Probe) ListObjectsV2(_ context.Context, _ *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.ListObjectsV2Output{}, nil
}

type fakeDynamoProbe struct {
	err error
}

func (f *fakeDynamoProbe) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func TestProber_Probe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		listErr    error
		wantExists bool
	}{
		{
			name:       "successful listing means bucket exists",
			listErr:    nil,
			wantExists: true,
		},
		{
			name:       "NoSuchBucket means bucket absent",
			listErr:    &apiError{code: "NoSuchBucket"},
			wantExists: false,
		},
		{
			name:       "NotFound means bucket absent",
			listErr:    &apiError{code: "NotFound"},
			wantExists: false,
		},
		{
			name:       "access denied fails safe toward exists",
			listErr:    &apiError{code: "AccessDenied"},
			wantExists: true,
		},
		{
			name:       "transient network error fails safe toward exists",
			listErr:    errors.New("dial tcp: connection refused"),
			wantExists: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prober := NewProber(
				&fakeS3Probe{err: tt.listErr},
				&fakeDynamoProbe{},
				"tf-state-bucket", "tf-locks",
			)

			state := prober.Probe(context.Background())
			assert.Equal(t, tt.wantExists, state.Exists)
			assert.Equal(t, "tf-state-bucket", state.Bucket)
			assert.Equal(t, "tf-locks", state.Table)
			assert.NotEmpty(t, state.ProbedAt)
		})
	}
}

func TestProber_TablePolarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		tableErr  error
		wantExist bool
	}{
		{
			name:      "table describes cleanly",
			tableErr:  nil,
			wantExist: true,
		},
		{
			name:      "resource not found means absent",
			tableErr:  &ddbtypes.ResourceNotFoundException{},
			wantExist: false,
		},
		{
			name:      "other errors fail safe toward exists",
			tableErr:  errors.New("throttled"),
			wantExist: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prober := NewProber(
				&fakeS3Probe{},
				&fakeDynamoProbe{err: tt.tableErr},
				"tf-state-bucket", "tf-locks",
			)

			state := prober.Probe(context.Background())
			assert.Equal(t, tt.wantExist, state.TableExists)
		})
	}
}

func TestIsNoSuchBucket_WrappedError(t *testing.T) {
	t.Parallel()

	wrapped := errors.New("operation error S3: ListObjectsV2, NoSuchBucket: the bucket does not exist")
	assert.True(t, isNoSuchBucket(wrapped))
	assert.False(t, isNoSuchBucket(errors.New("connection reset")))
}

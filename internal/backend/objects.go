package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gammazero/workerpool"

	"github.com/stackpilot/stackpilot/pkg/logging"
)

// deleteBatchSize is the S3 DeleteObjects limit per request.
const deleteBatchSize = 1000

// emptyWorkers bounds concurrent DeleteObjects calls.
const emptyWorkers = 4

// S3ObjectsAPI is the subset of the S3 client the emptier needs.
type S3ObjectsAPI interface {
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Emptier removes every object version and delete marker from the state
// bucket. The bucket cannot be destroyed while it holds objects, so this runs
// between import and destroy on the teardown path.
type Emptier struct {
	client S3ObjectsAPI
	bucket string
	logger *logging.Logger
}

// NewEmptier creates an emptier for the given bucket.
func NewEmptier(client S3ObjectsAPI, bucket string) *Emptier {
	return &Emptier{
		client: client,
		bucket: bucket,
		logger: logging.New("emptier"),
	}
}

// Empty deletes all object versions and delete markers, returning the number
// of entries removed. An absent bucket is not an error: teardown tolerates
// resources that no longer exist, so it reports zero removals.
func (e *Emptier) Empty(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	var (
		keyMarker       *string
		versionIDMarker *string
		batches         [][]s3types.ObjectIdentifier
	)

	for {
		page, err := e.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          aws.String(e.bucket),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionIDMarker,
		})
		if err != nil {
			if isNoSuchBucket(err) {
				e.logger.Info("Bucket already absent, nothing to empty", "bucket", e.bucket)
				return 0, nil
			}
			return 0, fmt.Errorf("failed to list object versions in %s: %w", e.bucket, err)
		}

		identifiers := make([]s3types.ObjectIdentifier, 0, len(page.Versions)+len(page.DeleteMarkers))
		for _, v := range page.Versions {
			identifiers = append(identifiers, s3types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
		}
		for _, m := range page.DeleteMarkers {
			identifiers = append(identifiers, s3types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
		}
		for start := 0; start < len(identifiers); start += deleteBatchSize {
			end := start + deleteBatchSize
			if end > len(identifiers) {
				end = len(identifiers)
			}
			batches = append(batches, identifiers[start:end])
		}

		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		keyMarker = page.NextKeyMarker
		versionIDMarker = page.NextVersionIdMarker
	}

	if len(batches) == 0 {
		return 0, nil
	}

	return e.deleteBatches(ctx, batches)
}

// deleteBatches issues the DeleteObjects calls through a bounded worker pool.
func (e *Emptier) deleteBatches(ctx context.Context, batches [][]s3types.ObjectIdentifier) (int, error) {
	pool := workerpool.New(emptyWorkers)

	var (
		mu       sync.Mutex
		removed  int
		firstErr error
	)

	for _, batch := range batches {
		batch := batch
		pool.Submit(func() {
			out, err := e.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(e.bucket),
				Delete: &s3types.Delete{
					Objects: batch,
					Quiet:   aws.Bool(true),
				},
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			removed += len(batch) - len(out.Errors)
			if len(out.Errors) > 0 && firstErr == nil {
				first := out.Errors[0]
				firstErr = fmt.Errorf("failed to delete %s: %s",
					aws.ToString(first.Key), aws.ToString(first.Message))
			}
		})
	}
	pool.StopWait()

	if firstErr != nil {
		return removed, fmt.Errorf("failed to empty bucket %s: %w", e.bucket, firstErr)
	}

	e.logger.Info("Bucket emptied", "bucket", e.bucket, "removed", removed)
	return removed, nil
}

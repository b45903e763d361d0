package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/stackpilot/stackpilot/pkg/logging"
)

// ErrLockHeld is returned when another run already holds the lock for the
// same backend identifier.
var ErrLockHeld = errors.New("a pipeline run is already in progress for this backend")

// LockAPI is the subset of the DynamoDB client the run lock needs.
type LockAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// RunLockConfig configures the DynamoDB run lock.
type RunLockConfig struct {
	Table           string
	TTL             time.Duration
	RefreshInterval time.Duration
}

// RunLockProvider serializes pipeline runs over a shared backend using a
// DynamoDB conditional write. A run that cannot take the lock fails fast
// instead of racing a concurrent apply or destroy.
type RunLockProvider struct {
	client  LockAPI
	config  RunLockConfig
	ownerID string
	logger  *logging.Logger
}

// RunLock is a held lock. Release must be called when the run finishes.
type RunLock struct {
	lockID      string
	acquiredAt  time.Time
	provider    *RunLockProvider
	refreshStop chan struct{}
	releaseOnce sync.Once
}

// NewRunLockProvider creates a run lock provider over the given table.
func NewRunLockProvider(client LockAPI, cfg RunLockConfig) (*RunLockProvider, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("lock table name is required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = cfg.TTL / 5
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	return &RunLockProvider{
		client:  client,
		config:  cfg,
		ownerID: fmt.Sprintf("%s-%d-%d", hostname, os.Getpid(), time.Now().Unix()),
		logger:  logging.New("run-lock"),
	}, nil
}

// EnsureTable creates the lock table if it does not exist and waits for it to
// become active.
func (p *RunLockProvider) EnsureTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := p.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(p.config.Table),
	})
	if err == nil {
		return nil
	}

	var notFound *ddbtypes.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe lock table: %w", err)
	}

	_, err = p.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(p.config.Table),
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String("LockID"), KeyType: ddbtypes.KeyTypeHash},
		},
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String("LockID"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create lock table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(p.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(p.config.Table),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("timeout waiting for lock table to become active: %w", err)
	}

	return nil
}

// Acquire takes the lock for the given backend identifier. The conditional
// write guarantees at most one holder; a second run sees ErrLockHeld.
func (p *RunLockProvider) Acquire(ctx context.Context, backendID, operation string) (*RunLock, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	lockID := fmt.Sprintf("backend/%s", backendID)
	ttlExpiry := now.Add(p.config.TTL).Unix()

	_, err := p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.config.Table),
		Item: map[string]ddbtypes.AttributeValue{
			"LockID":    &ddbtypes.AttributeValueMemberS{Value: lockID},
			"Owner":     &ddbtypes.AttributeValueMemberS{Value: p.ownerID},
			"Operation": &ddbtypes.AttributeValueMemberS{Value: operation},
			"Created":   &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			"TTL":       &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(ttlExpiry, 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	})
	if err != nil {
		var conditionFailed *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}

	lock := &RunLock{
		lockID:      lockID,
		acquiredAt:  now,
		provider:    p,
		refreshStop: make(chan struct{}),
	}
	go p.refresh(lock)

	p.logger.Info("Run lock acquired", "lock_id", lockID, "operation", operation)
	return lock, nil
}

// refresh extends the lock TTL while the run is in flight.
func (p *RunLockProvider) refresh(lock *RunLock) {
	ticker := time.NewTicker(p.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lock.refreshStop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			ttlExpiry := time.Now().UTC().Add(p.config.TTL).Unix()

			_, err := p.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
				TableName: aws.String(p.config.Table),
				Key: map[string]ddbtypes.AttributeValue{
					"LockID": &ddbtypes.AttributeValueMemberS{Value: lock.lockID},
				},
				UpdateExpression: aws.String("SET #ttl = :ttl"),
				ExpressionAttributeNames: map[string]string{
					"#ttl":   "TTL",
					"#owner": "Owner",
				},
				ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
					":ttl":   &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(ttlExpiry, 10)},
					":owner": &ddbtypes.AttributeValueMemberS{Value: p.ownerID},
				},
				ConditionExpression: aws.String("#owner = :owner"),
			})
			cancel()

			if err != nil {
				// Lock lost or stolen; stop refreshing and let release report it.
				p.logger.Warn("Run lock refresh failed", "lock_id", lock.lockID, "error", err)
				return
			}
		}
	}
}

// ID returns the lock identifier.
func (l *RunLock) ID() string {
	return l.lockID
}

// AcquiredAt returns when the lock was taken.
func (l *RunLock) AcquiredAt() time.Time {
	return l.acquiredAt
}

// Release removes the lock. Only the owning process can release it.
func (l *RunLock) Release(ctx context.Context) error {
	var releaseErr error
	l.releaseOnce.Do(func() {
		close(l.refreshStop)

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		_, err := l.provider.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(l.provider.config.Table),
			Key: map[string]ddbtypes.AttributeValue{
				"LockID": &ddbtypes.AttributeValueMemberS{Value: l.lockID},
			},
			ConditionExpression: aws.String("#owner = :owner"),
			ExpressionAttributeNames: map[string]string{
				"#owner": "Owner",
			},
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":owner": &ddbtypes.AttributeValueMemberS{Value: l.provider.ownerID},
			},
		})
		if err != nil {
			var conditionFailed *ddbtypes.ConditionalCheckFailedException
			if errors.As(err, &conditionFailed) {
				releaseErr = fmt.Errorf("run lock is not owned by this process")
				return
			}
			releaseErr = fmt.Errorf("failed to release run lock: %w", err)
		}
	})
	return releaseErr
}

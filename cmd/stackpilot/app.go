package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-uuid"

	"github.com/stackpilot/stackpilot/internal/backend"
	"github.com/stackpilot/stackpilot/internal/config"
	"github.com/stackpilot/stackpilot/internal/notify"
	"github.com/stackpilot/stackpilot/internal/pipeline"
	"github.com/stackpilot/stackpilot/internal/terraform"
	"github.com/stackpilot/stackpilot/pkg/logging"
)

// app bundles everything a pipeline run needs: AWS clients, the terraform
// driver, the notifier, and the run metadata.
type app struct {
	cfg     *config.Config
	runID   string
	clients *backend.Clients
	driver  *terraform.Driver
	logger  *logging.Logger
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	runID, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run ID: %w", err)
	}

	clients, err := backend.NewClients(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	runner := terraform.NewCLIRunner(
		cfg.Terraform.BinPath,
		cfg.Terraform.WorkDir,
		map[string]string{"AWS_REGION": cfg.AWS.Region},
		time.Duration(cfg.Terraform.TimeoutSec)*time.Second,
	)

	return &app{
		cfg:     cfg,
		runID:   runID,
		clients: clients,
		driver:  terraform.NewDriver(runner, cfg),
		logger:  logging.New("stackpilot").WithRun(runID),
	}, nil
}

func (a *app) runInfo() pipeline.RunInfo {
	return pipeline.RunInfo{
		RunID:      a.runID,
		Workflow:   a.cfg.Run.Workflow,
		Actor:      a.cfg.Run.Actor,
		Repository: a.cfg.Run.Repository,
		Reference:  a.cfg.Run.Reference,
	}
}

func (a *app) prober() *backend.Prober {
	return backend.NewProber(a.clients.S3, a.clients.DynamoDB,
		a.cfg.Backend.Bucket, a.cfg.Backend.LockTable)
}

func backendEmptier(a *app) *backend.Emptier {
	return backend.NewEmptier(a.clients.S3, a.cfg.Backend.Bucket)
}

// acquireRunLock takes the DynamoDB run lock when enabled. The returned
// release function is a no-op when the lock is disabled.
func (a *app) acquireRunLock(ctx context.Context, operation string) (func(), error) {
	if !a.cfg.Backend.RunLockEnabled {
		return func() {}, nil
	}

	provider, err := backend.NewRunLockProvider(a.clients.DynamoDB, backend.RunLockConfig{
		Table: a.cfg.Backend.RunLockTable,
		TTL:   time.Duration(a.cfg.Backend.RunLockTTL) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if err := provider.EnsureTable(ctx); err != nil {
		return nil, err
	}

	lock, err := provider.Acquire(ctx, a.cfg.Backend.Bucket, operation)
	if err != nil {
		return nil, err
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			a.logger.Warn("failed to release run lock", "error", err)
		}
	}, nil
}

// notifier picks the configured delivery. Email when enabled, log otherwise.
func (a *app) notifier(ctx context.Context) notify.Notifier {
	if !a.cfg.Notify.Enabled {
		return notify.NewLogNotifier()
	}
	n, err := notify.NewSESNotifier(ctx, a.cfg.NotifyRegion(), a.cfg.Notify.Sender, a.cfg.Notify.Recipients)
	if err != nil {
		a.logger.Warn("email notifier unavailable, falling back to log", "error", err)
		return notify.NewLogNotifier()
	}
	return n
}

// runPipeline executes the stages, sends the report, and converts the overall
// outcome into the process result. Notifier failures are logged only.
func (a *app) runPipeline(ctx context.Context, stages []pipeline.Stage) error {
	bus := pipeline.NewBus()
	collector := pipeline.NewCollector()
	collector.Attach(bus)

	report := pipeline.NewRunner(a.runInfo(), stages, bus).Run(ctx)
	a.logger.Info("pipeline metrics", collector.Snapshot().LogFields()...)

	if err := a.notifier(ctx).Send(ctx, report); err != nil {
		a.logger.Error("failed to deliver pipeline report", "error", err)
	}

	if report.Overall == pipeline.Failure {
		return fmt.Errorf("pipeline failed: %d of %d stages unsuccessful",
			countUnsuccessful(report), len(report.Results))
	}
	return nil
}

func countUnsuccessful(report *pipeline.Report) int {
	_, failed, _ := report.Counts()
	n := failed
	for _, result := range report.Results {
		if result.Outcome == pipeline.Skipped && result.SkipReason == pipeline.SkipReasonUpstream {
			n++
		}
	}
	return n
}

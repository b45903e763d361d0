package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot/stackpilot/internal/config"
	"github.com/stackpilot/stackpilot/internal/pipeline"
	"github.com/stackpilot/stackpilot/internal/terraform"
	"github.com/stackpilot/stackpilot/pkg/logging"
)

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, _ ...string) (*terraform.RunResult, error) {
	return &terraform.RunResult{}, nil
}

func testApp(t *testing.T) *app {
	t.Helper()
	cfg := config.New()
	cfg.Backend.Bucket = "tf-state"
	cfg.Backend.LockTable = "tf-locks"
	cfg.Terraform.WorkDir = t.TempDir()
	cfg.Pipeline.BuildCommand = "docker build ."
	cfg.Pipeline.DeployCommand = "ssh deploy"

	return &app{
		cfg:    cfg,
		runID:  "run-1",
		driver: terraform.NewDriver(stubRunner{}, cfg),
		logger: logging.New("stackpilot"),
	}
}

func stageNames(stages []pipeline.Stage) []string {
	names := make([]string, 0, len(stages))
	for _, stage := range stages {
		names = append(names, stage.Name)
	}
	return names
}

func TestUpStages_Order(t *testing.T) {
	t.Parallel()

	stages := upStages(testApp(t), false)

	assert.Equal(t, []string{
		"probe-backend",
		"terraform-init",
		"terraform-apply",
		"resolve-endpoint",
		"build",
		"deploy",
	}, stageNames(stages))

	for _, stage := range stages {
		assert.True(t, stage.Required, "stage %s must be required", stage.Name)
	}
}

// The teardown ordering is the contract: backend resources are imported into
// state first, the bucket is emptied next, and only then does the destroy
// run. A reordering here must fail the suite.
func TestDownStages_Order(t *testing.T) {
	t.Parallel()

	stages := downStages(testApp(t), true)

	assert.Equal(t, []string{
		"probe-backend",
		"terraform-init",
		"import-backend",
		"empty-state-bucket",
		"terraform-destroy",
	}, stageNames(stages))

	for _, stage := range stages {
		assert.True(t, stage.Required, "stage %s must be required", stage.Name)
	}
}

func TestDownStages_ConfirmationGateWiring(t *testing.T) {
	t.Parallel()

	stages := downStages(testApp(t), false)

	// The probe is read-only and ungated; everything after it is
	// destructive and must decline to run on a confirmation mismatch.
	require.Nil(t, stages[0].Gate)
	for _, stage := range stages[1:] {
		require.NotNil(t, stage.Gate, "stage %s must be gated", stage.Name)
		run, reason := stage.Gate()
		assert.False(t, run, "stage %s must not run unconfirmed", stage.Name)
		assert.Equal(t, "confirmation mismatch", reason)
	}
}

func TestDownStages_ConfirmedGatesOpen(t *testing.T) {
	t.Parallel()

	stages := downStages(testApp(t), true)

	for _, stage := range stages[1:] {
		run, _ := stage.Gate()
		assert.True(t, run, "stage %s must run when confirmed", stage.Name)
	}
}

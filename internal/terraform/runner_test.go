package terraform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIRunner_CapturesStdout(t *testing.T) {
	t.Parallel()

	runner := NewCLIRunner("/bin/sh", t.TempDir(), nil, time.Minute)
	result, err := runner.Run(context.Background(), "-c", "echo applied")

	require.NoError(t, err)
	assert.Equal(t, "applied\n", result.Stdout)
	assert.Zero(t, result.ExitCode)
}

func TestCLIRunner_NonZeroExit(t *testing.T) {
	t.Parallel()

	runner := NewCLIRunner("/bin/sh", t.TempDir(), nil, time.Minute)
	result, err := runner.Run(context.Background(), "-c", "echo bucket not empty >&2; exit 3")

	require.Error(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, err.Error(), "bucket not empty")
}

func TestCLIRunner_InjectsEnv(t *testing.T) {
	t.Parallel()

	runner := NewCLIRunner("/bin/sh", t.TempDir(), map[string]string{
		"AWS_REGION": "eu-west-1",
	}, time.Minute)
	result, err := runner.Run(context.Background(), "-c", "echo $AWS_REGION $TF_IN_AUTOMATION")

	require.NoError(t, err)
	assert.Equal(t, "eu-west-1 1\n", result.Stdout)
}

func TestCLIRunner_Timeout(t *testing.T) {
	t.Parallel()

	runner := NewCLIRunner("/bin/sh", t.TempDir(), nil, 100*time.Millisecond)
	_, err := runner.Run(context.Background(), "-c", "sleep 5")

	require.Error(t, err)
}

func TestTail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", tail("short", 100))
	long := tail(string(make([]byte, 100)), 10)
	assert.LessOrEqual(t, len(long), 13)
}

package terraform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const outputsJSON = `{
  "public_address": {"sensitive": false, "type": "string", "value": "ec2-3-91-24-7.compute-1.amazonaws.com"},
  "instance_id": {"sensitive": false, "type": "string", "value": "i-0abc123def456"},
  "backend_bucket": {"sensitive": false, "type": "string", "value": "tf-state-bucket"}
}`

func TestDriver_Outputs(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.results["output"] = &RunResult{Stdout: outputsJSON}
	driver := NewDriver(runner, testConfig(t))

	values, err := driver.Outputs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tf-state-bucket", values["backend_bucket"])
	assert.Equal(t, "i-0abc123def456", values["instance_id"])
}

func TestDriver_Output(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.results["output"] = &RunResult{Stdout: outputsJSON}
	driver := NewDriver(runner, testConfig(t))

	value, err := driver.Output(context.Background(), "backend_bucket")
	require.NoError(t, err)
	assert.Equal(t, "tf-state-bucket", value)

	_, err = driver.Output(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDriver_StackOutputs(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.results["output"] = &RunResult{Stdout: outputsJSON}
	driver := NewDriver(runner, testConfig(t))

	outputs, err := driver.StackOutputs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ec2-3-91-24-7.compute-1.amazonaws.com", outputs.PublicAddress)
	assert.Equal(t, "i-0abc123def456", outputs.InstanceID)
}

func TestDriver_StackOutputs_MissingAddress(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.results["output"] = &RunResult{Stdout: `{"instance_id": {"value": "i-1"}}`}
	driver := NewDriver(runner, testConfig(t))

	_, err := driver.StackOutputs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public_address")
}

func TestDriver_Outputs_BadJSON(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.results["output"] = &RunResult{Stdout: "not json"}
	driver := NewDriver(runner, testConfig(t))

	_, err := driver.Outputs(context.Background())
	require.Error(t, err)
}

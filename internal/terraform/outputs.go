package terraform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// outputValue mirrors one entry of `terraform output -json`.
type outputValue struct {
	Value     interface{} `json:"value"`
	Type      interface{} `json:"type"`
	Sensitive bool        `json:"sensitive"`
}

// StackOutputs are the typed outputs the pipeline consumes downstream. The
// public address is the connection target handed to the deploy stage.
type StackOutputs struct {
	PublicAddress string `mapstructure:"public_address"`
	InstanceID    string `mapstructure:"instance_id"`
}

// Outputs reads all terraform outputs as a flat map of values.
func (d *Driver) Outputs(ctx context.Context) (map[string]interface{}, error) {
	result, err := d.runner.Run(ctx, "output", "-json")
	if err != nil {
		return nil, fmt.Errorf("terraform output failed: %w", err)
	}

	var raw map[string]outputValue
	if err := json.Unmarshal([]byte(result.Stdout), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse terraform outputs: %w", err)
	}

	values := make(map[string]interface{}, len(raw))
	for name, out := range raw {
		values[name] = out.Value
	}
	return values, nil
}

// Output reads a single named terraform output.
func (d *Driver) Output(ctx context.Context, name string) (interface{}, error) {
	values, err := d.Outputs(ctx)
	if err != nil {
		return nil, err
	}
	value, ok := values[name]
	if !ok {
		return nil, fmt.Errorf("terraform output %q not found", name)
	}
	return value, nil
}

// StackOutputs decodes the outputs into the typed struct.
func (d *Driver) StackOutputs(ctx context.Context) (*StackOutputs, error) {
	values, err := d.Outputs(ctx)
	if err != nil {
		return nil, err
	}

	var outputs StackOutputs
	if err := mapstructure.Decode(values, &outputs); err != nil {
		return nil, fmt.Errorf("failed to decode terraform outputs: %w", err)
	}
	if outputs.PublicAddress == "" {
		return nil, fmt.Errorf("terraform outputs missing public_address")
	}
	return &outputs, nil
}

//nolint:forbidigo // CLI command needs fmt.Print* for user output
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newProbeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the state backend and print what was found",
		Long: `Checks whether the S3 state bucket and DynamoDB lock table exist and
prints the result as JSON. Read-only; useful for checking what an up or
down run would decide.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd.Context())
		},
	}
	return cmd
}

func runProbe(ctx context.Context) error {
	cfg, err := loadStandardConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	state := a.prober().Probe(ctx)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal probe result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

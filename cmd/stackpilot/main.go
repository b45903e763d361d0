package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/internal/config"
)

var (
	version = "dev"
	commit  = "none"    //nolint:gochecknoglobals // Build-time commit info
	date    = "unknown" //nolint:gochecknoglobals // Build-time date info

	// Global debug flag
	debugMode bool //nolint:gochecknoglobals // CLI global flag
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stackpilot",
		Short: "Idempotent Terraform backend bootstrap and teardown pipelines",
		Long: `Stackpilot runs provisioning and teardown pipelines over a Terraform
configuration with an S3/DynamoDB remote state backend.

It probes whether the backend already exists, bootstraps it on first run,
and on teardown imports the backend resources into state, empties the state
bucket, and destroys everything in one pass.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if debugMode {
				_ = os.Setenv("STACKPILOT_LOG_LEVEL", "debug") // os.Setenv always returns nil
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging")

	rootCmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newProbeCommand(),
		newConfigCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadStandardConfig creates a new config and overlays the environment.
// This is the standard pattern used by every command.
func loadStandardConfig() (*config.Config, error) {
	cfg := config.New()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return cfg, nil
}

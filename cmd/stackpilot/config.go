//nolint:forbidigo // CLI command needs fmt.Print* for user output
package main

import (
	"fmt"
	"os"
	"reflect"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stackpilot configuration",
		Long:  "View and validate the run configuration assembled from defaults and STACKPILOT_* environment variables",
	}

	cmd.AddCommand(
		newConfigShowCommand(),
		newConfigValidateCommand(),
	)

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadStandardConfig()
			if err != nil {
				return err
			}

			switch format {
			case "json":
				out, err := cfg.JSON()
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			case "table":
				return displayConfigTable(cfg)
			default:
				return fmt.Errorf("unknown format: %s. Supported formats: table, json", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json)")

	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long:  "Check that the current configuration carries everything a run needs",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadStandardConfig()
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			fmt.Println("✓ Configuration is valid")

			if _, err := os.Stat(cfg.Terraform.WorkDir); err != nil {
				return fmt.Errorf("terraform working directory %s: %w", cfg.Terraform.WorkDir, err)
			}
			fmt.Printf("✓ Terraform working directory (%s) exists\n", cfg.Terraform.WorkDir)

			return nil
		},
	}

	return cmd
}

func displayConfigTable(cfg *config.Config) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "SETTING\tVALUE") // Ignore error - output formatting
	_, _ = fmt.Fprintln(w, "-------\t-----") // Ignore error - output formatting

	_, _ = fmt.Fprintf(w, "AWS Region\t%s\n", cfg.AWS.Region)
	_, _ = fmt.Fprintf(w, "AWS Endpoint\t%s\n", orDefault(cfg.AWS.Endpoint, "(default)"))
	_, _ = fmt.Fprintf(w, "State Bucket\t%s\n", cfg.Backend.Bucket)
	_, _ = fmt.Fprintf(w, "Lock Table\t%s\n", cfg.Backend.LockTable)
	_, _ = fmt.Fprintf(w, "State Key\t%s\n", cfg.Backend.StateKey)
	_, _ = fmt.Fprintf(w, "Run Lock\t%t (%s)\n", cfg.Backend.RunLockEnabled, cfg.Backend.RunLockTable)
	_, _ = fmt.Fprintf(w, "Terraform Binary\t%s\n", cfg.Terraform.BinPath)
	_, _ = fmt.Fprintf(w, "Terraform Directory\t%s\n", cfg.Terraform.WorkDir)
	_, _ = fmt.Fprintf(w, "Build Command\t%s\n", orDefault(cfg.Pipeline.BuildCommand, "(none)"))
	_, _ = fmt.Fprintf(w, "Deploy Command\t%s\n", orDefault(cfg.Pipeline.DeployCommand, "(none)"))
	_, _ = fmt.Fprintf(w, "Notifications\t%t\n", cfg.Notify.Enabled)

	_ = w.Flush() // Ignore error - output formatting

	fmt.Println("\nEnvironment Variables:")
	printEnvironmentVariables(cfg)

	return nil
}

// printEnvironmentVariables dynamically prints environment variables from struct tags
func printEnvironmentVariables(cfg *config.Config) {
	vars := collectEnvVars(reflect.TypeOf(*cfg))

	maxLen := 0
	for _, v := range vars {
		if len(v.name) > maxLen {
			maxLen = len(v.name)
		}
	}

	for _, v := range vars {
		fmt.Printf("  %-*s - %s\n", maxLen, v.name, v.description)
	}
}

// collectEnvVars recursively collects environment variables from struct tags
func collectEnvVars(t reflect.Type) []struct{ name, description string } {
	var vars []struct{ name, description string }

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if envTag := field.Tag.Get("env"); envTag != "" {
			vars = append(vars, struct{ name, description string }{
				name:        envTag,
				description: field.Tag.Get("desc"),
			})
		}

		if field.Type.Kind() == reflect.Struct {
			vars = append(vars, collectEnvVars(field.Type)...)
		}
	}

	return vars
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/internal/pipeline"
)

func newDownCommand() *cobra.Command {
	var confirm string

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Tear down the stack, including the state backend",
		Long: `Destroys the Terraform-managed stack and the state backend behind it.

The backend bucket and lock table are first imported into state so a backend
created out-of-band (or by a bootstrap run whose state was since lost) is
still destroyed. The state bucket is emptied of all object versions before
the destroy so bucket deletion cannot fail on a non-empty bucket.

Destructive stages only run when --confirm matches the configured
confirmation word; on a mismatch they are skipped and the run reports
success without touching anything.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDown(cmd.Context(), confirm)
		},
	}

	cmd.Flags().StringVar(&confirm, "confirm", "",
		"Confirmation input; must match the configured confirmation word")
	return cmd
}

func runDown(ctx context.Context, confirm string) error {
	cfg, err := loadStandardConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	confirmed := confirm == cfg.Pipeline.ConfirmWord
	if !confirmed {
		a.logger.Warn("confirmation mismatch, destructive stages will be skipped",
			"expected", cfg.Pipeline.ConfirmWord)
	}

	release, err := a.acquireRunLock(ctx, "down")
	if err != nil {
		return fmt.Errorf("cannot start teardown run: %w", err)
	}
	defer release()

	return a.runPipeline(ctx, downStages(a, confirmed))
}

// downStages assembles the teardown pipeline. The ordering is load-bearing:
// the backend resources are imported into state before the bucket is emptied,
// and the bucket is emptied before the destroy so bucket deletion cannot fail
// on remaining objects. Every destructive stage sits behind the confirmation
// gate.
func downStages(a *app, confirmed bool) []pipeline.Stage {
	gate := func() (bool, string) {
		if !confirmed {
			return false, "confirmation mismatch"
		}
		return true, ""
	}

	return []pipeline.Stage{
		{
			Name:     "probe-backend",
			Required: true,
			Run: func(ctx context.Context) error {
				state := a.prober().Probe(ctx)
				a.logger.Info("backend probed",
					"exists", state.Exists,
					"table_exists", state.TableExists)
				return nil
			},
		},
		{
			Name:     "terraform-init",
			Required: true,
			Gate:     gate,
			Run:      a.driver.Init,
		},
		{
			Name:     "import-backend",
			Required: true,
			Gate:     gate,
			Run: func(ctx context.Context) error {
				outcomes := a.driver.ImportBackend(ctx)
				for address, outcome := range outcomes {
					a.logger.Info("backend resource import",
						"address", address,
						"outcome", outcome.String())
				}
				return nil
			},
		},
		{
			Name:     "empty-state-bucket",
			Required: true,
			Gate:     gate,
			Run: func(ctx context.Context) error {
				emptier := backendEmptier(a)
				removed, err := emptier.Empty(ctx)
				if err != nil {
					return err
				}
				a.logger.Info("state bucket emptied", "objects_removed", removed)
				return nil
			},
		},
		{
			Name:     "terraform-destroy",
			Required: true,
			Gate:     gate,
			Run:      a.driver.Destroy,
		},
	}
}

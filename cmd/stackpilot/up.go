//nolint:forbidigo // CLI command needs fmt.Print* for user output
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/internal/backend"
	"github.com/stackpilot/stackpilot/internal/endpoint"
	"github.com/stackpilot/stackpilot/internal/pipeline"
	"github.com/stackpilot/stackpilot/internal/terraform"
)

func newUpCommand() *cobra.Command {
	var skipWait bool
	var planOnly bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Provision the stack, bootstrapping the state backend on first run",
		Long: `Probes whether the S3/DynamoDB state backend exists, creates it when
missing, applies the Terraform configuration, waits for the provisioned
instance to run, and executes the configured build and deploy commands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if planOnly {
				return runPlan(cmd.Context())
			}
			return runUp(cmd.Context(), skipWait)
		},
	}

	cmd.Flags().BoolVar(&skipWait, "skip-endpoint-wait", false,
		"Do not wait for the provisioned instance to reach running state")
	cmd.Flags().BoolVar(&planOnly, "plan", false,
		"Show the terraform plan for this run and exit without applying")
	return cmd
}

// runPlan previews what an up run would change, using the same probe and
// reconciliation decision the apply would.
func runPlan(ctx context.Context) error {
	cfg, err := loadStandardConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	plan := backend.Reconcile(a.prober().Probe(ctx))
	if err := a.driver.Init(ctx); err != nil {
		return err
	}

	out, err := a.driver.Plan(ctx, plan)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func runUp(ctx context.Context, skipWait bool) error {
	cfg, err := loadStandardConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	release, err := a.acquireRunLock(ctx, "up")
	if err != nil {
		return fmt.Errorf("cannot start provisioning run: %w", err)
	}
	defer release()

	return a.runPipeline(ctx, upStages(a, skipWait))
}

// upStages assembles the provisioning pipeline. Stage state is threaded
// through closures: each stage reads what the previous ones produced.
func upStages(a *app, skipWait bool) []pipeline.Stage {
	cfg := a.cfg
	var plan backend.Plan
	var outputs *terraform.StackOutputs

	return []pipeline.Stage{
		{
			Name:     "probe-backend",
			Required: true,
			Run: func(ctx context.Context) error {
				state := a.prober().Probe(ctx)
				plan = backend.Reconcile(state)
				a.logger.Info("backend probed",
					"exists", state.Exists,
					"create_backend", plan.CreateBackend)
				return nil
			},
		},
		{
			Name:     "terraform-init",
			Required: true,
			Run:      a.driver.Init,
		},
		{
			Name:     "terraform-apply",
			Required: true,
			Run: func(ctx context.Context) error {
				return a.driver.Apply(ctx, plan)
			},
		},
		{
			Name:     "resolve-endpoint",
			Required: true,
			Run: func(ctx context.Context) error {
				out, err := a.driver.StackOutputs(ctx)
				if err != nil {
					return err
				}
				outputs = out

				if skipWait || out.InstanceID == "" {
					a.logger.Info("endpoint resolved", "address", out.PublicAddress)
					return nil
				}

				resolver, err := endpoint.NewResolver(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
				if err != nil {
					return err
				}
				ep, err := resolver.WaitReady(ctx, out.InstanceID)
				if err != nil {
					return err
				}
				a.logger.Info("endpoint ready",
					"address", out.PublicAddress,
					"instance_id", ep.InstanceID,
					"state", ep.State)
				return nil
			},
		},
		pipeline.CommandStageEnv("build", cfg.Pipeline.BuildCommand, true, stackEnv(&outputs)),
		pipeline.CommandStageEnv("deploy", cfg.Pipeline.DeployCommand, true, stackEnv(&outputs)),
	}
}

// stackEnv exposes the resolved stack outputs to the build and deploy
// commands. Evaluated at stage run time, after resolve-endpoint has filled
// the outputs.
func stackEnv(outputs **terraform.StackOutputs) func() []string {
	return func() []string {
		out := *outputs
		if out == nil {
			return nil
		}
		return []string{
			"STACK_ADDRESS=" + out.PublicAddress,
			"STACK_INSTANCE_ID=" + out.InstanceID,
		}
	}
}

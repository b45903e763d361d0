package terraform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/stackpilot/stackpilot/internal/backend"
	"github.com/stackpilot/stackpilot/internal/config"
	"github.com/stackpilot/stackpilot/pkg/logging"
)

// ImportOutcome classifies a tolerant import attempt. Import failures are
// non-fatal: the resource is either freshly bound into state, already there,
// or genuinely absent, and the destroy that follows handles all three.
type ImportOutcome int

const (
	// Imported means the resource was bound into state by this call.
	Imported ImportOutcome = iota
	// AlreadyManaged means state already tracked the resource.
	AlreadyManaged
	// NotFound means the remote object does not exist.
	NotFound
	// ImportFailed means the import errored for another reason; teardown
	// continues regardless and terraform destroy reports the truth.
	ImportFailed
)

// String returns the outcome name for logs.
func (o ImportOutcome) String() string {
	switch o {
	case Imported:
		return "imported"
	case AlreadyManaged:
		return "already-managed"
	case NotFound:
		return "not-found"
	default:
		return "failed"
	}
}

// Driver wraps the terraform CLI surface used by the pipeline: init, plan,
// apply (parameterized by the reconciliation plan), destroy, and the
// import-before-destroy step.
type Driver struct {
	runner  Runner
	backend config.BackendConfig
	region  string
	vars    map[string]string
	workDir string
	logger  *logging.Logger
}

// NewDriver creates a driver over the given runner.
func NewDriver(runner Runner, cfg *config.Config) *Driver {
	return &Driver{
		runner:  runner,
		backend: cfg.Backend,
		region:  cfg.AWS.Region,
		vars:    cfg.Terraform.Vars,
		workDir: cfg.Terraform.WorkDir,
		logger:  logging.New("driver"),
	}
}

// Init initializes terraform against the remote backend. The partial backend
// configuration is generated next to the templates so init can run against a
// bucket that may not exist yet (terraform only reads the state object
// lazily).
func (d *Driver) Init(ctx context.Context) error {
	backendFile := filepath.Join(d.workDir, backendConfigFile)
	if err := WriteBackendConfig(backendFile, d.backend, d.region); err != nil {
		return err
	}

	// The var file is auto-loaded by terraform, so a stale one from an
	// earlier run would keep applying removed vars. Rewrite or remove it
	// on every init.
	varFile := filepath.Join(d.workDir, varFileName)
	if len(d.vars) > 0 {
		if err := WriteVarFile(varFile, d.vars); err != nil {
			return err
		}
	} else if err := os.Remove(varFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale var file %s: %w", varFile, err)
	}

	_, err := d.runner.Run(ctx, "init", "-input=false", "-reconfigure",
		"-backend-config="+backendConfigFile)
	if err != nil {
		return fmt.Errorf("terraform init failed: %w", err)
	}
	return nil
}

// Plan previews the changes the apply would make.
func (d *Driver) Plan(ctx context.Context, plan backend.Plan) (string, error) {
	result, err := d.runner.Run(ctx, d.args("plan", plan.CreateBackend)...)
	if err != nil {
		return "", fmt.Errorf("terraform plan failed: %w", err)
	}
	return result.Stdout, nil
}

// Apply applies the configuration with the reconciliation flag. Repeated
// applies with a correctly computed flag are idempotent: a second run with
// create_backend=false against an existing bucket performs no bucket
// mutation.
func (d *Driver) Apply(ctx context.Context, plan backend.Plan) error {
	args := append(d.args("apply", plan.CreateBackend), "-auto-approve")
	if _, err := d.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("terraform apply failed: %w", err)
	}
	d.logger.Info("Apply complete", "create_backend", plan.CreateBackend)
	return nil
}

// Destroy tears down the configuration. The destroy path always forces
// create_backend=true so the plan includes the backend resources for
// deletion. An empty state ("no resources to destroy") exits cleanly and is
// not an error.
func (d *Driver) Destroy(ctx context.Context) error {
	args := append(d.args("destroy", true), "-auto-approve")
	if _, err := d.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("terraform destroy failed: %w", err)
	}
	return nil
}

// Import binds a physically existing external resource to state without
// recreating it. All recognized non-fatal conditions are reported as
// outcomes, never errors.
func (d *Driver) Import(ctx context.Context, address, externalID string) ImportOutcome {
	args := append(d.args("import", true), address, externalID)
	result, err := d.runner.Run(ctx, args...)
	if err == nil {
		d.logger.Info("Resource imported", "address", address, "id", externalID)
		return Imported
	}

	stderr := ""
	if result != nil {
		stderr = result.Stderr
	}
	outcome := classifyImportError(err, stderr)
	d.logger.Warn("Import did not bind resource",
		"address", address,
		"id", externalID,
		"outcome", outcome.String(),
		"error", err)
	return outcome
}

// ImportBackend defensively imports the state bucket and lock table before a
// destroy. Resources created by an earlier run but never tracked in the
// current state would otherwise survive the teardown silently. Failure of
// one import does not stop the other.
func (d *Driver) ImportBackend(ctx context.Context) map[string]ImportOutcome {
	return map[string]ImportOutcome{
		d.backend.BucketAddress: d.Import(ctx, d.backend.BucketAddress, d.backend.Bucket),
		d.backend.TableAddress:  d.Import(ctx, d.backend.TableAddress, d.backend.LockTable),
	}
}

// args assembles the common argument list for a terraform subcommand,
// including the reconciliation flag and any configured extra vars in stable
// order.
func (d *Driver) args(subcommand string, createBackend bool) []string {
	args := []string{subcommand, "-input=false",
		"-var", "create_backend=" + strconv.FormatBool(createBackend)}

	keys := make([]string, 0, len(d.vars))
	for k := range d.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-var", k+"="+d.vars[k])
	}
	return args
}

// classifyImportError maps terraform's import failure text onto outcomes.
func classifyImportError(err error, stderr string) ImportOutcome {
	text := stderr
	if text == "" && err != nil {
		text = err.Error()
	}
	switch {
	case strings.Contains(text, "Resource already managed"):
		return AlreadyManaged
	case strings.Contains(text, "Cannot import non-existent remote object"),
		strings.Contains(text, "does not exist"):
		return NotFound
	default:
		return ImportFailed
	}
}

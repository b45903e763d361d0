// Package pipeline runs the staged provisioning and teardown flows and
// aggregates per-stage outcomes into a single report.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Outcome is the recorded result of one stage.
type Outcome string

const (
	// Success means the stage completed without error.
	Success Outcome = "success"
	// Failure means the stage errored.
	Failure Outcome = "failure"
	// Skipped means the stage did not run.
	Skipped Outcome = "skipped"
)

// Skip reasons. A stage skipped by its own gate is a deliberate no-op and is
// excluded from the overall verdict; a stage skipped because an earlier
// required stage failed counts against it.
const (
	SkipReasonGate     = "gate declined"
	SkipReasonUpstream = "previous required stage failed"
)

// StageResult records one stage outcome. Results are immutable once recorded
// and kept in run order.
type StageResult struct {
	Name       string        `json:"name"`
	Outcome    Outcome       `json:"outcome"`
	Required   bool          `json:"required"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
}

// Stage is one unit of the pipeline with a single outcome.
type Stage struct {
	// Name identifies the stage in the report.
	Name string
	// Required marks stages whose failure fails the whole run.
	Required bool
	// Always runs the stage even after an earlier required stage failed.
	// Used for reporting-adjacent stages that must observe failures.
	Always bool
	// Gate, when set, is consulted before running; returning false skips
	// the stage with the given reason as a deliberate no-op.
	Gate func() (run bool, reason string)
	// Run does the work.
	Run func(ctx context.Context) error
}

// CommandStage wraps an opaque shell command (container build, ssh deploy)
// as a pipeline stage. An empty command produces a gated stage that always
// skips.
func CommandStage(name, command string, required bool) Stage {
	return CommandStageEnv(name, command, required, nil)
}

// CommandStageEnv is CommandStage with extra environment for the command.
// The env func is evaluated when the stage runs, so it can expose values
// produced by earlier stages.
func CommandStageEnv(name, command string, required bool, env func() []string) Stage {
	return Stage{
		Name:     name,
		Required: required,
		Gate: func() (bool, string) {
			if command == "" {
				return false, "no command configured"
			}
			return true, ""
		},
		Run: func(ctx context.Context) error {
			cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
			if env != nil {
				cmd.Env = append(os.Environ(), env()...)
			}
			out, err := cmd.CombinedOutput()
			if err != nil {
				return fmt.Errorf("command %q failed: %w: %s", name, err, tail(string(out), 2048))
			}
			return nil
		},
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

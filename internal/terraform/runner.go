// Package terraform drives the terraform CLI for the provisioning and
// teardown paths: init, plan, apply, destroy, import and output reading.
package terraform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/stackpilot/stackpilot/pkg/logging"
)

// RunResult captures one CLI invocation.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes terraform (or any external) commands. The interface exists
// so the driver can be tested without a terraform binary.
type Runner interface {
	Run(ctx context.Context, args ...string) (*RunResult, error)
}

// CLIRunner runs the terraform binary in a working directory with an
// explicit environment. Credentials and region come from the run
// configuration, not from whatever happens to be in the ambient environment.
type CLIRunner struct {
	binPath string
	workDir string
	env     map[string]string
	timeout time.Duration
	logger  *logging.Logger
}

// NewCLIRunner creates a runner for the given binary and working directory.
func NewCLIRunner(binPath, workDir string, env map[string]string, timeout time.Duration) *CLIRunner {
	if timeout == 0 {
		timeout = time.Hour
	}
	return &CLIRunner{
		binPath: binPath,
		workDir: workDir,
		env:     env,
		timeout: timeout,
		logger:  logging.New("terraform"),
	}
}

// Run executes the binary with the given arguments, blocking until it exits
// or the timeout elapses. A non-zero exit is returned as an error carrying
// the stderr tail.
func (r *CLIRunner) Run(ctx context.Context, args ...string) (*RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binPath, args...)
	cmd.Dir = r.workDir
	cmd.Env = r.buildEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("Running command", "bin", r.binPath, "args", strings.Join(args, " "))
	start := time.Now()
	err := cmd.Run()
	result := &RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		return result, fmt.Errorf("%s %s failed: %w: %s",
			r.binPath, firstArg(args), err, tail(result.Stderr, 2048))
	}

	return result, nil
}

func (r *CLIRunner) buildEnv() []string {
	env := os.Environ()
	env = append(env, "TF_IN_AUTOMATION=1", "TF_INPUT=0")
	for k, v := range r.env {
		env = append(env, k+"="+v)
	}
	return env
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// tail returns the last n bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Runner executes a platform utility and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with a hard deadline. The process is killed when the
// deadline passes or ctx is canceled; stdout gathered up to that point is
// still returned alongside the error.
type ExecRunner struct {
	Timeout time.Duration
}

func NewExecRunner(timeout time.Duration) ExecRunner {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return ExecRunner{Timeout: timeout}
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupported)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, args...)
	cmd.WaitDelay = 500 * time.Millisecond
	out, err := cmd.Output()
	if err != nil {
		if runCtx.Err() != nil {
			return out, fmt.Errorf("%s: %w", name, runCtx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, fmt.Errorf("%s exited with %d: %w", name, exitErr.ExitCode(), err)
		}
		return out, err
	}
	return out, nil
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/fetchguard/fetchguard/pkg/domain"
)

// ShellRunner is the fallback execution capability: it runs a single
// validated command line and yields the captured output streams.
type ShellRunner interface {
	Run(ctx context.Context, command string) (domain.ExecResult, error)
}

// LocalShellRunner executes commands through /bin/sh on the local host.
// The process inherits the context: if the caller abandons the fetch, the
// in-flight child is killed rather than left running.
type LocalShellRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewLocalShellRunner creates a runner with the given per-command timeout.
func NewLocalShellRunner(timeout time.Duration, logger *slog.Logger) *LocalShellRunner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalShellRunner{timeout: timeout, logger: logger}
}

// Run executes the command and captures stdout and stderr. A non-zero exit
// is an error; the captured streams are returned either way so the caller
// can inspect stderr content.
func (r *LocalShellRunner) Run(ctx context.Context, command string) (domain.ExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	//nolint:gosec // The command line is validated by the guard before it reaches this point.
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)

	// A killed shell can leave a grandchild holding the pipe write ends;
	// WaitDelay stops Wait from blocking on them past the deadline.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := domain.ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		r.logger.Warn("shell command failed", "error", err)
		return result, fmt.Errorf("shell exec: %w", err)
	}
	return result, nil
}

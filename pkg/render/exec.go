package render

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/diagrender/pkg/errors"
	"github.com/matzehuels/diagrender/pkg/observability"
)

// Command describes one external process invocation.
type Command struct {
	Name  string   // executable name or path
	Args  []string // arguments, not including Name
	Dir   string   // working directory, empty for the current one
	Stdin []byte   // piped to the process when non-nil
}

// Tool returns the base name of the executable.
func (c Command) Tool() string {
	return filepath.Base(c.Name)
}

// Executor runs external commands. Run blocks until the process exits.
type Executor interface {
	Run(ctx context.Context, c Command) error
}

// waitDelay bounds how long Run waits for output pipes after the process
// was killed.
const waitDelay = 2 * time.Second

// ExecRunner runs commands as child processes.
//
// A missing executable yields TOOL_NOT_FOUND. An expired Timeout yields
// TIMEOUT, a canceled context CANCELED. A non-zero exit yields TOOL_FAILED
// carrying the tail of the process output. Every command is attempted
// exactly once.
type ExecRunner struct {
	// Timeout bounds each invocation. Zero means no limit.
	Timeout time.Duration
	// Logger receives debug output. Nil disables logging.
	Logger *log.Logger
}

// Run implements Executor.
func (e *ExecRunner) Run(ctx context.Context, c Command) error {
	logger := e.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	path, err := exec.LookPath(c.Name)
	if err != nil {
		return errors.Wrap(errors.ErrCodeToolNotFound, err, "%s not found", c.Name)
	}
	// A relative path is resolved against our working directory, not c.Dir.
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	// pdflatex reports errors on stdout, so both streams are kept.
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	logger.Debug("exec", "tool", c.Tool(), "args", c.Args, "dir", c.Dir)
	observability.Tool().OnToolStart(ctx, c.Tool(), c.Args)
	start := time.Now()

	err = cmd.Run()
	elapsed := time.Since(start)
	err = classify(ctx, c, err, out.String(), e.Timeout)

	observability.Tool().OnToolExit(ctx, c.Tool(), elapsed, err)
	if err != nil {
		logger.Debug("exec failed", "tool", c.Tool(), "duration", elapsed, "error", err)
		return err
	}
	logger.Debug("exec done", "tool", c.Tool(), "duration", elapsed)
	return nil
}

func classify(ctx context.Context, c Command, err error, output string, timeout time.Duration) error {
	if err == nil {
		return nil
	}
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "%s timed out after %s", c.Tool(), timeout)
	case context.Canceled:
		return errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "%s canceled", c.Tool())
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		te := &errors.ToolError{Tool: c.Tool(), ExitCode: exitErr.ExitCode(), Stderr: output}
		return errors.Wrap(errors.ErrCodeToolFailed, te, "%s", te.Error())
	}
	return errors.Wrap(errors.ErrCodeToolFailed, err, "start %s", c.Tool())
}

// Package rendertest provides a fake executor for testing render backends
// without the external tools installed.
package rendertest

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/matzehuels/diagrender/pkg/render"
)

// Executor records commands instead of running them.
type Executor struct {
	// Handler, when set, is called for every command after it is recorded.
	// It typically writes the files the real tool would produce.
	Handler func(c render.Command) error

	mu    sync.Mutex
	calls []render.Command
}

// Run implements render.Executor.
func (e *Executor) Run(ctx context.Context, c render.Command) error {
	e.mu.Lock()
	e.calls = append(e.calls, c)
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Handler != nil {
		return e.Handler(c)
	}
	return nil
}

// Calls returns a copy of the recorded commands.
func (e *Executor) Calls() []render.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]render.Command(nil), e.calls...)
}

// Count returns the number of recorded commands.
func (e *Executor) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// WriteFile writes data to name, resolved against the command's directory
// when relative. Handlers use it to fake tool output.
func WriteFile(c render.Command, name string, data []byte) error {
	if !filepath.IsAbs(name) && c.Dir != "" {
		name = filepath.Join(c.Dir, name)
	}
	return os.WriteFile(name, data, 0o644)
}

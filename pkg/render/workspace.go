package render

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/diagrender/pkg/errors"
)

// Workspace is a scoped temporary directory for one render.
type Workspace struct {
	Dir string
}

// NewWorkspace creates a fresh temporary directory. The caller must Close it.
func NewWorkspace(backend string) (*Workspace, error) {
	dir, err := os.MkdirTemp("", "diagrender-"+backend+"-*")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFilesystem, err, "create workspace")
	}
	return &Workspace{Dir: dir}, nil
}

// Path returns the absolute path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// WriteFile writes data to name inside the workspace.
func (w *Workspace) WriteFile(name string, data []byte) error {
	if err := os.WriteFile(w.Path(name), data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "write %s", name)
	}
	return nil
}

// Close removes the workspace and everything in it.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.Dir)
}

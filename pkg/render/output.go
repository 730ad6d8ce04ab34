package render

import (
	"os"

	"github.com/matzehuels/diagrender/pkg/cache"
	"github.com/matzehuels/diagrender/pkg/errors"
)

// Output is the cache destination of a job.
type Output struct {
	store  *cache.Store
	id     cache.Identity
	format string
}

// NewOutput returns the destination for id in store.
func NewOutput(store *cache.Store, id cache.Identity, format string) Output {
	return Output{store: store, id: id, format: format}
}

// Identity returns the content identity of the job.
func (o Output) Identity() cache.Identity { return o.id }

// Path returns the single-image cache path.
func (o Output) Path() string { return o.store.Path(o.id, o.format) }

// Publish moves src to the single-image cache path.
func (o Output) Publish(tool, src string) ([]string, error) {
	dst := o.Path()
	if err := o.publish(tool, src, dst); err != nil {
		return nil, err
	}
	return []string{dst}, nil
}

// PublishSequence moves srcs to identity1, identity2, ... and returns the
// paths in order. The last image is published first, so identity1 exists
// only once the whole sequence does; on failure the images already
// published are removed. Stale numbered entries past the end of srcs are
// removed too.
func (o Output) PublishSequence(tool string, srcs []string) ([]string, error) {
	paths := make([]string, len(srcs))
	for i := len(srcs) - 1; i >= 0; i-- {
		dst := o.store.SequencePath(o.id, i+1, o.format)
		if err := o.publish(tool, srcs[i], dst); err != nil {
			for _, p := range paths[i+1:] {
				_ = os.Remove(p)
			}
			return nil, err
		}
		paths[i] = dst
	}
	for n := len(srcs) + 1; ; n++ {
		p := o.store.SequencePath(o.id, n, o.format)
		if !o.store.Exists(p) || os.Remove(p) != nil {
			break
		}
	}
	return paths, nil
}

func (o Output) publish(tool, src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return errors.Wrap(errors.ErrCodeToolFailed, err, "%s produced no output", tool)
	}
	if err := o.store.Publish(src, dst); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "publish %s", dst)
	}
	return nil
}

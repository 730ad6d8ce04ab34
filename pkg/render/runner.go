package render

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/diagrender/pkg/cache"
	"github.com/matzehuels/diagrender/pkg/config"
	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
	"github.com/matzehuels/diagrender/pkg/observability"
)

// ErrNoBackend is returned by Runner.Render for blocks whose classes select
// no backend. Callers leave such blocks untouched.
var ErrNoBackend = errors.New(errors.ErrCodeUnknownBackend, "no backend for code block")

// Result is the outcome of rendering one block.
type Result struct {
	Backend     string         // backend name
	Identity    cache.Identity // empty for passthrough blocks
	Paths       []string       // cache paths of the images, in order
	Markup      string         // replacement for the code block
	Cached      bool           // all images came from the cache
	Passthrough bool           // the block was emitted without rendering
}

// Runner renders code blocks through their backends with caching.
type Runner struct {
	// Defaults is the lowest metadata layer, typically the [metadata] table of
	// the tool configuration file.
	Defaults document.Metadata
	// Refresh skips the cache check. Rendered images still replace cache files.
	Refresh bool

	registry *Registry
	executor Executor
	logger   *log.Logger
	locks    keyedMutex
}

// NewRunner creates a runner. A nil executor runs commands with ExecRunner and
// a nil logger discards output.
func NewRunner(reg *Registry, x Executor, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if x == nil {
		x = &ExecRunner{Logger: logger}
	}
	return &Runner{registry: reg, executor: x, logger: logger}
}

// Registry returns the backends known to the runner.
func (r *Runner) Registry() *Registry { return r.registry }

// Render renders block using document metadata meta.
//
// A cache hit returns immediately. On a miss the backend renders inside a
// temporary workspace that is removed afterwards, and the produced images are
// moved into the cache folder. External failures are returned as coded errors
// and never retried.
func (r *Runner) Render(ctx context.Context, block *document.CodeBlock, meta document.Metadata) (*Result, error) {
	b, ok := r.registry.Match(block)
	if !ok {
		return nil, ErrNoBackend
	}

	res := config.NewResolver(b.Name(), block, meta, r.Defaults)
	job, err := b.Configure(res, block)
	if err != nil {
		return nil, err
	}
	for _, v := range res.Resolved() {
		r.logger.Debug("resolved", "backend", b.Name(), "key", v.Key, "value", v.Value, "source", v.Source)
	}

	if p, ok := job.(Passthrough); ok {
		if markup, ok := p.Passthrough(); ok {
			r.logger.Debug("passthrough", "backend", b.Name(), "format", block.Format)
			observability.Render().OnPassthrough(ctx, b.Name())
			return &Result{Backend: b.Name(), Markup: markup, Passthrough: true}, nil
		}
	}

	img := job.Image()
	id := cache.NewIdentity(block.Text, job.Material()...)
	store := cache.NewStore(img.Folder)
	if err := store.EnsureFolder(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFilesystem, err, "create image folder %s", img.Folder)
	}
	multi := isMulti(job)

	unlock := r.locks.lock(store.Path(id, img.Format))
	defer unlock()

	result := &Result{Backend: b.Name(), Identity: id}
	if !r.Refresh {
		result.Paths = lookup(store, id, img.Format, multi)
	}

	if len(result.Paths) > 0 {
		result.Cached = true
		r.logger.Debug("cache hit", "backend", b.Name(), "identity", id, "images", len(result.Paths))
		observability.Render().OnCacheHit(ctx, b.Name(), string(id), len(result.Paths))
	} else {
		r.logger.Debug("cache miss", "backend", b.Name(), "identity", id)
		observability.Render().OnCacheMiss(ctx, b.Name(), string(id))

		paths, err := r.render(ctx, b.Name(), job, NewOutput(store, id, img.Format))
		if err != nil {
			return nil, err
		}
		result.Paths = paths
	}

	result.Markup = Markup(b.Name(), img, result.Paths)
	if e, ok := job.(SourceEcho); ok {
		if lang, ok := e.ShowSource(); ok {
			result.Markup = CodeMarkup(lang, block.Text) + "\n\n" + result.Markup
		}
	}
	return result, nil
}

// render runs the prepare, invoke and collect steps in a fresh workspace.
func (r *Runner) render(ctx context.Context, backend string, job Job, out Output) (paths []string, err error) {
	observability.Render().OnRenderStart(ctx, backend, string(out.Identity()))
	start := time.Now()
	defer func() {
		observability.Render().OnRenderComplete(ctx, backend, string(out.Identity()), len(paths), time.Since(start), err)
	}()

	ws, err := NewWorkspace(backend)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			r.logger.Warn("remove workspace", "dir", ws.Dir, "error", cerr)
		}
	}()

	if err := job.Prepare(ws); err != nil {
		return nil, err
	}
	if err := job.Invoke(ctx, ws, r.executor); err != nil {
		return nil, err
	}
	paths, err = job.Collect(ws, out)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New(errors.ErrCodeToolFailed, "%s produced no images", backend)
	}

	r.logger.Info("rendered", "backend", backend, "identity", out.Identity(), "images", len(paths), "duration", time.Since(start).Round(time.Millisecond))
	return paths, nil
}

func isMulti(job Job) bool {
	m, ok := job.(MultiOutput)
	return ok && m.Multi()
}

// lookup returns the cached images of id, or nil on a miss.
func lookup(store *cache.Store, id cache.Identity, format string, multi bool) []string {
	if multi {
		return store.Probe(id, format)
	}
	if p := store.Path(id, format); store.Exists(p) {
		return []string{p}
	}
	return nil
}

// keyedMutex serializes work per key. Entries are dropped once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

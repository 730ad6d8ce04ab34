package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/matzehuels/diagrender/pkg/errors"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

// watchOpts holds the command-line flags for the watch command.
type watchOpts struct {
	runFlags
	output string
}

// watchCommand creates the watch command for re-rendering on change.
func (c *CLI) watchCommand() *cobra.Command {
	var opts watchOpts

	cmd := &cobra.Command{
		Use:     "watch <file>",
		Short:   "Re-render a document whenever it changes",
		Long:    `Watch renders the document once and again after every save. Failing blocks are reported and left unchanged, so the output always reflects the last save. Press Ctrl+C to stop.`,
		Example: `  diagrender watch notes.md -o build/notes.md`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd, args[0], &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (c *CLI) runWatch(cmd *cobra.Command, input string, opts *watchOpts) error {
	if filepath.Clean(input) == filepath.Clean(opts.output) {
		return errors.New(errors.ErrCodeInvalidInput, "output must differ from the watched file")
	}
	s, err := c.newSession(cmd, &opts.runFlags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	renderOnce := func() {
		src, _, err := readInput(input, nil)
		if err != nil {
			printError("%s", errors.UserMessage(err))
			return
		}
		before := c.Stats.Snapshot()
		res, err := c.process(ctx, s, src, true)
		if err != nil {
			printError("%s", errors.UserMessage(err))
			return
		}
		if err := writeOutput(opts.output, res.Output, nil); err != nil {
			printError("%s", errors.UserMessage(err))
			return
		}
		after := c.Stats.Snapshot()
		printSuccess("Rendered %s %s %s (%d rendered, %d cached)", input, iconArrow, opts.output,
			after.Rendered-before.Rendered, after.CacheHits-before.CacheHits)
	}

	renderOnce()
	printInfo("Watching %s", input)
	return watchFile(ctx, input, watchDebounce, renderOnce)
}

// watchFile calls fn after path is written, created or replaced, at most once
// per debounce window. It watches the parent directory so that editors that
// save by renaming a temporary file are noticed. It returns when ctx is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, fn func()) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "resolve %s", path)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "create watcher")
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "watch %s", filepath.Dir(target))
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			printWarning("watch: %v", err)
		case <-timer.C:
			fn()
		}
	}
}

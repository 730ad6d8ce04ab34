package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/diagrender/pkg/errors"
	"github.com/matzehuels/diagrender/pkg/observability"
	"github.com/matzehuels/diagrender/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	runFlags
	output    string // output file, stdout when empty or "-"
	keepGoing bool   // leave failing blocks unchanged instead of aborting
}

// renderCommand creates the render command for processing a markdown document.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render the diagram blocks of a markdown document",
		Long: `Render replaces every diagram code block of a markdown document with an
image reference and writes the result to stdout or --output.

The document is read from stdin when no file (or "-") is given.`,
		Example: `  diagrender render notes.md -o notes.out.md
  diagrender render --to latex -M dot-image-folder=build/img paper.md > paper.pd.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return c.runRender(cmd, input, &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.keepGoing, "keep-going", false, "leave failing blocks unchanged instead of aborting")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, input string, opts *renderOpts) error {
	s, err := c.newSession(cmd, &opts.runFlags)
	if err != nil {
		return err
	}
	src, name, err := readInput(input, cmd.InOrStdin())
	if err != nil {
		return err
	}

	toFile := opts.output != "" && opts.output != "-"
	ctx := cmd.Context()
	var spinner *Spinner
	if toFile {
		spinner = newSpinnerWithContext(ctx, "Rendering "+name+"...")
		observability.SetRenderHooks(spinnerHooks{RenderHooks: c.Stats, spinner: spinner})
		defer observability.SetRenderHooks(c.Stats)
		spinner.Start()
	}

	prog := newProgress(c.Logger)
	res, err := c.process(ctx, s, src, opts.keepGoing || s.cfg.KeepGoing)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	if err := writeOutput(opts.output, res.Output, cmd.OutOrStdout()); err != nil {
		return err
	}

	if toFile {
		printSuccess("Rendered %s", name)
		printFile(opts.output)
		printStats(c.Stats.Snapshot())
	} else {
		prog.done("Rendered " + name)
	}
	return failuresError(res.Failures)
}

// process runs the document pipeline with the session settings.
func (c *CLI) process(ctx context.Context, s *session, src []byte, keepGoing bool) (*pipeline.Result, error) {
	res, err := s.processor(c.Logger).Process(ctx, src, pipeline.Options{
		Format:    s.format,
		KeepGoing: keepGoing,
		Metadata:  s.meta,
	})
	if err != nil {
		return nil, err
	}
	for _, f := range res.Failures {
		printWarning("block %d (line %d): %s", f.Index, f.Line, errors.UserMessage(f.Err))
	}
	return res, nil
}

// failuresError reports blocks skipped with --keep-going so the exit status
// is non-zero even though the document was written.
func failuresError(failures []pipeline.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	code := errors.GetCode(failures[0].Err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return errors.Wrap(code, failures[0].Err, "%d block(s) failed to render", len(failures))
}

// readInput reads path, or stdin when path is empty or "-".
func readInput(path string, stdin io.Reader) ([]byte, string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeFilesystem, err, "read stdin")
		}
		return data, "stdin", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeFilesystem, err, "read %s", path)
	}
	return data, path, nil
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "write %s", path)
	}
	return nil
}

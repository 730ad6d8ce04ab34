package cli

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
	"github.com/matzehuels/diagrender/pkg/render"
)

// blockOpts holds the command-line flags for the block command.
type blockOpts struct {
	runFlags
	lang  string   // block class(es), comma-separated
	attrs []string // block attributes key=value
	json  bool     // print the full result as JSON
}

// blockCommand creates the block command for rendering one code block.
func (c *CLI) blockCommand() *cobra.Command {
	var opts blockOpts

	cmd := &cobra.Command{
		Use:   "block",
		Short: "Render one code block read from stdin and print its markup",
		Example: `  echo 'digraph { a -> b }' | diagrender block --lang dot -a format=svg
  diagrender block --lang plot -a show < figure.py`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBlock(cmd, &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.lang, "lang", "l", "", "block class selecting the backend, e.g. dot or mermaid (required)")
	cmd.Flags().StringArrayVarP(&opts.attrs, "attr", "a", nil, "block attribute key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("lang")
	_ = cmd.RegisterFlagCompletionFunc("lang", completeClasses)

	return cmd
}

func (c *CLI) runBlock(cmd *cobra.Command, opts *blockOpts) error {
	s, err := c.newSession(cmd, &opts.runFlags)
	if err != nil {
		return err
	}
	attrs, err := parseAttributes(opts.attrs)
	if err != nil {
		return err
	}
	text, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "read stdin")
	}

	block := &document.CodeBlock{
		Text:       strings.TrimRight(string(text), "\n"),
		Classes:    strings.Split(opts.lang, ","),
		Attributes: attrs,
		Format:     s.format,
	}
	res, err := s.runner.Render(cmd.Context(), block, s.meta)
	if stderrors.Is(err, render.ErrNoBackend) {
		return errors.New(errors.ErrCodeUnknownBackend, "no backend for %q (see diagrender backends)", opts.lang)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(newRenderResponse(res, ""))
	}
	_, err = fmt.Fprintln(out, res.Markup)
	return err
}

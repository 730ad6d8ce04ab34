package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
	"github.com/matzehuels/diagrender/pkg/render"
)

// Processor renders the diagram blocks of markdown documents.
//
// A Processor holds no per-document state; one instance can process several
// documents concurrently.
type Processor struct {
	Runner *render.Runner
	Logger *log.Logger
}

// NewProcessor creates a processor. A nil logger discards output.
func NewProcessor(runner *render.Runner, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Processor{Runner: runner, Logger: logger}
}

// Process renders every recognised block of src and returns the rewritten
// document. Blocks no backend claims are left untouched.
func (p *Processor) Process(ctx context.Context, src []byte, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{RunID: uuid.NewString()}
	logger := p.Logger.With("run", result.RunID[:8])
	start := time.Now()

	doc, err := document.Parse(src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse document")
	}
	meta := opts.Metadata.Merge(doc.Metadata)
	result.Stats.Blocks = len(doc.Blocks)
	logger.Debug("parsed document", "blocks", len(doc.Blocks), "metadata", len(meta))

	replacements := make(map[int]string)
	for i, b := range doc.Blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.Format = opts.Format

		res, err := p.Runner.Render(ctx, b, meta)
		if stderrors.Is(err, render.ErrNoBackend) {
			continue
		}
		if err != nil {
			line := lineOf(src, b.Start)
			if !opts.KeepGoing {
				return nil, blockError(err, i, line)
			}
			logger.Warn("block failed", "block", i, "line", line, "error", err)
			result.Failures = append(result.Failures, Failure{Index: i, Line: line, Err: err})
			continue
		}

		switch {
		case res.Passthrough:
			result.Stats.Passthrough++
		case res.Cached:
			result.Stats.Cached++
		default:
			result.Stats.Rendered++
		}
		result.Stats.Images += len(res.Paths)
		replacements[i] = res.Markup
	}

	result.Output = doc.Rewrite(replacements)
	result.Stats.Duration = time.Since(start)

	logger.Info("processed document",
		"blocks", result.Stats.Blocks,
		"rendered", result.Stats.Rendered,
		"cached", result.Stats.Cached,
		"failed", len(result.Failures),
		"duration", result.Stats.Duration.Round(time.Millisecond))
	return result, nil
}

// blockError adds the block position to err, keeping its code.
func blockError(err error, index, line int) error {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return errors.Wrap(code, err, "block %d (line %d): %s", index, line, errors.UserMessage(err))
}

func lineOf(src []byte, offset int) int {
	if offset > len(src) {
		offset = len(src)
	}
	return bytes.Count(src[:offset], []byte("\n")) + 1
}

// Package pkg provides the libraries behind diagrender, which replaces diagram
// code blocks in markdown documents with references to rendered images.
//
// # Overview
//
// The pkg directory is organized by stage:
//
//  1. [document] - Markdown parsing: fenced code blocks, attributes, metadata
//  2. [config] - Option resolution and the tool configuration file
//  3. [cache] - Content identities and the image folder store
//  4. [render] - Backends, the runner and external tool execution
//  5. [pipeline] - Whole-document processing
//
// # Architecture
//
// The typical data flow:
//
//	markdown document
//	         ↓
//	    [document] package (find code blocks and metadata)
//	         ↓
//	    [render] package (match backend, resolve options, compute identity)
//	         ↓
//	    [cache] package (hit: reuse image; miss: run the tool and publish)
//	         ↓
//	    markdown with image references
//
// # Quick Start
//
// Render every diagram in a document:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/diagrender/pkg/pipeline"
//	    "github.com/matzehuels/diagrender/pkg/render"
//	    "github.com/matzehuels/diagrender/pkg/render/backends"
//	)
//
//	runner := render.NewRunner(backends.Registry(), nil, nil)
//	res, err := pipeline.NewProcessor(runner, nil).Process(context.Background(), src, pipeline.Options{
//	    Format: "latex",
//	})
//	os.Stdout.Write(res.Output)
//
// Render a single block:
//
//	res, err := runner.Render(ctx, &document.CodeBlock{
//	    Text:    "digraph { a -> b }",
//	    Classes: []string{"dot"},
//	    Format:  "html",
//	}, nil)
//	fmt.Println(res.Markup) // ![](3f9a0c2e4b1d7a65.png){.dot}
//
// # Supporting Packages
//
//   - [errors] - Coded errors shared by the CLI and the HTTP API
//   - [observability] - Render and tool hooks
//   - [buildinfo] - Version information set at build time
package pkg

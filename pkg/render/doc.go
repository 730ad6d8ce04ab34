// Package render turns diagram source blocks into cached image files.
//
// # Overview
//
// A [Backend] knows how to configure one diagram language (graphviz, mermaid,
// PlantUML, TikZ, matplotlib). The [Runner] drives every backend through the
// same sequence:
//
//	configure → short-circuit? → identity → cache check → render → markup
//
// where render itself is:
//
//	prepare input → invoke external tool(s) → collect output → cleanup
//
// Each render runs in a scoped [Workspace] that is removed when the render
// ends, successful or not. Cache hits never create a workspace.
//
// # Caching
//
// The cache is a folder of image files named after a content identity (see
// [cache.NewIdentity]). The identity covers the block text and every option
// that changes the output bytes, as reported by [Job.Material]. An existing
// file is trusted unconditionally.
//
// # External Tools
//
// Backends never start processes themselves. They describe a [Command] and
// hand it to an [Executor]; [ExecRunner] is the production implementation and
// tests substitute a fake.
//
//	reg := render.NewRegistry(dot.New(), mermaid.New(), plot.New())
//	runner := render.NewRunner(reg, &render.ExecRunner{Timeout: time.Minute}, logger)
//	res, err := runner.Render(ctx, block, meta)
//	fmt.Println(res.Markup) // ![caption](out/3fa2b9c1d4e5f607.png){.dot}
//
// [cache.NewIdentity]: github.com/matzehuels/diagrender/pkg/cache.NewIdentity
package render

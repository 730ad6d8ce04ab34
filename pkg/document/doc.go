// Package document holds the host-side data model consumed by the renderer:
// code blocks, document metadata, and a markdown host that discovers fenced
// code blocks and their attributes.
//
// # Code Blocks
//
// A [CodeBlock] carries the source text, the identifier and classes, an
// ordered attribute list and the target format of the document being built.
// Blocks are read-only to the render core.
//
// # Metadata
//
// [Metadata] is the document-wide configuration, typically taken from YAML
// front matter. Values may be strings, booleans or lists of strings; the
// accessors never fail and treat wrongly typed values as absent.
//
// # Markdown
//
// [Parse] splits an optional front matter block from the body, locates every
// fenced code block with goldmark, and records the byte span of each block so
// [Document.Rewrite] can splice rendered markup back into the source:
//
//	doc, err := document.Parse(src)
//	for i, b := range doc.Blocks {
//	    if b.HasClass("dot") {
//	        replacements[i] = "![](diagram.png){.dot}"
//	    }
//	}
//	out := doc.Rewrite(replacements)
package document

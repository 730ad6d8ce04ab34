package document

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Document is a parsed markdown source.
type Document struct {
	// Source is the complete original input, front matter included.
	Source []byte

	// Metadata is the decoded front matter (empty when there is none).
	Metadata Metadata

	// Blocks are the fenced code blocks in source order.
	Blocks []*CodeBlock
}

// Parse reads YAML front matter and fenced code blocks from a markdown source.
func Parse(src []byte) (*Document, error) {
	meta, bodyStart, err := parseFrontMatter(src)
	if err != nil {
		return nil, err
	}

	body := src[bodyStart:]
	root := goldmark.New().Parser().Parse(text.NewReader(body))

	doc := &Document{Source: src, Metadata: meta}
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fc, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if b := fencedBlock(fc, body); b != nil {
			b.Start += bodyStart
			b.End += bodyStart
			doc.Blocks = append(doc.Blocks, b)
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// fencedBlock converts a goldmark fenced block into a CodeBlock with its byte
// span in body. Blocks without an info string are skipped: nothing can select
// a renderer for them.
func fencedBlock(fc *ast.FencedCodeBlock, body []byte) *CodeBlock {
	if fc.Info == nil {
		return nil
	}
	info := string(fc.Info.Segment.Value(body))
	id, classes, attrs := ParseInfo(info)

	start := bytes.LastIndexByte(body[:fc.Info.Segment.Start], '\n') + 1
	contentStart := lineEnd(body, fc.Info.Segment.Stop)

	var buf bytes.Buffer
	lines := fc.Lines()
	contentEnd := contentStart
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(body))
		contentEnd = seg.Stop
	}

	return &CodeBlock{
		Text:       strings.TrimSuffix(buf.String(), "\n"),
		ID:         id,
		Classes:    classes,
		Attributes: attrs,
		Start:      start,
		End:        closingFenceEnd(body, contentEnd),
	}
}

// lineEnd returns the offset just past the newline ending the line containing pos.
func lineEnd(b []byte, pos int) int {
	if pos >= len(b) {
		return len(b)
	}
	i := bytes.IndexByte(b[pos:], '\n')
	if i < 0 {
		return len(b)
	}
	return pos + i + 1
}

// closingFenceEnd returns the end of the closing fence line following pos, or
// pos itself when the block was closed by the end of its container.
func closingFenceEnd(b []byte, pos int) int {
	if pos >= len(b) {
		return len(b)
	}
	end := lineEnd(b, pos)
	line := strings.TrimLeft(string(b[pos:end]), " \t>")
	if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
		return end
	}
	return pos
}

// parseFrontMatter decodes a leading "---" YAML block. It returns the
// metadata and the offset where the markdown body starts.
func parseFrontMatter(src []byte) (Metadata, int, error) {
	meta := Metadata{}
	first := lineEnd(src, 0)
	if strings.TrimRight(string(src[:first]), "\r\n") != "---" {
		return meta, 0, nil
	}

	pos := first
	for pos < len(src) {
		end := lineEnd(src, pos)
		line := strings.TrimRight(string(src[pos:end]), "\r\n")
		if line == "---" || line == "..." {
			if err := yaml.Unmarshal(src[first:pos], &meta); err != nil {
				return nil, 0, fmt.Errorf("parse front matter: %w", err)
			}
			if meta == nil {
				meta = Metadata{}
			}
			return meta, end, nil
		}
		pos = end
	}
	// No closing delimiter: treat the leading rule as ordinary markdown.
	return Metadata{}, 0, nil
}

// Rewrite returns the source with the blocks at the given indexes replaced.
// A replacement keeps the trailing newline of the block it replaces.
func (d *Document) Rewrite(replacements map[int]string) []byte {
	idx := make([]int, 0, len(replacements))
	for i := range replacements {
		if i >= 0 && i < len(d.Blocks) {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)

	var out bytes.Buffer
	pos := 0
	for _, i := range idx {
		b := d.Blocks[i]
		out.Write(d.Source[pos:b.Start])
		repl := strings.TrimRight(replacements[i], "\n")
		out.WriteString(repl)
		if b.End > b.Start && d.Source[b.End-1] == '\n' {
			out.WriteByte('\n')
		}
		pos = b.End
	}
	out.Write(d.Source[pos:])
	return out.Bytes()
}

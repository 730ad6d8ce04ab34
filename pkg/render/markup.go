package render

import (
	"strings"
)

// Markup formats image references for paths:
//
//	![caption](path){.class width=W height=H dpi=D}
//
// Directives appear only when set. Brackets in the caption are escaped.
// Multiple images are joined by newlines.
func Markup(class string, img Image, paths []string) string {
	attrs := "." + class
	for _, d := range []struct{ key, val string }{
		{"width", img.Width},
		{"height", img.Height},
		{"dpi", img.DPI},
	} {
		if d.val != "" {
			attrs += " " + d.key + "=" + d.val
		}
	}

	lines := make([]string, len(paths))
	for i, p := range paths {
		lines[i] = "![" + captionEscaper.Replace(img.Caption) + "](" + destination(p) + "){" + attrs + "}"
	}
	return strings.Join(lines, "\n")
}

var (
	captionEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)
	angleEscaper   = strings.NewReplacer(`<`, `\<`, `>`, `\>`)
)

// destination returns p as a link destination, bracketed when it holds
// spaces, parentheses or angle brackets.
func destination(p string) string {
	if !strings.ContainsAny(p, " ()<>") {
		return p
	}
	return "<" + angleEscaper.Replace(p) + ">"
}

// CodeMarkup formats text as a fenced code block of the given language.
func CodeMarkup(lang, text string) string {
	fence := "```"
	for strings.Contains(text, fence) {
		fence += "`"
	}
	return fence + lang + "\n" + text + "\n" + fence
}

// RawMarkup formats text as a raw block passed through to format unchanged.
func RawMarkup(format, text string) string {
	fence := "```"
	for strings.Contains(text, fence) {
		fence += "`"
	}
	return fence + "{=" + format + "}\n" + text + "\n" + fence
}

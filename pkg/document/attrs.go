package document

import (
	"strings"
	"unicode"
)

// ParseInfo parses a fenced code block info string into an identifier,
// classes and attributes. Both the pandoc brace form and the bare form are
// accepted:
//
//	{.dot #deps format=svg caption="Build graph"}
//	dot {format=svg}
//	dot
func ParseInfo(info string) (id string, classes []string, attrs Attributes) {
	info = strings.TrimSpace(info)
	if info == "" {
		return "", nil, nil
	}

	if !strings.HasPrefix(info, "{") {
		word := info
		rest := ""
		if i := strings.IndexFunc(info, func(r rune) bool { return unicode.IsSpace(r) || r == '{' }); i >= 0 {
			word, rest = info[:i], strings.TrimSpace(info[i:])
		}
		classes = append(classes, strings.TrimPrefix(word, "."))
		if !strings.HasPrefix(rest, "{") {
			return "", classes, nil
		}
		info = rest
	}

	body := strings.TrimPrefix(info, "{")
	if i := strings.LastIndex(body, "}"); i >= 0 {
		body = body[:i]
	}

	for _, tok := range tokenize(body) {
		switch {
		case strings.HasPrefix(tok, "."):
			if c := tok[1:]; c != "" {
				classes = append(classes, c)
			}
		case strings.HasPrefix(tok, "#"):
			id = tok[1:]
		default:
			key, value, _ := strings.Cut(tok, "=")
			if key == "" {
				continue
			}
			attrs = append(attrs, Attribute{Key: key, Value: unquote(value)})
		}
	}
	return id, classes, attrs
}

// tokenize splits an attribute list on whitespace, keeping quoted values intact.
func tokenize(s string) []string {
	var (
		tokens []string
		cur    strings.Builder
		quote  rune
		escape bool
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case escape:
			cur.WriteRune(r)
			escape = false
		case r == '\\' && quote != 0:
			cur.WriteRune(r)
			escape = true
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			cur.WriteRune(r)
			quote = r
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	q := v[0]
	if (q != '"' && q != '\'') || v[len(v)-1] != q {
		return v
	}
	v = v[1 : len(v)-1]
	if !strings.Contains(v, `\`) {
		return v
	}
	var b strings.Builder
	escape := false
	for _, r := range v {
		if !escape && r == '\\' {
			escape = true
			continue
		}
		escape = false
		b.WriteRune(r)
	}
	return b.String()
}

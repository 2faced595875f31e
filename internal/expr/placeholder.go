package expr

import (
	"strings"
	"unicode"
)

// Placeholder is one `{expr}` span of a template. Start and End are byte
// offsets of the braces, End exclusive.
type Placeholder struct {
	Start int
	End   int
	Expr  string
}

// Placeholders splits s into its non-nested `{...}` spans, left to right. A
// span is closed by the first `}` after its `{`; another `{` before that
// restarts the span. Blank spans are not placeholders.
func Placeholders(s string) []Placeholder {
	ps := []Placeholder{}
	open := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			open = i
		case '}':
			if open < 0 {
				continue
			}
			inner := s[open+1 : i]
			if strings.TrimSpace(inner) != "" {
				ps = append(ps, Placeholder{Start: open, End: i + 1, Expr: strings.TrimSpace(inner)})
			}
			open = -1
		}
	}
	return ps
}

func HasPlaceholder(s string) bool {
	return len(Placeholders(s)) > 0
}

// StateNames returns the distinct bare words of an expression in order of
// appearance. It is a superset of the identifiers the expression reads:
// property names, words inside string literals and numbers are included.
func StateNames(src string) []string {
	names := []string{}
	seen := map[string]bool{}
	word := func(r rune) bool {
		return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
	}

	for _, w := range strings.FieldsFunc(src, func(r rune) bool { return !word(r) }) {
		if seen[w] {
			continue
		}
		seen[w] = true
		names = append(names, w)
	}
	return names
}

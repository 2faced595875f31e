package expr

import (
	"fmt"
	"strings"
)

// Evaluate parses, folds and interprets one placeholder expression.
func Evaluate(src string, scope Scope) (any, error) {
	n, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return Eval(Fold(n, scope))
}

// Resolve replaces every placeholder of tmpl with its stringified value,
// keeping the text around them. The first failing placeholder aborts.
func Resolve(tmpl string, scope Scope) (string, error) {
	var b strings.Builder
	last := 0
	for _, p := range Placeholders(tmpl) {
		v, err := Evaluate(p.Expr, scope)
		if err != nil {
			return "", fmt.Errorf("{%s}: %w", p.Expr, err)
		}
		b.WriteString(tmpl[last:p.Start])
		b.WriteString(String(v))
		last = p.End
	}
	b.WriteString(tmpl[last:])
	return b.String(), nil
}

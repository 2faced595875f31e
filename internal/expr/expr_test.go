package expr

import (
	"errors"
	"reflect"
	"testing"
)

type scope map[string]any

func (s scope) Value(name string) (any, bool) {
	v, ok := s[name]
	return v, ok
}

var states = scope{
	"count": float64(5),
	"title": "hello",
	"on":    true,
	"none":  nil,
	"user": map[string]any{
		"name":    "ada",
		"key":     "name",
		"profile": map[string]any{"age": float64(30)},
	},
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		in   string
		want []Placeholder
	}{
		{"plain", []Placeholder{}},
		{"Count: {count}", []Placeholder{{7, 14, "count"}}},
		{"{a}-{ b }", []Placeholder{{0, 3, "a"}, {4, 9, "b"}}},
		{"{ {x} }", []Placeholder{{2, 5, "x"}}},
		{"{}{  }}", []Placeholder{}},
		{"{unclosed", []Placeholder{}},
	}
	for _, tt := range tests {
		if got := Placeholders(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Placeholders(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStateNames(t *testing.T) {
	got := StateNames(`user['profile'].age + count * 2 + user.x`)
	want := []string{"user", "profile", "age", "count", "2", "x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StateNames = %v, want %v", got, want)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		tmpl string
		want string
	}{
		{"Count: {count}", "Count: 5"},
		{"{user['profile']['age']}", "30"},
		{"{user.profile.age}", "30"},
		{"{user[user.key]}", "ada"},
		{"{count + 1} / {count * 2}", "6 / 10"},
		{"{count / 2}", "2.5"},
		{"{title + count}", "hello5"},
		{"{title.length}", "5"},
		{"{count > 3 ? 'big' : 'small'}", "big"},
		{"{!on}", "false"},
		{"{none ?? 'fallback'}", "fallback"},
		{"{none}", "null"},
		{"{user.missing}", ""},
		{"{user}", "[object Object]"},
		{"{typeof count}", "number"},
		{"{count === 5 && title}", "hello"},
		{"{-count}", "-5"},
		{"{0.1 + 0.2}", "0.30000000000000004"},
		{"no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			got, err := Resolve(tt.tmpl, states)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		tmpl string
		want error
	}{
		{"{unknownVar}", ErrUnresolved},
		{"{user.missing.deeper}", ErrNilProperty},
		{"{none.x}", ErrNilProperty},
		{"{alert(1)}", ErrUnsupported},
		{"{count = 2}", ErrUnsupported},
		{"{count +}", ErrSyntax},
	}
	for _, tt := range tests {
		if _, err := Resolve(tt.tmpl, states); !errors.Is(err, tt.want) {
			t.Errorf("Resolve(%q) error = %v, want %v", tt.tmpl, err, tt.want)
		}
	}
}

func TestFoldCollapsesChains(t *testing.T) {
	n, err := Parse("user.profile.age + count")
	if err != nil {
		t.Fatal(err)
	}

	folded := Fold(n, states)
	bin, ok := folded.(*Binary)
	if !ok {
		t.Fatalf("Fold = %T", folded)
	}
	for _, side := range []Node{bin.X, bin.Y} {
		if _, ok := side.(*Literal); !ok {
			t.Errorf("side %s not folded to a literal", side)
		}
	}
	if got := folded.String(); got != "(30 + 5)" {
		t.Errorf("String = %q", got)
	}

	// The parsed tree is left untouched.
	if got := n.String(); got != "(user.profile.age + count)" {
		t.Errorf("original = %q", got)
	}
}

func TestFoldLeavesUnknownChains(t *testing.T) {
	n, _ := Parse("other.a")
	if _, ok := Fold(n, states).(*Member); !ok {
		t.Error("member over an unknown identifier was folded")
	}
}

func TestReferences(t *testing.T) {
	tests := []struct {
		src   string
		paths [][]string
		whole bool
	}{
		{"user.profile.age", [][]string{{"profile", "age"}}, false},
		{"user['name'] + user.key", [][]string{{"name"}, {"key"}}, false},
		{"user", nil, true},
		{"user[count]", nil, true},
		{"other[user.name]", [][]string{{"name"}}, false},
		{"count", nil, false},
	}
	for _, tt := range tests {
		n, err := Parse(tt.src)
		if err != nil {
			t.Fatal(err)
		}
		paths, whole := References(n, "user")
		if !reflect.DeepEqual(paths, tt.paths) || whole != tt.whole {
			t.Errorf("References(%q) = %v, %v; want %v, %v", tt.src, paths, whole, tt.paths, tt.whole)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{Undefined, ""},
		{nil, "null"},
		{float64(3), "3"},
		{-1.5, "-1.5"},
		{1e21, "1e+21"},
		{1e-7, "1e-7"},
		{[]any{1.0, "a", nil}, "1,a,"},
		{map[string]any{}, "[object Object]"},
	}
	for _, tt := range tests {
		if got := String(tt.v); got != tt.want {
			t.Errorf("String(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

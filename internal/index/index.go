package index

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/gnituy18/txbind/internal/dom"
	"github.com/gnituy18/txbind/internal/expr"
	"github.com/gnituy18/txbind/internal/state"
	"golang.org/x/net/html"
)

type Kind string

const (
	KindText      Kind = "TEXT"
	KindAttribute Kind = "ATTRIBUTE"
)

const (
	NoneName = "NONE"
	NoneID   = -1
)

// Binding is one DOM location whose text or attribute value is a template.
//
// A TEXT template is the concatenation of the element's direct text
// children. When there are several of them, Parts holds each one so the
// text around child elements keeps its place when patched.
type Binding struct {
	Location      string   `json:"location"`
	Kind          Kind     `json:"type"`
	Template      string   `json:"value"`
	AttributeName string   `json:"attributeName,omitempty"`
	Parts         []string `json:"parts,omitempty"`
}

type Key struct {
	Location      string
	Kind          Kind
	AttributeName string
}

func (b *Binding) Key() Key {
	return Key{Location: b.Location, Kind: b.Kind, AttributeName: b.AttributeName}
}

// Apply resolves the template of b against scope and writes the result
// into n. Nothing is written when any placeholder fails.
func (b *Binding) Apply(n *html.Node, scope expr.Scope) error {
	if b.Kind == KindAttribute {
		out, err := expr.Resolve(b.Template, scope)
		if err != nil {
			return err
		}
		dom.SetAttr(n, b.AttributeName, out)
		return nil
	}

	if len(b.Parts) < 2 {
		out, err := expr.Resolve(b.Template, scope)
		if err != nil {
			return err
		}
		dom.SetText(n, out)
		return nil
	}

	outs := make([]string, len(b.Parts))
	for i, part := range b.Parts {
		out, err := expr.Resolve(part, scope)
		if err != nil {
			return err
		}
		outs[i] = out
	}
	dom.SetTextRuns(n, outs)
	return nil
}

// Group lists the bindings that read one state. Call is the position of
// the state's declaring call among the page's state(...) calls, which is
// how the browser runtime matches a call to its group.
type Group struct {
	StateID   int        `json:"id"`
	StateName string     `json:"name"`
	Call      int        `json:"call"`
	Bindings  []*Binding `json:"paths"`
}

func (g *Group) add(b *Binding) {
	if !slices.Contains(g.Bindings, b) {
		g.Bindings = append(g.Bindings, b)
	}
}

// Index groups bindings by the state they read. A binding that reads
// several states is shared by their groups; bindings whose placeholders
// name no state are collected in the NONE group.
type Index struct {
	Groups []*Group

	unique []*Binding
	byKey  map[Key]*Binding
}

func New() *Index {
	return &Index{byKey: map[Key]*Binding{}}
}

// Build indexes every element of doc, scripts excluded, in document order.
func Build(doc *html.Node, table *state.Table) *Index {
	ix := New()
	for n := range dom.Elements(doc) {
		loc := ""
		locate := func() string {
			if loc == "" {
				loc = dom.Locate(n)
			}
			return loc
		}

		if runs := dom.TextRuns(n); len(runs) > 0 {
			text := strings.Join(runs, "")
			if expr.HasPlaceholder(text) {
				b := &Binding{Location: locate(), Kind: KindText, Template: text}
				if len(runs) > 1 {
					b.Parts = runs
				}
				ix.register(b, table)
			}
		}
		for _, a := range n.Attr {
			if a.Namespace != "" || !expr.HasPlaceholder(a.Val) {
				continue
			}
			ix.register(&Binding{Location: locate(), Kind: KindAttribute, AttributeName: a.Key, Template: a.Val}, table)
		}
	}
	ix.sort()
	return ix
}

func (ix *Index) register(b *Binding, table *state.Table) {
	for _, p := range expr.Placeholders(b.Template) {
		matched := false
		for _, name := range expr.StateNames(p.Expr) {
			s, ok := table.Lookup(name)
			if !ok {
				continue
			}
			ix.Add(s.ID, s.Name, b)
			ix.Group(s.ID).Call = s.Call
			matched = true
		}
		if !matched {
			ix.Add(NoneID, NoneName, b)
		}
	}
}

// Add files b under a state group. A binding with the key of an already
// indexed one is replaced by the first.
func (ix *Index) Add(id int, name string, b *Binding) *Binding {
	if first, ok := ix.byKey[b.Key()]; ok {
		b = first
	} else {
		ix.byKey[b.Key()] = b
		ix.unique = append(ix.unique, b)
	}

	g := ix.Group(id)
	if g == nil {
		g = &Group{StateID: id, StateName: name, Call: id}
		ix.Groups = append(ix.Groups, g)
	}
	g.add(b)
	return b
}

func (ix *Index) Group(id int) *Group {
	for _, g := range ix.Groups {
		if g.StateID == id {
			return g
		}
	}
	return nil
}

// Unique returns every distinct binding once, in registration order.
func (ix *Index) Unique() []*Binding {
	return ix.unique
}

// sort orders groups by state id with NONE last.
func (ix *Index) sort() {
	order := func(g *Group) int {
		if g.StateID == NoneID {
			return math.MaxInt
		}
		return g.StateID
	}
	slices.SortStableFunc(ix.Groups, func(a, b *Group) int {
		return cmp.Compare(order(a), order(b))
	})
}

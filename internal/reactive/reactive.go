// Package reactive keeps a rendered document in sync with its states after
// the initial render. Every state is reached through a Handle; a Set stores
// the value, re-renders only the bindings that read the mutated path and
// then notifies subscribers.
//
// A Runtime is bound to one document and is not safe for concurrent use.
package reactive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/gnituy18/txbind/internal/dom"
	"github.com/gnituy18/txbind/internal/expr"
	"github.com/gnituy18/txbind/internal/index"
	"github.com/gnituy18/txbind/internal/state"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var (
	ErrUnknownState = errors.New("reactive: unknown state")
	ErrNotObject    = errors.New("reactive: not an object")
	ErrPathNotFound = errors.New("reactive: path not found")
	ErrUpdateDepth  = errors.New("reactive: update depth exceeded")
)

const maxUpdateDepth = 32

type Option func(*options)

type options struct {
	log *zap.Logger
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// Mutation describes one Set. Path is empty when the whole value was
// replaced.
type Mutation struct {
	StateID int
	Name    string
	Path    []string
	Value   any
}

type Runtime struct {
	doc    *html.Node
	states *state.Table
	ix     *index.Index
	log    *zap.Logger

	reads map[readKey]reads

	subs    map[int]func(Mutation)
	nextSub int
	depth   int
}

type readKey struct {
	stateID int
	binding *index.Binding
}

// reads is what one binding's placeholders read from one state.
type reads struct {
	paths [][]string
	whole bool
}

// New attaches a runtime to doc. The runtime works on its own copy of the
// state values.
func New(doc *html.Node, states *state.Table, ix *index.Index, opts ...Option) *Runtime {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	rt := &Runtime{
		doc:    doc,
		states: states.Clone(),
		ix:     ix,
		log:    o.log.Named("reactive"),
		reads:  map[readKey]reads{},
		subs:   map[int]func(Mutation){},
	}
	for _, g := range ix.Groups {
		if g.StateID == index.NoneID {
			continue
		}
		for _, b := range g.Bindings {
			rt.reads[readKey{g.StateID, b}] = parseReads(b.Template, g.StateName)
		}
	}
	return rt
}

func parseReads(tmpl, name string) reads {
	var r reads
	for _, p := range expr.Placeholders(tmpl) {
		n, err := expr.Parse(p.Expr)
		if err != nil {
			r.whole = true
			continue
		}
		paths, whole := expr.References(n, name)
		r.paths = append(r.paths, paths...)
		r.whole = r.whole || whole
	}
	return r
}

// Load attaches a runtime to a document produced by render.Renderer.Render:
// the binding index comes from the leading script and the state values
// from the page's own declarations.
func Load(r io.Reader, opts ...Option) (*Runtime, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("reactive: parse document: %w", err)
	}
	ix, _, err := index.Extract(doc)
	if err != nil {
		return nil, fmt.Errorf("reactive: %w", err)
	}
	table, err := state.Scan(dom.Scripts(doc))
	if err != nil {
		return nil, fmt.Errorf("reactive: %w", err)
	}
	return New(doc, table, ix, opts...), nil
}

func (rt *Runtime) Document() *html.Node { return rt.doc }

func (rt *Runtime) State(name string) (*Handle, error) {
	s, ok := rt.states.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownState, name)
	}
	return &Handle{rt: rt, s: s}, nil
}

// Subscribe registers fn to be called after every mutation has been
// rendered. The returned func removes it.
func (rt *Runtime) Subscribe(fn func(Mutation)) func() {
	id := rt.nextSub
	rt.nextSub++
	rt.subs[id] = fn
	return func() { delete(rt.subs, id) }
}

func (rt *Runtime) set(s *state.State, path []string, v any) error {
	if rt.depth >= maxUpdateDepth {
		return fmt.Errorf("%w: %s", ErrUpdateDepth, s.Name)
	}
	rt.depth++
	defer func() { rt.depth-- }()

	v, err := normalize(v)
	if err != nil {
		return fmt.Errorf("reactive: %s: %w", s.Name, err)
	}
	if err := assign(s, path, v); err != nil {
		return err
	}

	errs := rt.update(s.ID, path)

	m := Mutation{StateID: s.ID, Name: s.Name, Path: slices.Clone(path), Value: state.Clone(v)}
	ids := make([]int, 0, len(rt.subs))
	for id := range rt.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if fn, ok := rt.subs[id]; ok {
			fn(m)
		}
	}
	return errors.Join(errs...)
}

func assign(s *state.State, path []string, v any) error {
	if len(path) == 0 {
		s.Value = v
		return nil
	}

	parent, ok := state.Get(s.Value, path[:len(path)-1])
	if !ok {
		return fmt.Errorf("%w: %s.%v", ErrPathNotFound, s.Name, path)
	}
	key := path[len(path)-1]
	switch o := parent.(type) {
	case map[string]any:
		o[key] = v
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(o) {
			return fmt.Errorf("%w: %s.%v", ErrPathNotFound, s.Name, path)
		}
		o[i] = v
	default:
		return fmt.Errorf("%w: %s.%v", ErrNotObject, s.Name, path[:len(path)-1])
	}
	return nil
}

// normalize turns v into the JSON data model state values are kept in.
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, bool, float64, string:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// update re-renders the bindings of a state that can observe a change at
// path. Failing bindings are skipped and reported together.
func (rt *Runtime) update(id int, path []string) []error {
	g := rt.ix.Group(id)
	if g == nil {
		return nil
	}

	var errs []error
	for _, b := range g.Bindings {
		if !rt.reads[readKey{id, b}].affectedBy(path) {
			continue
		}
		if err := rt.patch(b); err != nil {
			rt.log.Warn("binding update failed",
				zap.String("state", g.StateName),
				zap.String("location", b.Location),
				zap.String("kind", string(b.Kind)),
				zap.String("attribute", b.AttributeName),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errs
}

func (r reads) affectedBy(path []string) bool {
	if len(path) == 0 || r.whole {
		return true
	}
	for _, p := range r.paths {
		n := min(len(p), len(path))
		if slices.Equal(p[:n], path[:n]) {
			return true
		}
	}
	return false
}

func (rt *Runtime) patch(b *index.Binding) error {
	n, err := dom.Find(rt.doc, b.Location)
	if err != nil {
		return err
	}
	if n == nil {
		rt.log.Debug("binding target missing", zap.String("location", b.Location))
		return nil
	}

	if err := b.Apply(n, rt.states); err != nil {
		return fmt.Errorf("reactive: %s: %w", b.Location, err)
	}
	return nil
}

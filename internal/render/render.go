// Package render performs the server side pass over a page: it scans the
// declared states, indexes the bound locations, writes the initial values
// into the document and prefixes it with the binding index script.
package render

import (
	"errors"
	"fmt"

	"github.com/gnituy18/txbind/internal/dom"
	"github.com/gnituy18/txbind/internal/index"
	"github.com/gnituy18/txbind/internal/state"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

type Option func(*options)

type options struct {
	log *zap.Logger
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

type Renderer struct {
	log *zap.Logger
}

func New(opts ...Option) *Renderer {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Renderer{log: o.log.Named("render")}
}

// Context is everything one render pass owns. Nothing in it is shared with
// other passes.
type Context struct {
	Doc    *html.Node
	States *state.Table
	Index  *index.Index

	// Errors holds the per-binding evaluation failures. The bindings they
	// belong to keep their template text.
	Errors []error
}

func (c *Context) Err() error {
	return errors.Join(c.Errors...)
}

// Compile parses src and patches every bound location with its initial
// value. Only an unparsable document or script fails the pass.
func (r *Renderer) Compile(src string) (*Context, error) {
	doc, err := dom.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("render: parse document: %w", err)
	}

	table, err := state.Scan(dom.Scripts(doc))
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	ctx := &Context{
		Doc:    doc,
		States: table,
		Index:  index.Build(doc, table),
	}

	none := map[index.Key]bool{}
	if g := ctx.Index.Group(index.NoneID); g != nil {
		for _, b := range g.Bindings {
			none[b.Key()] = true
		}
	}

	for _, b := range ctx.Index.Unique() {
		if none[b.Key()] && !r.bound(ctx.Index, b) {
			continue
		}
		if err := r.patch(ctx, b); err != nil {
			ctx.Errors = append(ctx.Errors, err)
		}
	}
	return ctx, nil
}

// bound reports whether b belongs to a real state group.
func (r *Renderer) bound(ix *index.Index, b *index.Binding) bool {
	for _, g := range ix.Groups {
		if g.StateID == index.NoneID {
			continue
		}
		for _, gb := range g.Bindings {
			if gb == b {
				return true
			}
		}
	}
	return false
}

func (r *Renderer) patch(ctx *Context, b *index.Binding) error {
	n, err := dom.Find(ctx.Doc, b.Location)
	if err != nil {
		return err
	}
	if n == nil {
		r.log.Debug("binding target missing", zap.String("location", b.Location))
		return nil
	}

	if err := b.Apply(n, ctx.States); err != nil {
		r.log.Warn("binding evaluation failed",
			zap.String("location", b.Location),
			zap.String("kind", string(b.Kind)),
			zap.String("attribute", b.AttributeName),
			zap.Error(err),
		)
		return fmt.Errorf("render: %s: %w", b.Location, err)
	}
	return nil
}

// Render transforms a page into its initial render: the patched document
// led by the binding index script.
func (r *Renderer) Render(src string) (string, error) {
	ctx, err := r.Compile(src)
	if err != nil {
		return "", err
	}

	script, err := index.Script(ctx.Index)
	if err != nil {
		return "", fmt.Errorf("render: encode index: %w", err)
	}
	body, err := dom.Render(ctx.Doc)
	if err != nil {
		return "", fmt.Errorf("render: serialize: %w", err)
	}
	return script + body, nil
}

package state

import (
	"maps"
	"strconv"
)

// State is one `name = state(value)` declaration. Value holds only JSON
// compatible data: nil, bool, float64, string and map[string]any.
//
// Call is the position of the declaring state(...) call among all state
// calls of the page, skipped ones included. It equals ID unless the scanner
// skipped a call before this one.
type State struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Call  int    `json:"call"`
	Value any    `json:"value"`
}

// Table is the ordered set of declared states of one page.
type Table struct {
	states []*State
	byName map[string]*State
}

func NewTable() *Table {
	return &Table{byName: map[string]*State{}}
}

// Add declares a new state. A name that is already declared keeps its
// first declaration and Add reports false.
func (t *Table) Add(name string, value any) (*State, bool) {
	if _, found := t.byName[name]; found {
		return nil, false
	}

	s := &State{ID: len(t.states), Name: name, Call: len(t.states), Value: value}
	t.states = append(t.states, s)
	t.byName[name] = s
	return s, true
}

func (t *Table) Lookup(name string) (*State, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Value reports the current value of the named state.
func (t *Table) Value(name string) (any, bool) {
	s, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return s.Value, true
}

func (t *Table) ByID(id int) (*State, bool) {
	if id < 0 || id >= len(t.states) {
		return nil, false
	}
	return t.states[id], true
}

func (t *Table) Len() int { return len(t.states) }

func (t *Table) States() []*State { return t.states }

func (t *Table) Names() []string {
	names := make([]string, len(t.states))
	for i, s := range t.states {
		names[i] = s.Name
	}
	return names
}

// Clone deep copies the table so a runtime can mutate values without
// touching the render pass that produced them.
func (t *Table) Clone() *Table {
	c := NewTable()
	for _, s := range t.states {
		cs, _ := c.Add(s.Name, Clone(s.Value))
		cs.Call = s.Call
	}
	return c
}

func Clone(v any) any {
	switch o := v.(type) {
	case map[string]any:
		c := maps.Clone(o)
		for k, v := range c {
			c[k] = Clone(v)
		}
		return c
	case []any:
		c := make([]any, len(o))
		for i, v := range o {
			c[i] = Clone(v)
		}
		return c
	}
	return v
}

// Get follows path through nested objects. Array values, which only reach
// a table through a runtime Set, are indexed by decimal segment.
func Get(v any, path []string) (any, bool) {
	for _, key := range path {
		switch o := v.(type) {
		case map[string]any:
			next, ok := o[key]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(o) {
				return nil, false
			}
			v = o[i]
		default:
			return nil, false
		}
	}
	return v, true
}

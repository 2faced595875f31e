package reactive

import (
	"fmt"

	"github.com/gnituy18/txbind/internal/state"
)

// Handle is the only way to read and write a state once the page is live.
type Handle struct {
	rt *Runtime
	s  *state.State
}

func (h *Handle) ID() int      { return h.s.ID }
func (h *Handle) Name() string { return h.s.Name }

// Get returns a copy of the value at path; nested objects cannot be changed
// behind the runtime's back.
func (h *Handle) Get(path ...string) (any, error) {
	v, ok := state.Get(h.s.Value, path)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%v", ErrPathNotFound, h.s.Name, path)
	}
	return state.Clone(v), nil
}

// Set stores v at path, an empty path replacing the whole value, and
// re-renders the affected bindings before returning. Every binding is
// attempted; the failures are joined into the returned error.
func (h *Handle) Set(path []string, v any) error {
	return h.rt.set(h.s, path, v)
}

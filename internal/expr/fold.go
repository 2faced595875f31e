package expr

// Scope supplies state values by name.
type Scope interface {
	Value(name string) (any, bool)
}

// Fold replaces every identifier naming a state in scope with a literal of
// its value, then collapses member chains rooted at such a literal into the
// nested value they address. The input tree is not modified.
func Fold(n Node, scope Scope) Node {
	return members(idents(n, scope, 0))
}

// idents substitutes state identifiers. hops counts the member accesses that
// hold the current node as their object, innermost first.
func idents(n Node, scope Scope, hops int) Node {
	switch n := n.(type) {
	case *Ident:
		if v, ok := scope.Value(n.Name); ok {
			return &Literal{Value: v, Hops: hops, folded: true}
		}
		return n
	case *Member:
		return &Member{
			Object:   idents(n.Object, scope, hops+1),
			Property: idents(n.Property, scope, 0),
			Computed: n.Computed,
		}
	case *Unary:
		return &Unary{Op: n.Op, X: idents(n.X, scope, 0)}
	case *Binary:
		return &Binary{Op: n.Op, X: idents(n.X, scope, 0), Y: idents(n.Y, scope, 0)}
	case *Conditional:
		return &Conditional{
			Test: idents(n.Test, scope, 0),
			Then: idents(n.Then, scope, 0),
			Else: idents(n.Else, scope, 0),
		}
	}
	return n
}

// members folds bottom-up. A member access over a folded literal with a
// literal key becomes the looked up value while the literal still has hops
// left to consume; a failing lookup leaves the access for Eval to report.
func members(n Node) Node {
	switch n := n.(type) {
	case *Member:
		obj := members(n.Object)
		prop := members(n.Property)

		base, ok := obj.(*Literal)
		key, static := prop.(*Literal)
		if ok && static && base.folded && base.Hops > 0 {
			if v, err := property(base.Value, String(key.Value), n); err == nil {
				return &Literal{Value: v, Hops: base.Hops - 1, folded: true}
			}
		}
		return &Member{Object: obj, Property: prop, Computed: n.Computed}
	case *Unary:
		return &Unary{Op: n.Op, X: members(n.X)}
	case *Binary:
		return &Binary{Op: n.Op, X: members(n.X), Y: members(n.Y)}
	case *Conditional:
		return &Conditional{Test: members(n.Test), Then: members(n.Then), Else: members(n.Else)}
	}
	return n
}

// References lists the static member paths through which n reads the named
// state. whole is set when the state is read directly or through a key that
// is only known at evaluation time.
func References(n Node, name string) (paths [][]string, whole bool) {
	var walk func(n Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *Ident:
			if n.Name == name {
				whole = true
			}
		case *Member:
			base, keys, props := chain(n)
			if base != nil && base.Name == name {
				if keys == nil {
					whole = true
				} else {
					paths = append(paths, keys)
				}
			} else if base != nil {
				walk(base)
			}
			for _, p := range props {
				walk(p)
			}
		case *Unary:
			walk(n.X)
		case *Binary:
			walk(n.X)
			walk(n.Y)
		case *Conditional:
			walk(n.Test)
			walk(n.Then)
			walk(n.Else)
		}
	}
	walk(n)
	return paths, whole
}

// chain unwinds a member chain. base is nil when the chain does not start at
// an identifier, in which case the root expression is returned among props.
// keys is nil when any key is not a literal.
func chain(m *Member) (base *Ident, keys []string, props []Node) {
	static := true
	var n Node = m
	for {
		mem, ok := n.(*Member)
		if !ok {
			break
		}
		props = append(props, mem.Property)
		if l, ok := mem.Property.(*Literal); ok && !l.folded {
			keys = append([]string{String(l.Value)}, keys...)
		} else {
			static = false
		}
		n = mem.Object
	}

	base, _ = n.(*Ident)
	if base == nil {
		props = append(props, n)
	}
	if !static {
		keys = nil
	}
	return base, keys, props
}

// Package expr evaluates the JavaScript-flavoured expressions found inside
// `{...}` placeholders.
//
// An expression is parsed with goja's parser and converted into a small tree
// that only admits literals, identifiers, property access, unary, binary,
// logical and conditional operators. Identifiers naming a state are folded
// into literals, member chains hanging off them are collapsed to the nested
// value, and what remains is interpreted without side effects. Nothing derived
// from a template is ever executed as code.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

var (
	ErrSyntax      = errors.New("expr: syntax error")
	ErrUnsupported = errors.New("expr: unsupported expression")
)

type Node interface {
	String() string
	node()
}

// Literal is a constant value. Hops is set on literals produced by folding a
// state identifier: the number of member accesses directly above it.
type Literal struct {
	Value  any
	Hops   int
	folded bool
}

type Ident struct {
	Name string
}

// Member is `Object.Property` or `Object[Property]`. Dot access stores the
// property name as a string Literal.
type Member struct {
	Object   Node
	Property Node
	Computed bool
}

type Unary struct {
	Op string
	X  Node
}

type Binary struct {
	Op   string
	X, Y Node
}

type Conditional struct {
	Test, Then, Else Node
}

func (*Literal) node()     {}
func (*Ident) node()       {}
func (*Member) node()      {}
func (*Unary) node()       {}
func (*Binary) node()      {}
func (*Conditional) node() {}

func (n *Literal) String() string {
	switch v := n.Value.(type) {
	case string:
		return strconv.Quote(v)
	case undefined:
		return "undefined"
	case nil:
		return "null"
	case map[string]any, []any:
		return "(" + JSON(v) + ")"
	}
	return String(n.Value)
}

func (n *Ident) String() string { return n.Name }

func (n *Member) String() string {
	if !n.Computed {
		if l, ok := n.Property.(*Literal); ok {
			if s, ok := l.Value.(string); ok {
				return n.Object.String() + "." + s
			}
		}
	}
	return n.Object.String() + "[" + n.Property.String() + "]"
}

func (n *Unary) String() string {
	if n.Op == "typeof" {
		return "typeof " + n.X.String()
	}
	return n.Op + n.X.String()
}

func (n *Binary) String() string {
	return "(" + n.X.String() + " " + n.Op + " " + n.Y.String() + ")"
}

func (n *Conditional) String() string {
	return "(" + n.Test.String() + " ? " + n.Then.String() + " : " + n.Else.String() + ")"
}

// Parse parses a single placeholder expression.
func Parse(src string) (Node, error) {
	prog, err := parser.ParseFile(nil, "", src, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, src, err)
	}
	if len(prog.Body) != 1 {
		return nil, fmt.Errorf("%w: %q: want a single expression", ErrSyntax, src)
	}

	st, ok := prog.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return nil, fmt.Errorf("%w: %q: not an expression", ErrUnsupported, src)
	}
	return convert(st.Expression)
}

func convert(e ast.Expression) (Node, error) {
	switch e := e.(type) {
	case *ast.StringLiteral:
		return &Literal{Value: string(e.Value)}, nil
	case *ast.NumberLiteral:
		switch v := e.Value.(type) {
		case int64:
			return &Literal{Value: float64(v)}, nil
		case float64:
			return &Literal{Value: v}, nil
		}
		return nil, fmt.Errorf("%w: number %s", ErrUnsupported, e.Literal)
	case *ast.BooleanLiteral:
		return &Literal{Value: e.Value}, nil
	case *ast.NullLiteral:
		return &Literal{Value: nil}, nil

	case *ast.Identifier:
		if e.Name == "undefined" {
			return &Literal{Value: Undefined}, nil
		}
		return &Ident{Name: string(e.Name)}, nil

	case *ast.DotExpression:
		obj, err := convert(e.Left)
		if err != nil {
			return nil, err
		}
		return &Member{Object: obj, Property: &Literal{Value: string(e.Identifier.Name)}}, nil

	case *ast.BracketExpression:
		obj, err := convert(e.Left)
		if err != nil {
			return nil, err
		}
		prop, err := convert(e.Member)
		if err != nil {
			return nil, err
		}
		return &Member{Object: obj, Property: prop, Computed: true}, nil

	case *ast.UnaryExpression:
		op := e.Operator.String()
		switch op {
		case "!", "-", "+", "typeof":
		default:
			return nil, fmt.Errorf("%w: operator %s", ErrUnsupported, op)
		}
		if e.Postfix {
			return nil, fmt.Errorf("%w: postfix %s", ErrUnsupported, op)
		}
		x, err := convert(e.Operand)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, X: x}, nil

	case *ast.BinaryExpression:
		op := e.Operator.String()
		if !binaryOps[op] {
			return nil, fmt.Errorf("%w: operator %s", ErrUnsupported, op)
		}
		x, err := convert(e.Left)
		if err != nil {
			return nil, err
		}
		y, err := convert(e.Right)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, X: x, Y: y}, nil

	case *ast.ConditionalExpression:
		test, err := convert(e.Test)
		if err != nil {
			return nil, err
		}
		then, err := convert(e.Consequent)
		if err != nil {
			return nil, err
		}
		els, err := convert(e.Alternate)
		if err != nil {
			return nil, err
		}
		return &Conditional{Test: test, Then: then, Else: els}, nil
	}

	name := strings.TrimPrefix(fmt.Sprintf("%T", e), "*ast.")
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
}

var binaryOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"==": true, "!=": true, "===": true, "!==": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"&&": true, "||": true, "??": true,
}

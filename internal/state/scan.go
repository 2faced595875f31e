package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

var ErrScriptSyntax = errors.New("state: script syntax")

const callee = "state"

// Scan parses the page's script source and collects every
// `name = state(value)` declaration whose argument is a literal or an object
// literal. Declarations with any other argument shape are skipped, but
// every state(...) call is still counted so that State.Call matches the
// position the browser sees when it runs the script.
func Scan(src string) (*Table, error) {
	prog, err := parser.ParseFile(nil, "", src, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptSyntax, err)
	}

	s := &scanner{table: NewTable()}
	s.stmts(prog.Body)
	return s.table, nil
}

type scanner struct {
	table *Table
	calls int
}

func (s *scanner) stmts(list []ast.Statement) {
	for _, st := range list {
		s.stmt(st)
	}
}

func (s *scanner) stmt(st ast.Statement) {
	switch st := st.(type) {
	case *ast.VariableStatement:
		s.bindings(st.List)
	case *ast.LexicalDeclaration:
		s.bindings(st.List)
	case *ast.ExpressionStatement:
		s.expr(st.Expression)
	case *ast.BlockStatement:
		s.block(st)
	case *ast.FunctionDeclaration:
		s.function(st.Function)
	case *ast.ClassDeclaration:
		s.class(st.Class)
	case *ast.IfStatement:
		s.expr(st.Test)
		s.stmt(st.Consequent)
		s.stmt(st.Alternate)
	case *ast.ForStatement:
		switch init := st.Initializer.(type) {
		case *ast.ForLoopInitializerVarDeclList:
			s.bindings(init.List)
		case *ast.ForLoopInitializerLexicalDecl:
			s.bindings(init.LexicalDeclaration.List)
		case *ast.ForLoopInitializerExpression:
			s.expr(init.Expression)
		}
		s.expr(st.Test)
		s.stmt(st.Body)
		s.expr(st.Update)
	case *ast.ForInStatement:
		s.into(st.Into)
		s.expr(st.Source)
		s.stmt(st.Body)
	case *ast.ForOfStatement:
		s.into(st.Into)
		s.expr(st.Source)
		s.stmt(st.Body)
	case *ast.WhileStatement:
		s.expr(st.Test)
		s.stmt(st.Body)
	case *ast.DoWhileStatement:
		s.stmt(st.Body)
		s.expr(st.Test)
	case *ast.WithStatement:
		s.expr(st.Object)
		s.stmt(st.Body)
	case *ast.LabelledStatement:
		s.stmt(st.Statement)
	case *ast.TryStatement:
		s.block(st.Body)
		if st.Catch != nil {
			s.target(st.Catch.Parameter)
			s.block(st.Catch.Body)
		}
		s.block(st.Finally)
	case *ast.SwitchStatement:
		s.expr(st.Discriminant)
		for _, c := range st.Body {
			s.expr(c.Test)
			s.stmts(c.Consequent)
		}
	case *ast.ReturnStatement:
		s.expr(st.Argument)
	case *ast.ThrowStatement:
		s.expr(st.Argument)
	}
}

func (s *scanner) block(b *ast.BlockStatement) {
	if b != nil {
		s.stmts(b.List)
	}
}

func (s *scanner) into(into ast.ForInto) {
	switch into := into.(type) {
	case *ast.ForIntoVar:
		s.bindings([]*ast.Binding{into.Binding})
	case *ast.ForDeclaration:
		s.target(into.Target)
	case *ast.ForIntoExpression:
		s.expr(into.Expression)
	}
}

func (s *scanner) function(f *ast.FunctionLiteral) {
	if f == nil {
		return
	}
	s.params(f.ParameterList)
	s.block(f.Body)
}

func (s *scanner) params(p *ast.ParameterList) {
	if p == nil {
		return
	}
	s.bindings(p.List)
	s.expr(p.Rest)
}

func (s *scanner) class(c *ast.ClassLiteral) {
	if c == nil {
		return
	}
	s.expr(c.SuperClass)
	for _, el := range c.Body {
		switch el := el.(type) {
		case *ast.MethodDefinition:
			if el.Computed {
				s.expr(el.Key)
			}
			s.function(el.Body)
		case *ast.FieldDefinition:
			if el.Computed {
				s.expr(el.Key)
			}
			s.expr(el.Initializer)
		case *ast.ClassStaticBlock:
			s.block(el.Block)
		}
	}
}

// target walks the default values of a destructuring pattern.
func (s *scanner) target(t ast.BindingTarget) {
	switch t := t.(type) {
	case *ast.ArrayPattern:
		s.exprs(t.Elements)
		s.expr(t.Rest)
	case *ast.ObjectPattern:
		s.properties(t.Properties)
		s.expr(t.Rest)
	}
}

func (s *scanner) exprs(list []ast.Expression) {
	for _, e := range list {
		s.expr(e)
	}
}

func (s *scanner) properties(list []ast.Property) {
	for _, p := range list {
		switch p := p.(type) {
		case *ast.PropertyKeyed:
			if p.Computed {
				s.expr(p.Key)
			}
			s.expr(p.Value)
		case *ast.PropertyShort:
			s.expr(p.Initializer)
		case *ast.SpreadElement:
			s.expr(p.Expression)
		}
	}
}

// expr visits every sub-expression of e in evaluation order, so that
// declarations nested in function bodies are found and state calls are
// counted in the order they run.
func (s *scanner) expr(e ast.Expression) {
	switch e := e.(type) {
	case *ast.FunctionLiteral:
		s.function(e)
	case *ast.ArrowFunctionLiteral:
		s.params(e.ParameterList)
		switch body := e.Body.(type) {
		case *ast.BlockStatement:
			s.block(body)
		case *ast.ExpressionBody:
			s.expr(body.Expression)
		}
	case *ast.ClassLiteral:
		s.class(e)
	case *ast.CallExpression:
		s.call(e)
	case *ast.NewExpression:
		s.expr(e.Callee)
		s.exprs(e.ArgumentList)
	case *ast.AssignExpression:
		s.expr(e.Left)
		s.expr(e.Right)
	case *ast.SequenceExpression:
		s.exprs(e.Sequence)
	case *ast.ConditionalExpression:
		s.expr(e.Test)
		s.expr(e.Consequent)
		s.expr(e.Alternate)
	case *ast.BinaryExpression:
		s.expr(e.Left)
		s.expr(e.Right)
	case *ast.UnaryExpression:
		s.expr(e.Operand)
	case *ast.AwaitExpression:
		s.expr(e.Argument)
	case *ast.YieldExpression:
		s.expr(e.Argument)
	case *ast.DotExpression:
		s.expr(e.Left)
	case *ast.PrivateDotExpression:
		s.expr(e.Left)
	case *ast.BracketExpression:
		s.expr(e.Left)
		s.expr(e.Member)
	case *ast.OptionalChain:
		s.expr(e.Expression)
	case *ast.Optional:
		s.expr(e.Expression)
	case *ast.SpreadElement:
		s.expr(e.Expression)
	case *ast.ArrayLiteral:
		s.exprs(e.Value)
	case *ast.ObjectLiteral:
		s.properties(e.Value)
	case *ast.TemplateLiteral:
		s.expr(e.Tag)
		s.exprs(e.Expressions)
	case *ast.ArrayPattern:
		s.target(e)
	case *ast.ObjectPattern:
		s.target(e)
	}
}

// call visits c and reports its position among the script's state calls,
// or -1 when c is some other call. Arguments run before the call itself.
func (s *scanner) call(c *ast.CallExpression) int {
	s.expr(c.Callee)
	s.exprs(c.ArgumentList)
	if fn, ok := c.Callee.(*ast.Identifier); !ok || string(fn.Name) != callee {
		return -1
	}
	n := s.calls
	s.calls++
	return n
}

func (s *scanner) bindings(list []*ast.Binding) {
	for _, b := range list {
		s.target(b.Target)
		c, ok := b.Initializer.(*ast.CallExpression)
		if !ok {
			s.expr(b.Initializer)
			continue
		}
		if pos := s.call(c); pos >= 0 {
			s.declare(b, c, pos)
		}
	}
}

func (s *scanner) declare(b *ast.Binding, call *ast.CallExpression, pos int) {
	id, ok := b.Target.(*ast.Identifier)
	if !ok || len(call.ArgumentList) == 0 {
		return
	}

	var v any
	switch arg := call.ArgumentList[0].(type) {
	case *ast.ObjectLiteral:
		v = object(arg)
	default:
		if v, ok = literal(arg); !ok {
			return
		}
	}
	if st, ok := s.table.Add(string(id.Name), v); ok {
		st.Call = pos
	}
}

func literal(e ast.Expression) (any, bool) {
	switch e := e.(type) {
	case *ast.StringLiteral:
		return string(e.Value), true
	case *ast.NumberLiteral:
		return number(e.Value), true
	case *ast.BooleanLiteral:
		return e.Value, true
	case *ast.NullLiteral:
		return nil, true
	case *ast.UnaryExpression:
		n, ok := e.Operand.(*ast.NumberLiteral)
		if !ok || e.Postfix || e.Operator.String() != "-" {
			return nil, false
		}
		return -number(n.Value), true
	}
	return nil, false
}

func number(v any) float64 {
	switch v := v.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// object copies the literal-valued properties of o, recursing into nested
// object literals. Anything else is dropped.
func object(o *ast.ObjectLiteral) map[string]any {
	m := map[string]any{}
	for _, p := range o.Value {
		kv, ok := p.(*ast.PropertyKeyed)
		if !ok || kv.Computed {
			continue
		}

		var key string
		switch k := kv.Key.(type) {
		case *ast.StringLiteral:
			key = string(k.Value)
		case *ast.Identifier:
			key = string(k.Name)
		case *ast.NumberLiteral:
			key = strings.TrimSpace(k.Literal)
		default:
			continue
		}

		if nested, ok := kv.Value.(*ast.ObjectLiteral); ok {
			m[key] = object(nested)
			continue
		}
		if v, ok := literal(kv.Value); ok {
			m[key] = v
		}
	}
	return m
}

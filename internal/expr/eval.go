package expr

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

var (
	ErrUnresolved  = errors.New("expr: unresolved identifier")
	ErrNilProperty = errors.New("expr: property of null or undefined")
)

type undefined struct{}

// Undefined is the JavaScript undefined value. JSON null is a Go nil.
var Undefined any = undefined{}

// Eval interprets a folded tree. Identifiers left in the tree do not name a
// state and fail with ErrUnresolved.
func Eval(n Node) (any, error) {
	switch n := n.(type) {
	case *Literal:
		return n.Value, nil

	case *Ident:
		return nil, fmt.Errorf("%w: %s", ErrUnresolved, n.Name)

	case *Member:
		obj, err := Eval(n.Object)
		if err != nil {
			return nil, err
		}
		prop, err := Eval(n.Property)
		if err != nil {
			return nil, err
		}
		return property(obj, String(prop), n)

	case *Unary:
		x, err := Eval(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "!":
			return !truthy(x), nil
		case "-":
			return -number(x), nil
		case "+":
			return number(x), nil
		case "typeof":
			return typeOf(x), nil
		}

	case *Binary:
		x, err := Eval(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "&&":
			if !truthy(x) {
				return x, nil
			}
			return Eval(n.Y)
		case "||":
			if truthy(x) {
				return x, nil
			}
			return Eval(n.Y)
		case "??":
			if x != nil && x != Undefined {
				return x, nil
			}
			return Eval(n.Y)
		}
		y, err := Eval(n.Y)
		if err != nil {
			return nil, err
		}
		return binary(n.Op, x, y), nil

	case *Conditional:
		test, err := Eval(n.Test)
		if err != nil {
			return nil, err
		}
		if truthy(test) {
			return Eval(n.Then)
		}
		return Eval(n.Else)
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupported, n)
}

func property(obj any, key string, at Node) (any, error) {
	switch o := obj.(type) {
	case nil, undefined:
		return nil, fmt.Errorf("%w: reading %q in %s", ErrNilProperty, key, at)
	case map[string]any:
		if v, ok := o[key]; ok {
			return v, nil
		}
	case []any:
		if key == "length" {
			return float64(len(o)), nil
		}
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(o) {
			return o[i], nil
		}
	case string:
		if key == "length" {
			return float64(len([]rune(o))), nil
		}
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len([]rune(o)) {
			return string([]rune(o)[i]), nil
		}
	}
	return Undefined, nil
}

func binary(op string, x, y any) any {
	switch op {
	case "+":
		px, py := primitive(x), primitive(y)
		_, xs := px.(string)
		_, ys := py.(string)
		if xs || ys {
			return String(px) + String(py)
		}
		return number(px) + number(py)
	case "-":
		return number(x) - number(y)
	case "*":
		return number(x) * number(y)
	case "/":
		return number(x) / number(y)
	case "%":
		return math.Mod(number(x), number(y))
	case "===":
		return strictEqual(x, y)
	case "!==":
		return !strictEqual(x, y)
	case "==":
		return looseEqual(x, y)
	case "!=":
		return !looseEqual(x, y)
	case "<", "<=", ">", ">=":
		return compare(op, primitive(x), primitive(y))
	}
	return Undefined
}

func compare(op string, x, y any) bool {
	xs, xok := x.(string)
	ys, yok := y.(string)
	if xok && yok {
		switch op {
		case "<":
			return xs < ys
		case "<=":
			return xs <= ys
		case ">":
			return xs > ys
		default:
			return xs >= ys
		}
	}

	a, b := number(x), number(y)
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	default:
		return a >= b
	}
}

func strictEqual(x, y any) bool {
	switch a := x.(type) {
	case map[string]any, []any:
		return sameObject(x, y)
	case float64:
		b, ok := y.(float64)
		return ok && a == b
	}
	return x == y
}

func looseEqual(x, y any) bool {
	if (x == nil || x == Undefined) && (y == nil || y == Undefined) {
		return true
	}
	if x == nil || x == Undefined || y == nil || y == Undefined {
		return false
	}
	if reflect.TypeOf(x) == reflect.TypeOf(y) {
		return strictEqual(x, y)
	}
	_, xo := x.(map[string]any)
	_, yo := y.(map[string]any)
	if xo || yo {
		return String(x) == String(y)
	}
	return number(x) == number(y)
}

func sameObject(x, y any) bool {
	vx, vy := reflect.ValueOf(x), reflect.ValueOf(y)
	return vx.Kind() == vy.Kind() && vx.Pointer() == vy.Pointer()
}

func primitive(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		return String(v)
	}
	return v
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil, undefined:
		return false
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case string:
		return v != ""
	}
	return true
}

func number(v any) float64 {
	switch v := v.(type) {
	case nil:
		return 0
	case bool:
		if v {
			return 1
		}
		return 0
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case []any:
		return number(String(v))
	}
	return math.NaN()
}

func typeOf(v any) string {
	switch v.(type) {
	case undefined:
		return "undefined"
	case bool:
		return "boolean"
	case float64, int:
		return "number"
	case string:
		return "string"
	}
	return "object"
}

// String converts a value the way JavaScript's String() does, except that
// undefined becomes the empty string.
func String(v any) string {
	switch v := v.(type) {
	case undefined:
		return ""
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatNumber(v)
	case int:
		return strconv.Itoa(v)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			if e != nil {
				parts[i] = String(e)
			}
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	}
	return fmt.Sprint(v)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		exp = strings.TrimLeft(exp, "+")
		if strings.HasPrefix(exp, "-") {
			return mant + "e-" + strings.TrimLeft(exp[1:], "0")
		}
		return mant + "e+" + strings.TrimLeft(exp, "0")
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// JSON encodes v like JSON.stringify. Undefined encodes as null.
func JSON(v any) string {
	if v == Undefined {
		v = nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

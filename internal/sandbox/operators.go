package sandbox

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/expr-lang/expr/ast"
)

// floorMarker stands in for '//' while the snippet goes through the expression
// parser, which reads '//' as a comment. A '$' name cannot come from a snippet
// because the safety walk refuses it.
const floorMarker = "$floordiv"

const truthFunc = "_bool"

// binaryFuncs maps expression operators onto the functions implementing their
// snippet semantics. Every operator runs as a call, so operand types are only
// looked at when the snippet executes.
var binaryFuncs = map[string]string{
	"+":  "_add",
	"-":  "_sub",
	"*":  "_mul",
	"/":  "_div",
	"%":  "_mod",
	"**": "_pow",
	"^":  "_xor",
	"==": "_eq",
	"!=": "_ne",
	"<":  "_lt",
	">":  "_gt",
	"<=": "_le",
	">=": "_ge",
	"in": "_in",
}

const (
	floorDivFunc = "_floordiv"
	negFunc      = "_neg"
	posFunc      = "_pos"
	notFunc      = "_not"
)

// operatorFuncs returns the implementations bound under the names above.
func operatorFuncs() map[string]any {
	ordered := func(op string, want func(int) bool) builtinFunc {
		return func(args ...any) (any, error) {
			c, err := compare(op, args[0], args[1])
			if err != nil {
				return nil, err
			}
			return want(c), nil
		}
	}
	return map[string]any{
		"_add":       builtinFunc(pyAdd),
		"_sub":       builtinFunc(pySub),
		"_mul":       builtinFunc(pyMul),
		"_div":       builtinFunc(pyDiv),
		"_mod":       builtinFunc(pyMod),
		"_pow":       builtinFunc(pyPow),
		"_xor":       builtinFunc(pyXor),
		"_eq":        builtinFunc(func(args ...any) (any, error) { return equal(args[0], args[1]), nil }),
		"_ne":        builtinFunc(func(args ...any) (any, error) { return !equal(args[0], args[1]), nil }),
		"_lt":        ordered("<", func(c int) bool { return c < 0 }),
		"_gt":        ordered(">", func(c int) bool { return c > 0 }),
		"_le":        ordered("<=", func(c int) bool { return c <= 0 }),
		"_ge":        ordered(">=", func(c int) bool { return c >= 0 }),
		"_in":        builtinFunc(pyIn),
		floorDivFunc: builtinFunc(pyFloorDiv),
		negFunc:      builtinFunc(func(args ...any) (any, error) { return unary("-", args[0]) }),
		posFunc:      builtinFunc(func(args ...any) (any, error) { return unary("+", args[0]) }),
		notFunc:      builtinFunc(func(args ...any) (any, error) { return !Truthy(args[0]), nil }),
		truthFunc:    builtinFunc(func(args ...any) (any, error) { return Truthy(args[0]), nil }),
	}
}

// isOperatorFunc reports whether name is one of the internal operator functions.
func isOperatorFunc(name string) bool {
	if name == floorDivFunc || name == negFunc || name == posFunc || name == notFunc || name == truthFunc {
		return true
	}
	for _, fn := range binaryFuncs {
		if fn == name {
			return true
		}
	}
	return false
}

// pythonPatcher rewrites the expression tree so operators follow snippet
// semantics: arithmetic and comparisons go through the functions above, and
// 'and'/'or' short-circuit and yield the deciding operand.
type pythonPatcher struct {
	temps int
}

func (p *pythonPatcher) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.BinaryNode:
		switch n.Operator {
		case "and", "&&":
			ast.Patch(node, p.shortCircuit(n.Left, n.Right, false))
			return
		case "or", "||":
			ast.Patch(node, p.shortCircuit(n.Left, n.Right, true))
			return
		case "/":
			// a // b arrives as (a / $floordiv) / b.
			if id, ok := n.Right.(*ast.IdentifierNode); ok && id.Value == floorMarker {
				ast.Patch(node, callOf(floorDivFunc, n.Left))
				return
			}
			if call, ok := n.Left.(*ast.CallNode); ok && isPendingFloorDiv(call) {
				ast.Patch(node, callOf(floorDivFunc, call.Arguments[0], n.Right))
				return
			}
		}
		if fn, ok := binaryFuncs[n.Operator]; ok {
			ast.Patch(node, callOf(fn, n.Left, n.Right))
		}
	case *ast.UnaryNode:
		switch n.Operator {
		case "not", "!":
			ast.Patch(node, callOf(notFunc, n.Node))
		case "-":
			ast.Patch(node, callOf(negFunc, n.Node))
		case "+":
			ast.Patch(node, callOf(posFunc, n.Node))
		}
	case *ast.ConditionalNode:
		n.Cond = callOf(truthFunc, n.Cond)
	}
}

// shortCircuit binds left once and picks the operand the way 'and'/'or' do.
func (p *pythonPatcher) shortCircuit(left, right ast.Node, or bool) ast.Node {
	name := fmt.Sprintf("$t%d", p.temps)
	p.temps++
	ref := func() ast.Node { return &ast.IdentifierNode{Value: name} }

	pick := &ast.ConditionalNode{Cond: callOf(truthFunc, ref())}
	if or {
		pick.Exp1, pick.Exp2 = ref(), right
	} else {
		pick.Exp1, pick.Exp2 = right, ref()
	}
	return &ast.VariableDeclaratorNode{Name: name, Value: left, Expr: pick}
}

func isPendingFloorDiv(call *ast.CallNode) bool {
	id, ok := call.Callee.(*ast.IdentifierNode)
	return ok && id.Value == floorDivFunc && len(call.Arguments) == 1
}

func callOf(fn string, args ...ast.Node) *ast.CallNode {
	return &ast.CallNode{
		Callee:    &ast.IdentifierNode{Value: fn},
		Arguments: args,
	}
}

// rewriteFloorDiv replaces '//' outside string literals with the floor
// division marker and refuses '/*', which the expression parser would read as
// the start of a comment.
func rewriteFloorDiv(src string, line int) (string, error) {
	var (
		out     strings.Builder
		quote   byte
		escaped bool
	)
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '$' && strings.HasPrefix(src[i:], floorMarker):
			return "", &Violation{Reasons: []string{fmt.Sprintf("Access to the name '%s' is restricted.", floorMarker)}}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			return "", &SyntaxError{Msg: "invalid syntax", Line: line, Offset: i + 1}
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			out.WriteString(" / " + floorMarker + " / ")
			i++
			continue
		}
		out.WriteByte(c)
	}
	return out.String(), nil
}

func unsupported(op string, a, b any) error {
	return runtimeErrorf(TypeError, "unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(a), typeName(b))
}

// arith applies ints when both operands are integral and floats otherwise.
func arith(op string, a, b any, ints func(x, y int) (any, error), floats func(x, y float64) (any, error)) (any, error) {
	fa, intA, okA := number(a)
	fb, intB, okB := number(b)
	if !okA || !okB {
		return nil, unsupported(op, a, b)
	}
	if intA && intB {
		x, _ := toInt(a)
		y, _ := toInt(b)
		return ints(x, y)
	}
	return floats(fa, fb)
}

func pyAdd(args ...any) (any, error) {
	a, b := args[0], args[1]
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return x + y, nil
		}
		return nil, runtimeErrorf(TypeError, `can only concatenate str (not "%s") to str`, typeName(b))
	case []any:
		if y, ok := b.([]any); ok {
			out := make([]any, 0, len(x)+len(y))
			return append(append(out, x...), y...), nil
		}
		return nil, runtimeErrorf(TypeError, `can only concatenate list (not "%s") to list`, typeName(b))
	}
	return arith("+", a, b,
		func(x, y int) (any, error) { return x + y, nil },
		func(x, y float64) (any, error) { return x + y, nil })
}

func pySub(args ...any) (any, error) {
	return arith("-", args[0], args[1],
		func(x, y int) (any, error) { return x - y, nil },
		func(x, y float64) (any, error) { return x - y, nil })
}

func pyMul(args ...any) (any, error) {
	a, b := args[0], args[1]
	if out, ok, err := repeat(a, b); ok {
		return out, err
	}
	if out, ok, err := repeat(b, a); ok {
		return out, err
	}
	return arith("*", a, b,
		func(x, y int) (any, error) { return x * y, nil },
		func(x, y float64) (any, error) { return x * y, nil })
}

// repeat implements sequence * int. ok is false when seq is not a sequence.
func repeat(seq, count any) (any, bool, error) {
	switch seq.(type) {
	case string, []any:
	default:
		return nil, false, nil
	}
	_, integral, isNum := number(count)
	if !isNum || !integral {
		return nil, true, runtimeErrorf(TypeError, "can't multiply sequence by non-int of type '%s'", typeName(count))
	}
	n, _ := toInt(count)
	if n < 0 {
		n = 0
	}
	if s, ok := seq.(string); ok {
		return strings.Repeat(s, n), true, nil
	}
	list := seq.([]any)
	out := make([]any, 0, len(list)*n)
	for range n {
		out = append(out, list...)
	}
	return out, true, nil
}

func pyDiv(args ...any) (any, error) {
	return arith("/", args[0], args[1],
		func(x, y int) (any, error) {
			if y == 0 {
				return nil, runtimeErrorf(ZeroDivisionError, "division by zero")
			}
			return float64(x) / float64(y), nil
		},
		func(x, y float64) (any, error) {
			if y == 0 {
				return nil, runtimeErrorf(ZeroDivisionError, "division by zero")
			}
			return x / y, nil
		})
}

func pyFloorDiv(args ...any) (any, error) {
	return arith("//", args[0], args[1],
		func(x, y int) (any, error) {
			if y == 0 {
				return nil, runtimeErrorf(ZeroDivisionError, "integer division or modulo by zero")
			}
			q := x / y
			if x%y != 0 && (x < 0) != (y < 0) {
				q--
			}
			return q, nil
		},
		func(x, y float64) (any, error) {
			if y == 0 {
				return nil, runtimeErrorf(ZeroDivisionError, "float floor division by zero")
			}
			return math.Floor(x / y), nil
		})
}

func pyMod(args ...any) (any, error) {
	return arith("%", args[0], args[1],
		func(x, y int) (any, error) {
			if y == 0 {
				return nil, runtimeErrorf(ZeroDivisionError, "integer modulo by zero")
			}
			r := x % y
			if r != 0 && (r < 0) != (y < 0) {
				r += y
			}
			return r, nil
		},
		func(x, y float64) (any, error) {
			if y == 0 {
				return nil, runtimeErrorf(ZeroDivisionError, "float modulo")
			}
			r := math.Mod(x, y)
			if r != 0 && (r < 0) != (y < 0) {
				r += y
			}
			return r, nil
		})
}

func pyPow(args ...any) (any, error) {
	return arith("**", args[0], args[1],
		func(x, y int) (any, error) {
			if y < 0 {
				if x == 0 {
					return nil, runtimeErrorf(ZeroDivisionError, "0.0 cannot be raised to a negative power")
				}
				return math.Pow(float64(x), float64(y)), nil
			}
			out := 1
			for range y {
				out *= x
			}
			return out, nil
		},
		func(x, y float64) (any, error) {
			if x == 0 && y < 0 {
				return nil, runtimeErrorf(ZeroDivisionError, "0.0 cannot be raised to a negative power")
			}
			return math.Pow(x, y), nil
		})
}

func pyXor(args ...any) (any, error) {
	if x, ok := args[0].(bool); ok {
		if y, ok := args[1].(bool); ok {
			return x != y, nil
		}
	}
	return arith("^", args[0], args[1],
		func(x, y int) (any, error) { return x ^ y, nil },
		func(float64, float64) (any, error) { return nil, unsupported("^", args[0], args[1]) })
}

func pyIn(args ...any) (any, error) {
	needle := args[0]
	switch h := args[1].(type) {
	case string:
		s, ok := needle.(string)
		if !ok {
			return nil, runtimeErrorf(TypeError, "'in <string>' requires string as left operand, not %s", typeName(needle))
		}
		return strings.Contains(h, s), nil
	case []any:
		for _, e := range h {
			if equal(needle, e) {
				return true, nil
			}
		}
		return false, nil
	case map[string]any:
		s, ok := needle.(string)
		if !ok {
			return false, nil
		}
		_, found := h[s]
		return found, nil
	}
	return nil, runtimeErrorf(TypeError, "argument of type '%s' is not iterable", typeName(args[1]))
}

func unary(op string, v any) (any, error) {
	f, integral, ok := number(v)
	if !ok {
		return nil, runtimeErrorf(TypeError, "bad operand type for unary %s: '%s'", op, typeName(v))
	}
	if integral {
		i, _ := toInt(v)
		if op == "-" {
			return -i, nil
		}
		return i, nil
	}
	if op == "-" {
		return -f, nil
	}
	return f, nil
}

// equal compares values the way '==' does: numbers by value, containers
// element by element, and mismatched types as unequal.
func equal(a, b any) bool {
	if fa, _, ok := number(a); ok {
		fb, _, ok := number(b)
		return ok && fa == fb
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, found := y[k]
			if !found || !equal(v, w) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

package sandbox

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

var deniedCalls = map[string]bool{
	"eval": true, "exec": true, "compile": true, "open": true, "input": true,
	"getattr": true, "setattr": true, "delattr": true,
	"globals": true, "locals": true, "vars": true,
	"__import__": true,
	"memoryview": true, "bytearray": true, "bytes": true,
}

// allowedDunders are operator-protocol attributes that stay reachable.
var allowedDunders = map[string]bool{
	"__len__": true, "__getitem__": true, "__setitem__": true, "__delitem__": true, "__contains__": true,
	"__add__": true, "__sub__": true, "__mul__": true, "__truediv__": true, "__floordiv__": true,
	"__mod__": true, "__pow__": true,
	"__eq__": true, "__ne__": true, "__lt__": true, "__le__": true, "__gt__": true, "__ge__": true,
	"__iter__": true, "__next__": true, "__call__": true,
	"__str__": true, "__repr__": true,
	"__bool__": true, "__hash__": true, "__abs__": true,
}

var deniedAttributes = map[string]bool{
	"__globals__": true, "__builtins__": true, "__code__": true, "__closure__": true, "__self__": true,
	"__class__": true, "__bases__": true, "__subclasses__": true, "__mro__": true,
	"__init__": true, "__new__": true, "__del__": true, "__dict__": true,
	"__getattribute__": true, "__setattr__": true, "__delattr__": true,
	"__get__": true, "__set__": true, "__delete__": true,
	"__init_subclass__": true, "__prepare__": true,
	"f_locals": true, "f_globals": true, "f_builtins": true, "f_code": true, "f_back": true, "f_trace": true,
	"gi_frame": true, "gi_code": true, "gi_running": true, "gi_yieldfrom": true,
	"co_code": true, "co_consts": true, "co_names": true, "co_varnames": true, "co_freevars": true, "co_cellvars": true,
	"func_code": true, "func_globals": true, "func_builtins": true, "func_closure": true, "func_defaults": true,
	"__file__": true, "__cached__": true, "__loader__": true, "__package__": true, "__spec__": true,
	"_as_parameter_": true, "_fields_": true, "_length_": true, "_type_": true,
	"__annotations__": true, "__qualname__": true, "__module__": true,
	"__slots__": true, "__weakref__": true, "__set_name__": true,
	"format_map": true, "mro": true, "with_traceback": true,
}

// safetyVisitor walks a parsed expression and records every construct the
// sandbox refuses, along with the identifiers the expression reads.
type safetyVisitor struct {
	violations []string
	names      []string
}

func (v *safetyVisitor) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		v.identifier(n.Value)
	case *ast.MemberNode:
		if prop, ok := n.Property.(*ast.StringNode); ok {
			v.attribute(prop.Value)
		}
	case *ast.CallNode:
		switch callee := n.Callee.(type) {
		case *ast.IdentifierNode:
			v.call(callee.Value)
		case *ast.MemberNode:
			name := "<expression>"
			if prop, ok := callee.Property.(*ast.StringNode); ok {
				name = prop.Value
			}
			v.deny(fmt.Sprintf("Calling the method '%s' is not allowed.", name))
		default:
			v.deny("Calling a computed function is not allowed.")
		}
	case *ast.BuiltinNode:
		v.call(n.Name)
	case *ast.PredicateNode, *ast.PointerNode:
		v.deny("Closures are not allowed in FSM code.")
	}
}

func (v *safetyVisitor) identifier(name string) {
	switch {
	case name == floorMarker:
		return
	case strings.HasPrefix(name, "$"):
		v.deny(fmt.Sprintf("Access to the name '%s' is restricted.", name))
		return
	case isDunder(name):
		v.deny(fmt.Sprintf("Access to the name '%s' is restricted.", name))
		return
	}
	v.names = append(v.names, name)
}

func (v *safetyVisitor) attribute(name string) {
	switch {
	case deniedAttributes[name] && !allowedDunders[name]:
		v.deny(fmt.Sprintf("Access to the attribute '%s' is restricted.", name))
	case isDunder(name) && !allowedDunders[name]:
		v.deny(fmt.Sprintf("Access to the special attribute '%s' is restricted.", name))
	}
}

func (v *safetyVisitor) call(name string) {
	if deniedCalls[name] || !isCallable(name) {
		v.deny(fmt.Sprintf("Calling the function '%s' is not allowed.", name))
	}
}

func (v *safetyVisitor) deny(reason string) {
	for _, existing := range v.violations {
		if existing == reason {
			return
		}
	}
	v.violations = append(v.violations, reason)
}

func isDunder(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// inspect parses one expression and runs the safety walk over it.
func inspect(src string, line int) (*safetyVisitor, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, &SyntaxError{Msg: firstLine(err.Error()), Line: line, Offset: 1}
	}
	v := &safetyVisitor{}
	ast.Walk(&tree.Node, v)
	return v, nil
}

// CheckSafety reports whether source may run as an action snippet. The message
// explains the first refusal: a security violation or a syntax error.
func CheckSafety(source string) (bool, string) {
	if strings.TrimSpace(source) == "" {
		return true, ""
	}
	if _, err := Compile(source, KindAction); err != nil {
		return false, err.Error()
	}
	return true, ""
}

package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// callable lists the functions a snippet may call.
var callable = map[string]bool{
	"print": true, "len": true, "abs": true, "min": true, "max": true,
	"int": true, "float": true, "str": true, "bool": true, "round": true, "type": true,
}

// constants are always in scope and cannot be reassigned.
var constants = map[string]any{
	"True":  true,
	"False": false,
	"None":  nil,
}

const (
	machineName = "sm"
	tickName    = "current_tick"
)

func isCallable(name string) bool {
	return callable[name]
}

// IsReserved reports whether name belongs to the sandbox and cannot hold a variable.
func IsReserved(name string) bool {
	if _, ok := constants[name]; ok {
		return true
	}
	return callable[name] || name == machineName || name == tickName || isOperatorFunc(name)
}

// ValidVariableName reports whether name can be stored as an FSM variable.
func ValidVariableName(name string) bool {
	return identifierRe.MatchString(name) && !IsReserved(name) && !isDunder(name)
}

type builtinFunc func(args ...any) (any, error)

// builtins binds the callable functions to a print sink.
func builtins(print func(string)) map[string]any {
	fns := map[string]any{
		"print": builtinFunc(func(args ...any) (any, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = Str(a)
			}
			if print != nil {
				print(strings.Join(parts, " "))
			}
			return nil, nil
		}),
		"len":   builtinFunc(pyLen),
		"abs":   builtinFunc(pyAbs),
		"min":   builtinFunc(func(args ...any) (any, error) { return extreme("min", args, -1) }),
		"max":   builtinFunc(func(args ...any) (any, error) { return extreme("max", args, 1) }),
		"int":   builtinFunc(pyInt),
		"float": builtinFunc(pyFloat),
		"str": builtinFunc(func(args ...any) (any, error) {
			if len(args) == 0 {
				return "", nil
			}
			return Str(args[0]), nil
		}),
		"bool": builtinFunc(func(args ...any) (any, error) {
			if len(args) == 0 {
				return false, nil
			}
			return Truthy(args[0]), nil
		}),
		"round": builtinFunc(pyRound),
		"type":  builtinFunc(pyType),
	}
	for name, fn := range operatorFuncs() {
		fns[name] = fn
	}
	return fns
}

// Truthy applies Python truth-value rules to a snippet value.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	if f, _, ok := number(v); ok {
		return f != 0
	}
	return true
}

// number widens any numeric value to float64 and reports whether it was integral.
func number(v any) (float64, bool, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true, true
	case int8:
		return float64(x), true, true
	case int16:
		return float64(x), true, true
	case int32:
		return float64(x), true, true
	case int64:
		return float64(x), true, true
	case uint:
		return float64(x), true, true
	case uint8:
		return float64(x), true, true
	case uint16:
		return float64(x), true, true
	case uint32:
		return float64(x), true, true
	case uint64:
		return float64(x), true, true
	case float32:
		return float64(x), false, true
	case float64:
		return x, false, true
	case bool:
		if x {
			return 1, true, true
		}
		return 0, true, true
	}
	return 0, false, false
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case int32:
		return int(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	f, integral, ok := number(v)
	if !ok || !integral {
		return 0, false
	}
	return int(f), true
}

func pyLen(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, runtimeErrorf(TypeError, "len() takes exactly one argument (%d given)", len(args))
	}
	switch x := args[0].(type) {
	case string:
		return utf8.RuneCountInString(x), nil
	case []any:
		return len(x), nil
	case map[string]any:
		return len(x), nil
	}
	return nil, runtimeErrorf(TypeError, "object of type '%s' has no len()", typeName(args[0]))
}

func pyAbs(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, runtimeErrorf(TypeError, "abs() takes exactly one argument (%d given)", len(args))
	}
	if i, ok := args[0].(int); ok {
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}
	f, _, ok := number(args[0])
	if !ok {
		return nil, runtimeErrorf(TypeError, "bad operand type for abs(): '%s'", typeName(args[0]))
	}
	return math.Abs(f), nil
}

func extreme(name string, args []any, sign int) (any, error) {
	values := args
	if len(args) == 1 {
		list, ok := args[0].([]any)
		if !ok {
			return nil, runtimeErrorf(TypeError, "'%s' object is not iterable", typeName(args[0]))
		}
		values = list
	}
	if len(values) == 0 {
		return nil, runtimeErrorf(ValueError, "%s() arg is an empty sequence", name)
	}
	best := values[0]
	for _, v := range values[1:] {
		c, err := compare("<", v, best)
		if err != nil {
			return nil, err
		}
		if c*sign > 0 {
			best = v
		}
	}
	return best, nil
}

// compare orders two numbers or two strings; op names the operator in errors.
func compare(op string, a, b any) (int, error) {
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), nil
		}
	}
	fa, _, okA := number(a)
	fb, _, okB := number(b)
	if !okA || !okB {
		return 0, runtimeErrorf(TypeError, "'%s' not supported between instances of '%s' and '%s'", op, typeName(a), typeName(b))
	}
	switch {
	case fa < fb:
		return -1, nil
	case fa > fb:
		return 1, nil
	}
	return 0, nil
}

func pyInt(args ...any) (any, error) {
	if len(args) == 0 {
		return 0, nil
	}
	switch x := args[0].(type) {
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil, runtimeErrorf(ValueError, "invalid literal for int() with base 10: '%s'", x)
		}
		return i, nil
	case nil:
		return nil, runtimeErrorf(TypeError, "int() argument must be a string or a number, not 'NoneType'")
	}
	f, _, ok := number(args[0])
	if !ok {
		return nil, runtimeErrorf(TypeError, "int() argument must be a string or a number, not '%s'", typeName(args[0]))
	}
	return int(f), nil
}

func pyFloat(args ...any) (any, error) {
	if len(args) == 0 {
		return 0.0, nil
	}
	if s, ok := args[0].(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, runtimeErrorf(ValueError, "could not convert string to float: '%s'", s)
		}
		return f, nil
	}
	f, _, ok := number(args[0])
	if !ok {
		return nil, runtimeErrorf(TypeError, "float() argument must be a string or a number, not '%s'", typeName(args[0]))
	}
	return f, nil
}

func pyRound(args ...any) (any, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, runtimeErrorf(TypeError, "round() takes 1 or 2 arguments (%d given)", len(args))
	}
	f, _, ok := number(args[0])
	if !ok {
		return nil, runtimeErrorf(TypeError, "type %s doesn't define __round__ method", typeName(args[0]))
	}
	if len(args) == 1 {
		return int(math.RoundToEven(f)), nil
	}
	digits, ok := toInt(args[1])
	if !ok {
		return nil, runtimeErrorf(TypeError, "'%s' object cannot be interpreted as an integer", typeName(args[1]))
	}
	scale := math.Pow(10, float64(digits))
	return math.RoundToEven(f*scale) / scale, nil
}

func pyType(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, runtimeErrorf(TypeError, "type() takes 1 argument")
	}
	return typeName(args[0]), nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case string:
		return "str"
	case []any:
		return "list"
	case map[string]any:
		return "dict"
	}
	if _, integral, ok := number(v); ok {
		if integral {
			return "int"
		}
		return "float"
	}
	return fmt.Sprintf("%T", v)
}

// Str renders a value the way print() shows it.
func Str(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return x
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = repr(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = repr(k) + ": " + repr(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(v)
}

func repr(v any) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
	}
	return Str(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

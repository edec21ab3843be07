package domain

import (
	"encoding/json"
	"strconv"
)

// NormalizeValue converts json.Number values produced by a decoder with
// UseNumber into int or float64, recursing into maps and slices. Integral
// numbers stay integers so snippets keep integer arithmetic after a round trip.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := strconv.Atoi(x.String()); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = NormalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = NormalizeValue(val)
		}
		return out
	default:
		return v
	}
}

// NormalizeVariables applies NormalizeValue to every entry of a variable map.
func NormalizeVariables(vars map[string]any) map[string]any {
	if vars == nil {
		return nil
	}
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = NormalizeValue(v)
	}
	return out
}

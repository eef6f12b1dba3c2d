package archive

import (
	"math"
	"reflect"
)

// Equal compares two decoded archive documents. Numbers compare by value
// regardless of their decoded type, NaN equals NaN and null equals NaN.
func Equal(a, b any) bool {
	if fa, ok := number(a); ok {
		if b == nil {
			return math.IsNaN(fa)
		}
		fb, ok := number(b)
		return ok && floatEqual(fa, fb)
	}
	switch x := a.(type) {
	case nil:
		if b == nil {
			return true
		}
		f, ok := number(b)
		return ok && math.IsNaN(f)
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case []any:
		y := toSlice(b)
		if y == nil || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case []float64:
		return Equal(toSlice(x), b)
	default:
		return reflect.DeepEqual(a, b)
	}
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case nil:
		return math.NaN(), false
	}
	return 0, false
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

func toSlice(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out
	}
	return nil
}

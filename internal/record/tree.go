// Package record holds the intermediate tree every format decoder produces:
// an ordered mapping from string keys to scalars, quantities, arrays or
// nested trees.
package record

import (
	"fmt"
	"math"
	"strings"

	"elncore/pkg/units"
)

// Tree is an ordered string-keyed mapping. Values are one of: string,
// float64, int64, bool, units.Quantity, []float64, []string, *Tree, []*Tree.
type Tree struct {
	keys []string
	vals map[string]any
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{vals: map[string]any{}}
}

// Len returns the number of keys.
func (t *Tree) Len() int { return len(t.keys) }

// Keys returns the keys in insertion order.
func (t *Tree) Keys() []string { return append([]string(nil), t.keys...) }

// Set stores v under key, keeping the original position of an existing key.
// Integer kinds are widened to int64 and float32 to float64.
func (t *Tree) Set(key string, v any) *Tree {
	switch n := v.(type) {
	case int:
		v = int64(n)
	case int32:
		v = int64(n)
	case float32:
		v = float64(n)
	case string, float64, int64, bool, units.Quantity, []float64, []string, *Tree, []*Tree:
	default:
		panic(fmt.Sprintf("record: unsupported value %T for %q", v, key))
	}
	if _, ok := t.vals[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.vals[key] = v
	return t
}

// Delete removes key.
func (t *Tree) Delete(key string) {
	if _, ok := t.vals[key]; !ok {
		return
	}
	delete(t.vals, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Get returns the value of key.
func (t *Tree) Get(key string) (any, bool) {
	v, ok := t.vals[key]
	return v, ok
}

// Has reports whether key is set.
func (t *Tree) Has(key string) bool {
	_, ok := t.vals[key]
	return ok
}

// Lookup follows a slash-separated path of nested trees.
func (t *Tree) Lookup(path string) (any, bool) {
	cur := t
	parts := strings.Split(path, "/")
	for i, p := range parts {
		v, ok := cur.vals[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		if cur, ok = v.(*Tree); !ok {
			return nil, false
		}
	}
	return nil, false
}

// Child returns the nested tree under key, creating it when absent.
func (t *Tree) Child(key string) *Tree {
	if c, ok := t.vals[key].(*Tree); ok {
		return c
	}
	c := New()
	t.Set(key, c)
	return c
}

// Append adds c to the tree list under key.
func (t *Tree) Append(key string, c *Tree) {
	list, _ := t.vals[key].([]*Tree)
	t.Set(key, append(list, c))
}

// Str returns a string value, formatting numbers and quantities.
func (t *Tree) Str(key string) string {
	switch v := t.vals[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case units.Quantity:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Float returns a numeric value; quantities yield their magnitude.
func (t *Tree) Float(key string) (float64, bool) {
	switch v := t.vals[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case units.Quantity:
		return v.Magnitude, true
	}
	return math.NaN(), false
}

// Quantity returns a quantity value. Plain numbers are dimensionless.
func (t *Tree) Quantity(key string) (units.Quantity, bool) {
	switch v := t.vals[key].(type) {
	case units.Quantity:
		return v, true
	case float64:
		return units.Quantity{Magnitude: v, Unit: units.One}, true
	case int64:
		return units.Quantity{Magnitude: float64(v), Unit: units.One}, true
	}
	return units.Quantity{}, false
}

// Floats returns a numeric array.
func (t *Tree) Floats(key string) []float64 {
	v, _ := t.vals[key].([]float64)
	return v
}

// Strings returns a string array.
func (t *Tree) Strings(key string) []string {
	v, _ := t.vals[key].([]string)
	return v
}

// Bool returns a boolean value.
func (t *Tree) Bool(key string) (bool, bool) {
	v, ok := t.vals[key].(bool)
	return v, ok
}

// Tree returns the nested tree under key without creating it.
func (t *Tree) Tree(key string) *Tree {
	v, _ := t.vals[key].(*Tree)
	return v
}

// Trees returns the tree list under key.
func (t *Tree) Trees(key string) []*Tree {
	v, _ := t.vals[key].([]*Tree)
	return v
}

// Equal compares two trees structurally. Floats compare with NaN == NaN,
// quantities by converted magnitude, empty arrays of any kind are equal.
func (t *Tree) Equal(o *Tree) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.keys) != len(o.keys) {
		return false
	}
	for i, k := range t.keys {
		if o.keys[i] != k || !valueEqual(t.vals[k], o.vals[k]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if isEmptyArray(a) && isEmptyArray(b) {
		return true
	}
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		return ok && floatEqual(x, y)
	case units.Quantity:
		y, ok := b.(units.Quantity)
		return ok && x.Equal(y)
	case []float64:
		y, ok := b.([]float64)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !floatEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case []string:
		y, ok := b.([]string)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case *Tree:
		y, ok := b.(*Tree)
		return ok && x.Equal(y)
	case []*Tree:
		y, ok := b.([]*Tree)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !x[i].Equal(y[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func isEmptyArray(v any) bool {
	switch x := v.(type) {
	case []float64:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case []*Tree:
		return len(x) == 0
	}
	return false
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"elncore/pkg/units"
)

// quantityTag marks a "magnitude unit" scalar.
const quantityTag = "!quantity"

// MarshalYAML encodes the tree as an ordered mapping.
func (t *Tree) MarshalYAML() (any, error) {
	return t.node(), nil
}

func (t *Tree) node() *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range t.keys {
		n.Content = append(n.Content, strNode(k), valueNode(t.vals[k]))
	}
	return n
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func floatNode(f float64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(f)}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func valueNode(v any) *yaml.Node {
	switch x := v.(type) {
	case string:
		return strNode(x)
	case float64:
		return floatNode(x)
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(x, 10)}
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(x)}
	case units.Quantity:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: quantityTag, Value: formatFloat(x.Magnitude) + " " + x.Unit.Name}
	case []float64:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, f := range x {
			n.Content = append(n.Content, floatNode(f))
		}
		return n
	case []string:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, s := range x {
			n.Content = append(n.Content, strNode(s))
		}
		return n
	case *Tree:
		return x.node()
	case []*Tree:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, c := range x {
			n.Content = append(n.Content, c.node())
		}
		return n
	default:
		panic(fmt.Sprintf("record: unsupported value %T", v))
	}
}

// UnmarshalYAML decodes an ordered mapping produced by MarshalYAML.
func (t *Tree) UnmarshalYAML(n *yaml.Node) error {
	dec, err := fromNode(n)
	if err != nil {
		return err
	}
	*t = *dec
	return nil
}

func fromNode(n *yaml.Node) (*Tree, error) {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("record: expected mapping at line %d", n.Line)
	}
	t := New()
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		val, err := nodeValue(v)
		if err != nil {
			return nil, err
		}
		t.Set(k.Value, val)
	}
	return t, nil
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		return fromNode(n)
	case yaml.SequenceNode:
		return seqValue(n)
	case yaml.ScalarNode:
		return scalarValue(n)
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	}
	return nil, fmt.Errorf("record: unsupported node at line %d", n.Line)
}

func scalarValue(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case quantityTag:
		return parseQuantity(n.Value)
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, err
		}
		return i, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return n.Value, nil
	}
}

func parseQuantity(s string) (units.Quantity, error) {
	mag, unit, _ := strings.Cut(strings.TrimSpace(s), " ")
	var f float64
	switch mag {
	case ".nan":
		f = math.NaN()
	case ".inf":
		f = math.Inf(1)
	case "-.inf":
		f = math.Inf(-1)
	default:
		v, err := strconv.ParseFloat(mag, 64)
		if err != nil {
			return units.Quantity{}, fmt.Errorf("record: quantity %q: %w", s, err)
		}
		f = v
	}
	u, err := units.Default().Parse(unit)
	if err != nil {
		return units.Quantity{}, fmt.Errorf("record: quantity %q: %w", s, err)
	}
	return units.Quantity{Magnitude: f, Unit: u}, nil
}

func seqValue(n *yaml.Node) (any, error) {
	if len(n.Content) == 0 {
		return []float64{}, nil
	}
	switch {
	case allKind(n, yaml.MappingNode):
		out := make([]*Tree, len(n.Content))
		for i, c := range n.Content {
			t, err := fromNode(c)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	case allNumeric(n):
		out := make([]float64, len(n.Content))
		for i, c := range n.Content {
			if err := c.Decode(&out[i]); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		out := make([]string, len(n.Content))
		for i, c := range n.Content {
			out[i] = c.Value
		}
		return out, nil
	}
}

func allKind(n *yaml.Node, k yaml.Kind) bool {
	for _, c := range n.Content {
		if c.Kind != k {
			return false
		}
	}
	return true
}

func allNumeric(n *yaml.Node) bool {
	for _, c := range n.Content {
		if c.Kind != yaml.ScalarNode {
			return false
		}
		if t := c.ShortTag(); t != "!!float" && t != "!!int" {
			return false
		}
	}
	return true
}

// Encode renders t as YAML.
func Encode(t *Tree) ([]byte, error) {
	out, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("record.Encode: %w", err)
	}
	return out, nil
}

// Decode parses YAML produced by Encode.
func Decode(data []byte) (*Tree, error) {
	var n yaml.Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("record.Decode: %w", err)
	}
	if n.Kind == 0 {
		return New(), nil
	}
	return fromNode(&n)
}

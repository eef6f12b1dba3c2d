package normalize

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
)

// Substance is one row of a substance table.
type Substance struct {
	Names            []string `yaml:"names"`
	IUPACName        string   `yaml:"iupac_name"`
	MolecularFormula string   `yaml:"molecular_formula"`
	CAS              string   `yaml:"cas"`
	CID              int64    `yaml:"cid"`
	AntoineA         *float64 `yaml:"antoine_a"`
	AntoineB         *float64 `yaml:"antoine_b"`
	AntoineC         *float64 `yaml:"antoine_c"`
}

// SubstanceTable answers lookups by name, formula or CAS number. Keys are
// matched case-insensitively.
type SubstanceTable struct {
	rows  []Substance
	index map[string]int
}

// ParseSubstances reads a YAML list of substances.
func ParseSubstances(data []byte) (*SubstanceTable, error) {
	var rows []Substance
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("normalize.substances: %w", err)
	}
	t := &SubstanceTable{rows: rows, index: map[string]int{}}
	for i, r := range rows {
		keys := append([]string{r.IUPACName, r.MolecularFormula, r.CAS}, r.Names...)
		for _, k := range keys {
			k = substanceKey(k)
			if k == "" {
				continue
			}
			if _, dup := t.index[k]; dup {
				return nil, fmt.Errorf("normalize.substances: key %q listed twice", k)
			}
			t.index[k] = i
		}
	}
	return t, nil
}

// LoadSubstances reads a substance table file.
func LoadSubstances(path string) (*SubstanceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("normalize.substances: %w", err)
	}
	return ParseSubstances(data)
}

func substanceKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Lookup returns the substance known by formulaOrName.
func (t *SubstanceTable) Lookup(formulaOrName string) (Substance, bool) {
	if t == nil {
		return Substance{}, false
	}
	i, ok := t.index[substanceKey(formulaOrName)]
	if !ok {
		return Substance{}, false
	}
	return t.rows[i], true
}

// Len is the number of substances.
func (t *SubstanceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Normalize fills unset identifiers and Antoine coefficients of a pure
// substance from the table, then its vapour pressure.
func (t *SubstanceTable) Normalize(ctx context.Context, pc pluginapi.Context, sec *domain.Section) error {
	var (
		row   Substance
		found bool
	)
	for _, key := range []string{sec.Str("cas_number"), sec.Str("molecular_formula"), sec.Str("name"), sec.Str("iupac_name")} {
		if key == "" {
			continue
		}
		if row, found = t.Lookup(key); found {
			break
		}
	}
	if !found {
		return nil
	}
	fill := map[string]any{
		"iupac_name":        row.IUPACName,
		"molecular_formula": row.MolecularFormula,
		"cas_number":        row.CAS,
	}
	if row.CID > 0 {
		fill["pub_chem_cid"] = row.CID
	}
	if row.AntoineA != nil && row.AntoineB != nil && row.AntoineC != nil {
		fill["antoine_a"] = *row.AntoineA
		fill["antoine_b"] = *row.AntoineB
		fill["antoine_c"] = *row.AntoineC
	}
	for name, v := range fill {
		if s, ok := v.(string); (ok && s == "") || sec.Has(name) {
			continue
		}
		if err := sec.Set(name, v); err != nil {
			return err
		}
	}
	return VapourPressure(ctx, pc, sec)
}

// SubstancePlugin installs a substance table as a PureSubstance normalizer.
type SubstancePlugin struct {
	Table *SubstanceTable
}

func (SubstancePlugin) Name() string    { return "substances" }
func (SubstancePlugin) Version() string { return pluginapi.Version }

// Register binds the table lookup to PureSubstance.
func (p SubstancePlugin) Register(reg pluginapi.Registry) error {
	if p.Table == nil {
		return fmt.Errorf("substance table required")
	}
	reg.RegisterNormalizer(schema.PureSubstance, p.Table)
	return nil
}

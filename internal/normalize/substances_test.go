package normalize

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/pkg/domain/schema"
	"elncore/pkg/units"
)

const substanceYAML = `
- names: [TMGa, trimethylgallium]
  iupac_name: trimethylgallane
  molecular_formula: C3H9Ga
  cas: 1445-79-0
  cid: 15051
  antoine_a: 8.07
  antoine_b: 1703
  antoine_c: 273
- names: [water]
  molecular_formula: H2O
  cas: 7732-18-5
`

func TestSubstanceLookup(t *testing.T) {
	table, err := ParseSubstances([]byte(substanceYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	for _, key := range []string{"TMGa", "  trimethylgallium ", "c3h9ga", "1445-79-0"} {
		row, ok := table.Lookup(key)
		require.True(t, ok, key)
		assert.Equal(t, "trimethylgallane", row.IUPACName)
	}
	_, ok := table.Lookup("TEGa")
	assert.False(t, ok)

	var missing *SubstanceTable
	_, ok = missing.Lookup("water")
	assert.False(t, ok)
}

func TestSubstanceTableRejectsDuplicates(t *testing.T) {
	_, err := ParseSubstances([]byte("- names: [a]\n- names: [A]\n"))
	assert.Error(t, err)
	_, err = ParseSubstances([]byte("- unknown: 1\n"))
	assert.Error(t, err)
}

func TestSubstanceNormalizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "substances.yaml")
	require.NoError(t, os.WriteFile(path, []byte(substanceYAML), 0o600))
	table, err := LoadSubstances(path)
	require.NoError(t, err)

	sec := schema.MustNew().MustNew(schema.PureSubstance)
	sec.MustSet("name", "TMGa")
	sec.MustSet("cas_number", "keep-me")
	sec.MustSet("temperature", units.Q(20, "degC"))
	require.NoError(t, table.Normalize(context.Background(), nil, sec))

	assert.Equal(t, "trimethylgallane", sec.Str("iupac_name"))
	assert.Equal(t, "C3H9Ga", sec.Str("molecular_formula"))
	assert.Equal(t, "keep-me", sec.Str("cas_number"))
	cid, _ := sec.Int("pub_chem_cid")
	assert.Equal(t, int64(15051), cid)
	p, ok := sec.Float("vapour_pressure")
	require.True(t, ok)
	want := math.Pow(10, 8.07-1703.0/293.0) * 133.322368
	assert.InDelta(t, want, p, 1e-6*want)

	water := schema.MustNew().MustNew(schema.PureSubstance)
	water.MustSet("molecular_formula", "H2O")
	require.NoError(t, table.Normalize(context.Background(), nil, water))
	assert.Equal(t, "7732-18-5", water.Str("cas_number"))
	assert.False(t, water.Has("iupac_name"))
	assert.False(t, water.Has("antoine_a"))
}

func TestSubstancePluginRegisters(t *testing.T) {
	reg := &recordingRegistry{bound: map[string]int{}}
	require.Error(t, SubstancePlugin{}.Register(reg))
	table, err := ParseSubstances([]byte(substanceYAML))
	require.NoError(t, err)
	require.NoError(t, SubstancePlugin{Table: table}.Register(reg))
	assert.Equal(t, map[string]int{schema.PureSubstance: 1}, reg.bound)
}

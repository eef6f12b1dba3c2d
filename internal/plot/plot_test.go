package plot

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/pkg/domain/schema"
)

func TestValuesDropsNaN(t *testing.T) {
	got := Values([]float64{1, math.NaN(), math.Inf(1), 2})
	assert.Equal(t, []any{1.0, nil, nil, 2.0}, got)
}

func TestFiguresMarshal(t *testing.T) {
	time := []float64{0, 1, 2}
	figs := []Figure{
		LayTecOverview(time, []Series{{Name: "633 nm", Values: []float64{1, 0.5, 2}}}, []float64{300, 310, 320}),
		LayTecTransient("633 nm", time, []float64{1, 0.5, 2}, []float64{math.NaN(), math.NaN()}, 1),
		PPMSResistance([]float64{2, 3}, []Series{{Values: []float64{10, 11}}}),
		PLDMerged([]PLDStep{
			{Name: "pre", Time: []float64{0, 1}, PressurePa: []float64{100, 100}, TemperatureK: []float64{300, 310}},
			{Name: "dep", Start: 2, Time: []float64{0}, PressurePa: []float64{1}, TemperatureK: []float64{900}, PowerW: []float64{1.5}},
		}),
	}
	for _, f := range figs {
		_, err := json.Marshal(f)
		require.NoError(t, err)
		assert.Contains(t, f, "data")
		assert.Contains(t, f, "layout")
		assert.Equal(t, Config(), f["config"])
	}
}

func TestLayTecOverviewConvertsTemperature(t *testing.T) {
	f := LayTecOverview([]float64{0}, nil, []float64{373.15})
	data := f["data"].([]any)
	require.Len(t, data, 1)
	y := data[0].(map[string]any)["y"].([]any)
	assert.InDelta(t, 100, y[0].(float64), 1e-9)
}

func TestUVVisOnlyPresentOrdinates(t *testing.T) {
	labels, figs := UVVis([]float64{500e-9, 600e-9}, map[string][]float64{
		"absorbance":    {0.1, 0.2},
		"transmittance": {0.9, 0.8},
	})
	assert.Equal(t, []string{"transmittance", "absorbance"}, labels)
	require.Len(t, figs, 2)
	x := figs[0]["data"].([]any)[0].(map[string]any)["x"].([]any)
	assert.InDelta(t, 500, x[0].(float64), 1e-6)
}

func TestPLDMergedRulesAndAnnotations(t *testing.T) {
	f := PLDMerged([]PLDStep{
		{Name: "heat", Time: []float64{0, 10}, PressurePa: []float64{1, 1}},
		{Name: "deposit", Start: 10, Time: []float64{0, 5}, PressurePa: []float64{2, 2}},
	})
	layout := f["layout"].(map[string]any)
	assert.Len(t, layout["shapes"], 2)
	notes := layout["annotations"].([]any)
	require.Len(t, notes, 2)
	assert.Equal(t, "deposit", notes[1].(map[string]any)["text"])
	x := f["data"].([]any)[0].(map[string]any)["x"].([]any)
	assert.Equal(t, []any{0.0, 10.0, 10.0, 15.0}, x)
}

func TestReplace(t *testing.T) {
	sec := schema.MustNew().MustNew(schema.Measurement)
	require.NoError(t, Attach(sec, "old", New(nil, map[string]any{})))
	require.NoError(t, Replace(sec, []string{"a", "b"}, []Figure{New(nil, nil), New(nil, nil)}))
	figs := sec.Sub("figures")
	require.Len(t, figs, 2)
	assert.Equal(t, "b", figs[1].Str("label"))
	i, _ := figs[1].Int("index")
	assert.Equal(t, int64(1), i)
	assert.Error(t, Replace(sec, []string{"a"}, nil))
}

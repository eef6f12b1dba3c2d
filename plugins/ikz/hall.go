package ikz

import (
	"context"
	"fmt"
	"math"
	"path"
	"strings"

	"elncore/internal/errs"
	"elncore/internal/formats/hall"
	"elncore/internal/record"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/plugins/internal/pluginkit"
)

// RoomTemperatureResult names the result of a single-field measurement.
const RoomTemperatureResult = "Room Temperature measurement"

var hallSampleFields = map[string]string{
	"Sample ID": "sample_id",
	"Thickness": "sample_thickness",
	"Geometry":  "geometry",
}

var hallStepFields = map[string]string{
	"section": "-",
	"data":    "-",
	"units":   "-",
}

var hallStepTypes = map[string]string{
	hall.TypeIVCurve:             schema.IVCurveMeasurement,
	hall.TypeVariableField:       schema.VariableFieldMeasurement,
	hall.TypeVariableTemperature: schema.VariableTemperatureMeasurement,
}

// hallColumns maps table columns whose field name differs from FieldName.
var hallColumns = map[string]string{
	"Temperature": "temperatures",
}

func parseHall(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	tree, warn, err := hall.Decode(data)
	if err != nil {
		return nil, pluginkit.Fatal(pc, warn, err, "plugins.ikz.hall")
	}
	pluginkit.Report(pc, warn)

	m := pc.Schema().MustNew(schema.HallMeasurement)
	m.MustSet("name", strings.TrimSuffix(path.Base(pc.Mainfile()), path.Ext(pc.Mainfile())))
	m.MustSet("method", "Hall measurement")
	for _, key := range tree.Keys() {
		sec := tree.Tree(key)
		if sec == nil {
			continue
		}
		for _, w := range pluginkit.Apply(m, sec, key, hallSampleFields) {
			pc.Report(w)
		}
	}
	if id := m.Str("sample_id"); id != "" {
		m.MustSet("lab_id", id+" hall")
		if err := pluginkit.AddSample(ctx, pc, m, id); err != nil {
			return nil, errs.WrapFatal(err, "plugins.ikz.hall", "parse")
		}
	}
	for _, mt := range tree.Trees("measurements") {
		step, warn, err := hallStep(m, mt)
		for _, w := range warn {
			pc.Report(w)
		}
		if err != nil {
			pc.Report(errs.Warnf(errs.ErrFileGrammar, "plugins.ikz.hall", "parse", "step %d: %v", stepNumber(mt), err))
			continue
		}
		for _, w := range hallData(step, mt) {
			pc.Report(w)
		}
		if err := hallResults(m, step); err != nil {
			return nil, errs.WrapFatal(err, "plugins.ikz.hall", "results")
		}
	}
	return m, nil
}

func stepNumber(mt *record.Tree) int64 {
	v, _ := mt.Get("step")
	n, _ := v.(int64)
	return n
}

func hallStep(m *domain.Section, mt *record.Tree) (*domain.Section, []error, error) {
	typ, ok := hallStepTypes[mt.Str("measurement_type")]
	if !ok {
		typ = schema.HallMeasurementStep
	}
	step, err := m.NewSubOf("measurements", typ)
	if err != nil {
		return nil, nil, err
	}
	return step, pluginkit.Apply(step, mt, "", hallStepFields), nil
}

// hallData stores the table columns of a measurement as vectors in their
// canonical units.
func hallData(step *domain.Section, mt *record.Tree) []error {
	return pluginkit.Vectors(step, mt.Tree("data"), mt.Tree("units"), hallColumns)
}

// hallResults derives the results of a step. A variable field measurement
// whose field range collapses to one value is a room temperature
// measurement; a variable temperature measurement yields one result per
// temperature.
func hallResults(m, step *domain.Section) error {
	switch step.Type() {
	case schema.VariableFieldMeasurement:
		hi, okHi := step.Float("maximum_field")
		lo, okLo := step.Float("minimum_field")
		if !okHi || !okLo || hi != lo {
			return nil
		}
		r, err := m.NewSubOf("results", schema.HallMeasurementResult)
		if err != nil {
			return err
		}
		r.MustSet("name", RoomTemperatureResult).MustSet("magnetic_field", hi)
		if t, ok := step.Float("temperature"); ok {
			r.MustSet("temperature", t)
		}
		copyMean(r, step, 0)
	case schema.VariableTemperatureMeasurement:
		temps := step.Floats("temperatures")
		for i, t := range temps {
			r, err := m.NewSubOf("results", schema.HallMeasurementResult)
			if err != nil {
				return err
			}
			r.MustSet("name", fmt.Sprintf("%g K measurement", math.Round(t*10)/10)).MustSet("temperature", t)
			copyMean(r, step, i)
		}
	}
	return nil
}

var hallResultFields = [][2]string{
	{"resistivity", "resistivity"},
	{"hall_mobility", "mobility"},
	{"carrier_density", "carrier_concentration"},
	{"hall_coefficient", "hall_coefficient"},
}

// copyMean sets the result values from row i of the step table, or from the
// mean of every row when the step is a single-field measurement.
func copyMean(r, step *domain.Section, i int) {
	single := step.Type() == schema.VariableFieldMeasurement
	for _, f := range hallResultFields {
		v := step.Floats(f[0])
		if len(v) == 0 {
			continue
		}
		var x float64
		switch {
		case single:
			x = mean(v)
		case i < len(v):
			x = v[i]
		default:
			continue
		}
		if !math.IsNaN(x) {
			r.MustSet(f[1], x)
		}
	}
}

func mean(v []float64) float64 {
	var sum float64
	n := 0
	for _, x := range v {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

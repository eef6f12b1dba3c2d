package plot

import (
	"fmt"
	"math"
)

// Series is a named y series.
type Series struct {
	Name   string
	Values []float64
}

// LayTecOverview stacks reflectance transients over the pyrometer
// temperature on a shared time axis. Temperature is plotted in degC.
func LayTecOverview(time []float64, reflectance []Series, temperatureK []float64) Figure {
	var data []map[string]any
	for _, s := range reflectance {
		t := Scatter(s.Name, time, s.Values)
		t["xaxis"], t["yaxis"] = "x", "y"
		data = append(data, t)
	}
	if len(temperatureK) > 0 {
		c := make([]float64, len(temperatureK))
		for i, v := range temperatureK {
			c[i] = v - 273.15
		}
		t := Scatter("pyrometer temperature", time, c)
		t["xaxis"], t["yaxis"] = "x", "y2"
		data = append(data, t)
	}
	layout := map[string]any{
		"title":      map[string]any{"text": "Reflectance and temperature"},
		"grid":       map[string]any{"rows": 2, "columns": 1, "pattern": "coupled"},
		"xaxis":      Axis("time (s)"),
		"yaxis":      withDomain(Axis("reflectance (normalized)"), 0.52, 1),
		"yaxis2":     withDomain(Axis("temperature (°C)"), 0, 0.48),
		"showlegend": true,
	}
	return New(data, layout)
}

func withDomain(axis map[string]any, lo, hi float64) map[string]any {
	axis["domain"] = []any{lo, hi}
	return axis
}

// LayTecTransient plots one reflectance transient with its autocorrelated
// intensity beneath. smoothed starts at sample start of the transient.
func LayTecTransient(name string, time, raw, smoothed []float64, start int) Figure {
	var sx []float64
	if start >= 0 && start < len(time) {
		sx = time[start:]
		if len(smoothed) < len(sx) {
			sx = sx[:len(smoothed)]
		}
	}
	top := Scatter(name, time, raw)
	top["yaxis"] = "y"
	bottom := Scatter(name+" autocorrelated", sx, smoothed)
	bottom["yaxis"] = "y2"
	layout := map[string]any{
		"title":  map[string]any{"text": name},
		"grid":   map[string]any{"rows": 2, "columns": 1, "pattern": "coupled"},
		"xaxis":  Axis("time (s)"),
		"yaxis":  withDomain(Axis("intensity"), 0.52, 1),
		"yaxis2": withDomain(Axis("autocorrelated intensity"), 0, 0.48),
	}
	return New([]map[string]any{top, bottom}, layout)
}

// UVVis plots each ordinate present over the wavelength in nm, one figure
// per ordinate, in the order transmittance, absorbance, extinction
// coefficient. The wavelength is given in m.
func UVVis(wavelength []float64, ordinates map[string][]float64) ([]string, []Figure) {
	nm := Scale(wavelength, 1e9)
	var labels []string
	var figs []Figure
	for _, o := range []struct{ key, title string }{
		{"transmittance", "transmittance"},
		{"absorbance", "absorbance"},
		{"extinction_coefficient", "extinction coefficient (1/m)"},
	} {
		y, ok := ordinates[o.key]
		if !ok || len(y) == 0 {
			continue
		}
		layout := map[string]any{
			"title": map[string]any{"text": o.title},
			"xaxis": Axis("wavelength (nm)"),
			"yaxis": Axis(o.title),
		}
		labels = append(labels, o.key)
		figs = append(figs, New([]map[string]any{Scatter(o.key, nm, y)}, layout))
	}
	return labels, figs
}

// PLDStep is one deposition step's time series. Time counts seconds from
// the start of the step.
type PLDStep struct {
	Name         string
	Start        float64
	Time         []float64
	PressurePa   []float64
	TemperatureK []float64
	PowerW       []float64
}

// PLDMerged stitches the steps onto one time axis: pressure in mbar on a
// log axis, temperature in degC and laser power in W. Step boundaries are
// vertical rules annotated with the step name.
func PLDMerged(steps []PLDStep) Figure {
	var t, p, temp, pow []float64
	var shapes, notes []any
	for _, s := range steps {
		for i := range s.Time {
			t = append(t, s.Start+s.Time[i])
			p = append(p, at(s.PressurePa, i)/100)
			temp = append(temp, at(s.TemperatureK, i)-273.15)
			pow = append(pow, at(s.PowerW, i))
		}
		shapes = append(shapes, map[string]any{
			"type": "line", "xref": "x", "yref": "paper",
			"x0": s.Start, "x1": s.Start, "y0": 0, "y1": 1,
			"line": map[string]any{"dash": "dot", "width": 1},
		})
		notes = append(notes, map[string]any{
			"x": s.Start, "y": 1, "xref": "x", "yref": "paper",
			"text": s.Name, "showarrow": false, "xanchor": "left", "textangle": -90,
		})
	}
	pt := Scatter("pressure", t, p)
	tt := Scatter("temperature", t, temp)
	tt["yaxis"] = "y2"
	wt := Scatter("laser power", t, pow)
	wt["yaxis"] = "y3"
	y2 := Axis("temperature (°C)")
	y2["overlaying"], y2["side"] = "y", "right"
	y3 := Axis("power (W)")
	y3["overlaying"], y3["side"], y3["anchor"], y3["position"] = "y", "right", "free", 1.0
	py := Axis("pressure (mbar)")
	py["type"] = "log"
	layout := map[string]any{
		"title":       map[string]any{"text": "Deposition"},
		"xaxis":       withDomain(Axis("time (s)"), 0, 0.9),
		"yaxis":       py,
		"yaxis2":      y2,
		"yaxis3":      y3,
		"shapes":      shapes,
		"annotations": notes,
	}
	return New([]map[string]any{pt, tt, wt}, layout)
}

func at(v []float64, i int) float64 {
	if i < len(v) {
		return v[i]
	}
	return math.NaN()
}

// PPMSResistance plots the resistance of each channel over temperature.
func PPMSResistance(temperatureK []float64, channels []Series) Figure {
	data := make([]map[string]any, 0, len(channels))
	for i, c := range channels {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("channel %d", i+1)
		}
		tr := Scatter(name, temperatureK, c.Values)
		tr["mode"] = "markers"
		data = append(data, tr)
	}
	layout := map[string]any{
		"title":      map[string]any{"text": "Resistance"},
		"xaxis":      Axis("temperature (K)"),
		"yaxis":      Axis("resistance (Ω)"),
		"showlegend": true,
	}
	return New(data, layout)
}

// Package plot builds figure descriptors: JSON objects with data, layout and
// config keys that the ELN front end renders as interactive plots.
package plot

import (
	"fmt"
	"math"

	"elncore/pkg/domain"
)

// Figure is a figure descriptor.
type Figure = map[string]any

// Config is attached to every figure.
func Config() map[string]any {
	return map[string]any{
		"displaylogo": false,
		"responsive":  true,
		"scrollZoom":  true,
	}
}

// New assembles a descriptor from traces and a layout.
func New(data []map[string]any, layout map[string]any) Figure {
	traces := make([]any, len(data))
	for i, d := range data {
		traces[i] = d
	}
	return Figure{"data": traces, "layout": layout, "config": Config()}
}

// Values renders a series for JSON. NaN and infinities become null.
func Values(v []float64) []any {
	out := make([]any, len(v))
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		out[i] = x
	}
	return out
}

// Scatter is a line trace of y over x.
func Scatter(name string, x, y []float64) map[string]any {
	return map[string]any{
		"type": "scatter",
		"mode": "lines",
		"name": name,
		"x":    Values(x),
		"y":    Values(y),
	}
}

// Axis is an axis layout with a title.
func Axis(title string) map[string]any {
	return map[string]any{"title": map[string]any{"text": title}, "showline": true, "mirror": true}
}

// Scale rescales v by f, for plotting in display units.
func Scale(v []float64, f float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * f
	}
	return out
}

// Attach appends fig to the figures of an activity or result.
func Attach(sec *domain.Section, label string, fig Figure) error {
	idx := int64(len(sec.Sub("figures")))
	f, err := sec.NewSub("figures")
	if err != nil {
		return fmt.Errorf("plot.attach: %s: %w", label, err)
	}
	if err := f.Set("label", label); err != nil {
		return err
	}
	if err := f.Set("index", idx); err != nil {
		return err
	}
	return f.Set("figure", fig)
}

// Replace drops existing figures of sec before attaching figs in order.
func Replace(sec *domain.Section, labels []string, figs []Figure) error {
	if len(labels) != len(figs) {
		return fmt.Errorf("plot.replace: %d labels for %d figures", len(labels), len(figs))
	}
	sec.ClearSub("figures")
	for i := range figs {
		if err := Attach(sec, labels[i], figs[i]); err != nil {
			return err
		}
	}
	return nil
}

package normalize

import (
	"context"
	"math"

	"elncore/pkg/domain"
	"elncore/pkg/pluginapi"
)

// RollingWindow is the width of the reflectance smoothing window.
const RollingWindow = 30

// RollingMean returns the trailing mean over width samples. The first
// width-1 outputs, and every output whose window holds a NaN, are NaN.
func RollingMean(v []float64, width int) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		if i < width-1 {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		for _, x := range v[i-width+1 : i+1] {
			sum += x
		}
		out[i] = sum / float64(width)
	}
	return out
}

// Autocorrelate smooths raw over the window [start, start+period). A
// non-positive period, or one running past the trace, extends the window
// to the end of the trace.
func Autocorrelate(raw []float64, start, period int) []float64 {
	if start < 0 || start >= len(raw) {
		return nil
	}
	end := len(raw)
	if period > 0 && start+period < end {
		end = start + period
	}
	return RollingMean(raw[start:end], RollingWindow)
}

// SmoothReflectance fills autocorrelated_intensity of every reflectance
// transient of a LayTec result.
func SmoothReflectance(_ context.Context, _ pluginapi.Context, sec *domain.Section) error {
	for _, tr := range sec.Sub("reflectance_wavelengths") {
		raw := tr.Floats("raw_intensity")
		if len(raw) == 0 {
			continue
		}
		start, _ := tr.Int("autocorrelation_starting_point")
		period, ok := tr.Int("autocorrelation_period")
		if !ok {
			period = int64(len(raw)) - start
		}
		smoothed := Autocorrelate(raw, int(start), int(period))
		if smoothed == nil {
			continue
		}
		if err := tr.Set("autocorrelated_intensity", smoothed); err != nil {
			return err
		}
	}
	return nil
}

package normalize

import (
	"context"
	"math"
	"time"

	"elncore/pkg/domain"
	"elncore/pkg/pluginapi"
)

// StepStartTimes returns the start of each step when the first starts at
// start and each lasts durations[i] seconds.
func StepStartTimes(start time.Time, durations []float64) []time.Time {
	out := make([]time.Time, len(durations))
	at := start
	for i, d := range durations {
		out[i] = at
		at = at.Add(time.Duration(d * float64(time.Second)))
	}
	return out
}

// StepChronology derives missing step start times of an activity from the
// first step's start time, or the activity datetime, and the durations of
// the preceding steps. Derivation stops at the first step without a
// duration. When every duration is known, end_time is filled too.
func StepChronology(_ context.Context, _ pluginapi.Context, sec *domain.Section) error {
	steps := sec.Sub("steps")
	if len(steps) == 0 {
		return nil
	}
	start, ok := steps[0].Time("start_time")
	if !ok {
		if start, ok = sec.Time("datetime"); !ok {
			return nil
		}
	}
	var durations []float64
	for _, s := range steps {
		d, ok := s.Float("duration")
		if !ok || math.IsNaN(d) {
			break
		}
		durations = append(durations, d)
	}
	// One start past the known durations: the start of the first step
	// without a duration, or the end of the activity.
	starts := StepStartTimes(start, append(durations, 0))
	for i := 0; i < len(steps) && i < len(starts); i++ {
		if steps[i].Has("start_time") {
			continue
		}
		if err := steps[i].Set("start_time", starts[i]); err != nil {
			return err
		}
	}
	if len(durations) == len(steps) && !sec.Has("end_time") {
		if err := sec.Set("end_time", starts[len(steps)]); err != nil {
			return err
		}
	}
	return nil
}

package analytics

import (
	"math"
	"time"
)

// Window length bounds in minutes. Requests outside the range are clamped,
// not rejected, so a user-entered value never hard-fails an evaluation.
const (
	MinWindowMinutes = 5
	MaxWindowMinutes = 60
)

// ClampWindowMinutes forces a requested window length into [5, 60].
func ClampWindowMinutes(minutes int) int {
	if minutes < MinWindowMinutes {
		return MinWindowMinutes
	}
	if minutes > MaxWindowMinutes {
		return MaxWindowMinutes
	}
	return minutes
}

// RollingStats is a windowed baseline for one metric at one evaluation
// instant. It is undefined (reported via the ok return of WindowStats and
// BaselineStats) when fewer than two values fall inside the window.
type RollingStats struct {
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"stddev"`
	SampleCount   int     `json:"sample_count"`
	WindowMinutes int     `json:"window_minutes"`
}

// WindowStats computes mean and sample standard deviation of a metric over
// samples with timestamps in [at - window, at]. Missing values are skipped.
// The history does not need uniform spacing; this is a plain windowed
// statistic over whatever samples exist. The second return is false when
// fewer than two values are available.
func WindowStats(history []Sample, metric Metric, at time.Time, windowMinutes int) (RollingStats, bool) {
	return windowStats(history, metric, at, windowMinutes, true)
}

// BaselineStats is WindowStats over [at - window, at): it excludes any sample
// at the evaluation instant itself, so a value under anomaly test never
// contributes to its own baseline.
func BaselineStats(history []Sample, metric Metric, at time.Time, windowMinutes int) (RollingStats, bool) {
	return windowStats(history, metric, at, windowMinutes, false)
}

func windowStats(history []Sample, metric Metric, at time.Time, windowMinutes int, includeEnd bool) (RollingStats, bool) {
	windowMinutes = ClampWindowMinutes(windowMinutes)
	cutoff := at.Add(-time.Duration(windowMinutes) * time.Minute)

	values := make([]float64, 0, len(history))
	for _, sample := range history {
		ts := sample.TS()
		if ts.Before(cutoff) || ts.After(at) {
			continue
		}
		if !includeEnd && ts.Equal(at) {
			continue
		}
		if value, ok := sample.Value(metric); ok {
			values = append(values, value)
		}
	}

	stats := RollingStats{SampleCount: len(values), WindowMinutes: windowMinutes}
	if len(values) < 2 {
		return stats, false
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	// Sample variance with Bessel's correction.
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	variance := sumSq / float64(len(values)-1)

	stats.Mean = mean
	stats.StdDev = math.Sqrt(variance)
	return stats, true
}

package analytics

// Band is a severity classification from static domain thresholds,
// independent of rolling statistics.
type Band string

const (
	BandNormal   Band = "NORMAL"
	BandWarning  Band = "WARNING"
	BandCritical Band = "CRITICAL"
	// BandUnknown marks a metric whose value is missing. Unknown data ranks
	// above confirmed-normal and below confirmed-warning, so sensor dropout
	// surfaces without masking real faults.
	BandUnknown Band = "UNKNOWN"
)

// Severity ranks bands for aggregation: CRITICAL > WARNING > UNKNOWN > NORMAL.
func (b Band) Severity() int {
	switch b {
	case BandCritical:
		return 3
	case BandWarning:
		return 2
	case BandUnknown:
		return 1
	default:
		return 0
	}
}

// WorstBand returns the most severe band. With no inputs it returns UNKNOWN.
func WorstBand(bands ...Band) Band {
	if len(bands) == 0 {
		return BandUnknown
	}
	worst := bands[0]
	for _, band := range bands[1:] {
		if band.Severity() > worst.Severity() {
			worst = band
		}
	}
	return worst
}

// BandRange is a closed interval of values.
type BandRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether the value lies within the range, inclusive.
func (r BandRange) Contains(value float64) bool {
	return value >= r.Min && value <= r.Max
}

// BandThresholds are the static band boundaries for one metric. The normal
// range must lie within the warning range; values outside the warning range
// are critical. Each boundary is inclusive on the side closer to Normal, so
// every value maps to exactly one band.
type BandThresholds struct {
	Normal  BandRange `json:"normal"`
	Warning BandRange `json:"warning"`
}

// Validate checks that the ranges are ordered and nested.
func (t BandThresholds) Validate() error {
	if t.Normal.Min > t.Normal.Max || t.Warning.Min > t.Warning.Max {
		return ErrInvalidBandRange
	}
	if t.Normal.Min < t.Warning.Min || t.Normal.Max > t.Warning.Max {
		return ErrBandRangesDisjoint
	}
	return nil
}

// Classify maps a value to exactly one of NORMAL, WARNING, CRITICAL.
func (t BandThresholds) Classify(value float64) Band {
	if t.Normal.Contains(value) {
		return BandNormal
	}
	if t.Warning.Contains(value) {
		return BandWarning
	}
	return BandCritical
}

// BandTable maps metrics to their static band boundaries. It is configuration
// data supplied by the deploying engineer, never hardwired.
type BandTable map[Metric]BandThresholds

// Validate checks every entry and rejects untracked metrics.
func (t BandTable) Validate() error {
	for metric, thresholds := range t {
		if !metric.Valid() {
			return ErrUnknownMetric
		}
		if err := thresholds.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ClassifyValue maps a possibly-missing metric value to a band. A missing
// value, or a metric without configured thresholds, classifies to UNKNOWN —
// never silently to NORMAL.
func (t BandTable) ClassifyValue(metric Metric, value float64, present bool) Band {
	if !present {
		return BandUnknown
	}
	thresholds, ok := t[metric]
	if !ok {
		return BandUnknown
	}
	return thresholds.Classify(value)
}

// ClassifySample classifies every tracked metric of a sample.
func (t BandTable) ClassifySample(sample Sample) map[Metric]Band {
	status := make(map[Metric]Band, len(TrackedMetrics()))
	for _, metric := range TrackedMetrics() {
		value, ok := sample.Value(metric)
		status[metric] = t.ClassifyValue(metric, value, ok)
	}
	return status
}

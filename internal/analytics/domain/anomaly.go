package analytics

import "math"

// DefaultAnomalyThreshold is the z-score magnitude beyond which a value is
// flagged anomalous unless configured otherwise.
const DefaultAnomalyThreshold = 2.5

// AnomalyFlag is the detector verdict for one metric value against its
// rolling baseline.
type AnomalyFlag struct {
	IsAnomalous bool    `json:"is_anomalous"`
	ZScore      float64 `json:"z_score"`
	Threshold   float64 `json:"threshold"`
}

// Detector tests a value against a defined rolling baseline. Callers must
// not invoke it with an undefined baseline; insufficient history is an
// unknown state, not a detector result.
type Detector interface {
	Detect(value float64, baseline RollingStats) AnomalyFlag
}

// ZScoreDetector flags values whose deviation from the baseline mean exceeds
// a configured multiple of the baseline standard deviation.
type ZScoreDetector struct {
	threshold float64
}

// NewZScoreDetector builds a detector. Non-positive thresholds fall back to
// the default.
func NewZScoreDetector(threshold float64) ZScoreDetector {
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}
	return ZScoreDetector{threshold: threshold}
}

// Threshold returns the configured z-score threshold.
func (d ZScoreDetector) Threshold() float64 { return d.threshold }

// Detect computes z = (value - mean) / stddev. A perfectly flat baseline
// (stddev == 0) is never anomalous, regardless of the value.
func (d ZScoreDetector) Detect(value float64, baseline RollingStats) AnomalyFlag {
	flag := AnomalyFlag{Threshold: d.threshold}
	if baseline.StdDev == 0 {
		return flag
	}
	flag.ZScore = (value - baseline.Mean) / baseline.StdDev
	flag.IsAnomalous = math.Abs(flag.ZScore) > d.threshold
	return flag
}

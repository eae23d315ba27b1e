package analytics

import (
	"math"
	"time"
)

// Metric identifies a tracked series derived from sensor readings.
type Metric string

const (
	MetricTemperature  Metric = "temperature"
	MetricHumidity     Metric = "humidity"
	MetricHeatIndex    Metric = "heat_index"
	MetricVibrationRMS Metric = "vibration_rms"
)

// Raw field keys as they appear in ingested records.
const (
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldHeatIndex   = "heat_index"
	FieldAccelX      = "accel_x"
	FieldAccelY      = "accel_y"
	FieldAccelZ      = "accel_z"
	FieldGyroX       = "gyro_x"
	FieldGyroY       = "gyro_y"
	FieldGyroZ       = "gyro_z"
)

// TrackedMetrics returns the metrics evaluated by the engine, in display order.
func TrackedMetrics() []Metric {
	return []Metric{MetricTemperature, MetricHumidity, MetricHeatIndex, MetricVibrationRMS}
}

// Valid reports whether the metric is one of the tracked series.
func (m Metric) Valid() bool {
	switch m {
	case MetricTemperature, MetricHumidity, MetricHeatIndex, MetricVibrationRMS:
		return true
	default:
		return false
	}
}

// Sample is one sensor reading at one timestamp. It is immutable once
// constructed: derived values are computed at construction and cached.
// Absent or non-finite input fields are normalized to missing, never zero.
type Sample struct {
	ts time.Time

	temperature *float64
	humidity    *float64
	heatIndex   *float64

	accelX *float64
	accelY *float64
	accelZ *float64
	gyroX  *float64
	gyroY  *float64
	gyroZ  *float64

	vibrationRMS *float64
}

// NewSample builds a sample from a flat record of named numeric fields.
// Unrecognized fields are ignored. NaN and infinite values are treated
// as sensor dropout.
func NewSample(ts time.Time, fields map[string]float64) (Sample, error) {
	if ts.IsZero() {
		return Sample{}, ErrZeroTimestamp
	}

	s := Sample{ts: ts.UTC()}
	for key, value := range fields {
		normalized := normalizeReading(value)
		switch key {
		case FieldTemperature:
			s.temperature = normalized
		case FieldHumidity:
			s.humidity = normalized
		case FieldHeatIndex:
			s.heatIndex = normalized
		case FieldAccelX:
			s.accelX = normalized
		case FieldAccelY:
			s.accelY = normalized
		case FieldAccelZ:
			s.accelZ = normalized
		case FieldGyroX:
			s.gyroX = normalized
		case FieldGyroY:
			s.gyroY = normalized
		case FieldGyroZ:
			s.gyroZ = normalized
		}
	}

	if s.accelX != nil && s.accelY != nil && s.accelZ != nil {
		rms := VibrationRMS(*s.accelX, *s.accelY, *s.accelZ)
		s.vibrationRMS = &rms
	}
	return s, nil
}

// TS returns the sample timestamp.
func (s Sample) TS() time.Time { return s.ts }

// Before orders samples by timestamp only.
func (s Sample) Before(other Sample) bool { return s.ts.Before(other.ts) }

// Value returns the sample's value for a tracked metric.
func (s Sample) Value(metric Metric) (float64, bool) {
	switch metric {
	case MetricTemperature:
		return deref(s.temperature)
	case MetricHumidity:
		return deref(s.humidity)
	case MetricHeatIndex:
		return deref(s.heatIndex)
	case MetricVibrationRMS:
		return deref(s.vibrationRMS)
	default:
		return 0, false
	}
}

// Temperature returns the temperature reading if present.
func (s Sample) Temperature() (float64, bool) { return deref(s.temperature) }

// Humidity returns the humidity reading if present.
func (s Sample) Humidity() (float64, bool) { return deref(s.humidity) }

// HeatIndex returns the heat index reading if present.
func (s Sample) HeatIndex() (float64, bool) { return deref(s.heatIndex) }

// Accel returns the acceleration triple if all three axes are present.
func (s Sample) Accel() (x, y, z float64, ok bool) {
	if s.accelX == nil || s.accelY == nil || s.accelZ == nil {
		return 0, 0, 0, false
	}
	return *s.accelX, *s.accelY, *s.accelZ, true
}

// Gyro returns the angular rate triple if all three axes are present.
func (s Sample) Gyro() (x, y, z float64, ok bool) {
	if s.gyroX == nil || s.gyroY == nil || s.gyroZ == nil {
		return 0, 0, 0, false
	}
	return *s.gyroX, *s.gyroY, *s.gyroZ, true
}

// VibrationRMS returns the cached derived vibration magnitude if present.
func (s Sample) VibrationRMS() (float64, bool) { return deref(s.vibrationRMS) }

// SampleRecord is the plain-data rendering of a sample for display layers.
// Nil fields mean sensor dropout.
type SampleRecord struct {
	TS           time.Time `json:"ts"`
	Temperature  *float64  `json:"temperature,omitempty"`
	Humidity     *float64  `json:"humidity,omitempty"`
	HeatIndex    *float64  `json:"heat_index,omitempty"`
	AccelX       *float64  `json:"accel_x,omitempty"`
	AccelY       *float64  `json:"accel_y,omitempty"`
	AccelZ       *float64  `json:"accel_z,omitempty"`
	GyroX        *float64  `json:"gyro_x,omitempty"`
	GyroY        *float64  `json:"gyro_y,omitempty"`
	GyroZ        *float64  `json:"gyro_z,omitempty"`
	VibrationRMS *float64  `json:"vibration_rms,omitempty"`
}

// Record returns a copy of the sample with exported fields.
func (s Sample) Record() SampleRecord {
	return SampleRecord{
		TS:           s.ts,
		Temperature:  copyValue(s.temperature),
		Humidity:     copyValue(s.humidity),
		HeatIndex:    copyValue(s.heatIndex),
		AccelX:       copyValue(s.accelX),
		AccelY:       copyValue(s.accelY),
		AccelZ:       copyValue(s.accelZ),
		GyroX:        copyValue(s.gyroX),
		GyroY:        copyValue(s.gyroY),
		GyroZ:        copyValue(s.gyroZ),
		VibrationRMS: copyValue(s.vibrationRMS),
	}
}

func normalizeReading(value float64) *float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	v := value
	return &v
}

func deref(value *float64) (float64, bool) {
	if value == nil {
		return 0, false
	}
	return *value, true
}

func copyValue(value *float64) *float64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

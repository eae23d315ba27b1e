package analytics

import (
	"math"
	"testing"
	"time"
)

func TestNewSampleRequiresTimestamp(t *testing.T) {
	_, err := NewSample(time.Time{}, map[string]float64{FieldTemperature: 20})
	if err != ErrZeroTimestamp {
		t.Fatalf("expected ErrZeroTimestamp, got %v", err)
	}
}

func TestNewSampleNormalizesNonFinite(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sample, err := NewSample(ts, map[string]float64{
		FieldTemperature: math.NaN(),
		FieldHumidity:    math.Inf(1),
		FieldHeatIndex:   math.Inf(-1),
		FieldAccelX:      1,
		FieldAccelY:      math.NaN(),
		FieldAccelZ:      0,
	})
	if err != nil {
		t.Fatalf("new sample: %v", err)
	}

	if _, ok := sample.Temperature(); ok {
		t.Fatal("NaN temperature should be missing")
	}
	if _, ok := sample.Humidity(); ok {
		t.Fatal("+Inf humidity should be missing")
	}
	if _, ok := sample.HeatIndex(); ok {
		t.Fatal("-Inf heat index should be missing")
	}
	if _, ok := sample.VibrationRMS(); ok {
		t.Fatal("vibration must be missing when an axis is non-finite")
	}
}

func TestVibrationRMSMissingAxis(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sample, err := NewSample(ts, map[string]float64{
		FieldAccelX: 0.5,
		FieldAccelZ: 1.0,
	})
	if err != nil {
		t.Fatalf("new sample: %v", err)
	}
	if _, ok := sample.VibrationRMS(); ok {
		t.Fatal("vibration must be missing when an axis is absent")
	}
	if _, _, _, ok := sample.Accel(); ok {
		t.Fatal("accel triple must be incomplete")
	}
}

func TestVibrationRMSExactValues(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sample, err := NewSample(ts, map[string]float64{
		FieldAccelX: 1, FieldAccelY: 1, FieldAccelZ: 1,
	})
	if err != nil {
		t.Fatalf("new sample: %v", err)
	}
	rms, ok := sample.VibrationRMS()
	if !ok || rms != 1.0 {
		t.Fatalf("expected rms 1.0 for (1,1,1), got %v ok=%v", rms, ok)
	}

	zero, err := NewSample(ts, map[string]float64{
		FieldAccelX: 0, FieldAccelY: 0, FieldAccelZ: 0,
	})
	if err != nil {
		t.Fatalf("new sample: %v", err)
	}
	rms, ok = zero.VibrationRMS()
	if !ok || rms != 0.0 {
		t.Fatalf("expected rms 0.0 for zero triple, got %v ok=%v", rms, ok)
	}
}

func TestVibrationRMSNonNegative(t *testing.T) {
	triples := [][3]float64{
		{-1, 2, -3},
		{0.1, -0.1, 0},
		{-5, -5, -5},
	}
	for _, triple := range triples {
		rms := VibrationRMS(triple[0], triple[1], triple[2])
		if rms < 0 {
			t.Fatalf("rms must be non-negative, got %v for %v", rms, triple)
		}
		if rms == 0 {
			t.Fatalf("rms must be zero only for the zero triple, got 0 for %v", triple)
		}
	}
}

func TestSampleValueDispatch(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sample, err := NewSample(ts, map[string]float64{
		FieldTemperature: 60,
		FieldAccelX:      3, FieldAccelY: 0, FieldAccelZ: 0,
	})
	if err != nil {
		t.Fatalf("new sample: %v", err)
	}

	if v, ok := sample.Value(MetricTemperature); !ok || v != 60 {
		t.Fatalf("temperature value: got %v ok=%v", v, ok)
	}
	if _, ok := sample.Value(MetricHumidity); ok {
		t.Fatal("humidity should be missing")
	}
	rms, ok := sample.Value(MetricVibrationRMS)
	if !ok {
		t.Fatal("vibration should be present")
	}
	want := math.Sqrt(3)
	if math.Abs(rms-want) > 1e-12 {
		t.Fatalf("vibration rms: got %v want %v", rms, want)
	}
	if _, ok := sample.Value(Metric("bogus")); ok {
		t.Fatal("unknown metric must report missing")
	}
}

func TestSampleRecordCopies(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sample, err := NewSample(ts, map[string]float64{FieldTemperature: 42})
	if err != nil {
		t.Fatalf("new sample: %v", err)
	}

	record := sample.Record()
	if record.Temperature == nil || *record.Temperature != 42 {
		t.Fatalf("record temperature: got %v", record.Temperature)
	}
	*record.Temperature = 100
	if v, _ := sample.Temperature(); v != 42 {
		t.Fatal("mutating the record must not affect the sample")
	}
	if record.Humidity != nil {
		t.Fatal("missing field must stay nil in the record")
	}
}

package robot

import (
	"math"
	"testing"
)

func TestMotorCalibration_Radians(t *testing.T) {
	cal := MotorCalibration{
		RangeMin: 0,
		RangeMax: 4096,
	}

	tests := []struct {
		raw      int
		mode     int
		expected float64
	}{
		{2048, 0, 0},            // center -> 0
		{3072, 0, math.Pi / 2},  // quarter turn up
		{1024, 0, -math.Pi / 2}, // quarter turn down
		{4096, 0, math.Pi},      // max -> half turn
		{3072, 1, -math.Pi / 2}, // inverted drive mode
	}

	for _, tt := range tests {
		cal.DriveMode = tt.mode
		got := cal.Radians(tt.raw)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("Radians(%d) mode %d = %f, want %f", tt.raw, tt.mode, got, tt.expected)
		}
	}
}

func TestMotorCalibration_Raw(t *testing.T) {
	cal := MotorCalibration{
		RangeMin: 1000,
		RangeMax: 3096,
	}

	tests := []struct {
		rad      float64
		expected int
	}{
		{0, 2048},
		{math.Pi / 2, 3072},
		{-math.Pi / 2, 1024},
		{10, 3096}, // clamped to max
		{-10, 1000},
	}

	for _, tt := range tests {
		got := cal.Raw(tt.rad)
		if got != tt.expected {
			t.Errorf("Raw(%f) = %d, want %d", tt.rad, got, tt.expected)
		}
	}
}

func TestMotorCalibration_RoundTrip(t *testing.T) {
	cal := MotorCalibration{
		RangeMin: 823,
		RangeMax: 3540,
	}

	// Test round-trip: raw -> radians -> raw
	for raw := cal.RangeMin; raw <= cal.RangeMax; raw += 100 {
		rad := cal.Radians(raw)
		back := cal.Raw(rad)
		if math.Abs(float64(back-raw)) > 1 {
			t.Errorf("Round-trip failed: %d -> %f -> %d", raw, rad, back)
		}
	}
}

func TestCalibration_Limits(t *testing.T) {
	cal := Calibration{
		ShoulderPan: MotorCalibration{ID: 1, RangeMin: 1024, RangeMax: 3072},
		Gripper:     MotorCalibration{ID: 6, RangeMin: 1024, RangeMax: 3072, DriveMode: 1},
	}

	lo, hi := cal.Limits([]MotorName{ShoulderPan, ElbowFlex, Gripper})
	want := [][2]float64{
		{-math.Pi / 2, math.Pi / 2},
		{0, 0}, // not calibrated
		{-math.Pi / 2, math.Pi / 2},
	}
	for i, w := range want {
		if math.Abs(lo[i]-w[0]) > 1e-9 || math.Abs(hi[i]-w[1]) > 1e-9 {
			t.Errorf("Limits()[%d] = [%f, %f], want [%f, %f]", i, lo[i], hi[i], w[0], w[1])
		}
	}
}

func TestCalibration_MotorIDs(t *testing.T) {
	cal := Calibration{
		ShoulderPan:  MotorCalibration{ID: 1},
		ShoulderLift: MotorCalibration{ID: 2},
		ElbowFlex:    MotorCalibration{ID: 3},
		WristFlex:    MotorCalibration{ID: 4},
		WristRoll:    MotorCalibration{ID: 5},
		Gripper:      MotorCalibration{ID: 6},
	}

	ids := cal.MotorIDs()
	expected := []int{1, 2, 3, 4, 5, 6}

	if len(ids) != len(expected) {
		t.Fatalf("MotorIDs returned %d IDs, want %d", len(ids), len(expected))
	}

	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("MotorIDs()[%d] = %d, want %d", i, id, expected[i])
		}
	}
}

func TestCalibration_ByID(t *testing.T) {
	cal := Calibration{
		ShoulderPan: MotorCalibration{ID: 1, RangeMin: 100, RangeMax: 200},
		Gripper:     MotorCalibration{ID: 6, RangeMin: 300, RangeMax: 400},
	}

	// Test finding existing ID
	name, mc, ok := cal.ByID(1)
	if !ok {
		t.Fatal("ByID(1) returned false")
	}
	if name != ShoulderPan {
		t.Errorf("ByID(1) returned name %s, want shoulder_pan", name)
	}
	if mc.RangeMin != 100 {
		t.Errorf("ByID(1) returned wrong calibration: %+v", mc)
	}

	// Test non-existing ID
	_, _, ok = cal.ByID(99)
	if ok {
		t.Error("ByID(99) should return false")
	}
}

package robot

import "math"

// StepsPerRevolution is the encoder resolution of the STS3215 servos.
const StepsPerRevolution = 4096

// MotorCalibration holds calibration data for a single motor.
type MotorCalibration struct {
	ID           int `json:"id"`
	DriveMode    int `json:"drive_mode"`
	HomingOffset int `json:"homing_offset"`
	RangeMin     int `json:"range_min"`
	RangeMax     int `json:"range_max"`
}

// Calibration holds calibration data for all motors, keyed by motor name.
type Calibration map[MotorName]MotorCalibration

func (c MotorCalibration) center() float64 {
	return float64(c.RangeMin+c.RangeMax) / 2
}

func (c MotorCalibration) sign() float64 {
	if c.DriveMode == 1 {
		return -1
	}
	return 1
}

// Radians converts a raw servo position to a joint angle in radians,
// zero at the middle of the calibrated range.
func (c MotorCalibration) Radians(raw int) float64 {
	return c.sign() * (float64(raw) - c.center()) * 2 * math.Pi / StepsPerRevolution
}

// Raw converts a joint angle in radians to a raw servo position,
// clamped to the calibrated range.
func (c MotorCalibration) Raw(rad float64) int {
	raw := int(math.Round(c.center() + c.sign()*rad*StepsPerRevolution/(2*math.Pi)))
	if raw < c.RangeMin {
		return c.RangeMin
	}
	if raw > c.RangeMax {
		return c.RangeMax
	}
	return raw
}

// Limits returns the calibrated joint range in radians for motors, in order.
// Motors missing from the calibration get a zero-width range.
func (c Calibration) Limits(motors []MotorName) (lo, hi JointVector) {
	lo, hi = Zeros(len(motors)), Zeros(len(motors))
	for i, name := range motors {
		mc, ok := c[name]
		if !ok {
			continue
		}
		a, b := mc.Radians(mc.RangeMin), mc.Radians(mc.RangeMax)
		lo[i], hi[i] = math.Min(a, b), math.Max(a, b)
	}
	return lo, hi
}

// MotorIDs returns the servo IDs for all motors in the calibration.
func (c Calibration) MotorIDs() []int {
	ids := make([]int, 0, len(c))
	// Use AllMotors() to ensure consistent ordering
	for _, name := range AllMotors() {
		if mc, ok := c[name]; ok {
			ids = append(ids, mc.ID)
		}
	}
	return ids
}

// ByID returns motor name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (MotorName, MotorCalibration, bool) {
	for name, mc := range c {
		if mc.ID == id {
			return name, mc, true
		}
	}
	return "", MotorCalibration{}, false
}

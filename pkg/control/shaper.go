package control

import (
	"math"

	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/gwillem/hapticteleop/pkg/robot"
	"gonum.org/v1/gonum/floats"
)

// ShaperParams are the saturation thresholds of a LoadShaper, in units of the
// weighted L1 load magnitude.
type ShaperParams struct {
	// Min is the noise floor: smaller loads give no feedback
	Min float64 `yaml:"min"`
	// Interp is where feedback reaches the raw load after ramping up from Min
	Interp float64 `yaml:"interp"`
	// Max caps the load magnitude; larger loads are scaled down to it
	Max float64 `yaml:"max"`
	// Alpha is the decay of the feedback magnitude moving average
	Alpha float64 `yaml:"alpha"`
}

// DefaultShaperParams returns the thresholds used on 7-DOF arms.
func DefaultShaperParams() ShaperParams {
	return ShaperParams{
		Min:    4.0,
		Interp: 4.66,
		Max:    60.0,
		Alpha:  0.9,
	}
}

// Validate requires 0 <= Min < Interp <= Max and 0 <= Alpha < 1.
func (p ShaperParams) Validate() error {
	switch {
	case p.Min < 0 || math.IsNaN(p.Min):
		return fault.Configf("shaper min must not be negative, got %v", p.Min)
	case !(p.Interp > p.Min):
		return fault.Configf("shaper interp (%v) must exceed min (%v)", p.Interp, p.Min)
	case !(p.Max >= p.Interp) || math.IsInf(p.Max, 0):
		return fault.Configf("shaper max (%v) must be finite and at least interp (%v)", p.Max, p.Interp)
	case !(p.Alpha >= 0 && p.Alpha < 1):
		return fault.Configf("shaper alpha must be in [0, 1), got %v", p.Alpha)
	}
	return nil
}

// SaturationEvent reports that the load magnitude hit the ceiling and the
// feedback was scaled down. It is informational.
type SaturationEvent struct {
	Total float64 // weighted load magnitude before clamping
	Max   float64
}

// LoadShaper turns an estimated load into feedback torque: it saturates the
// load magnitude, subtracts velocity damping and bounds the damping by the
// larger of the feedback and its recent average.
type LoadShaper struct {
	p       ShaperParams
	weights robot.JointVector
	damping robot.JointVector

	avg      robot.JointVector
	weighted robot.JointVector
	plain    robot.JointVector
	damp     robot.JointVector
	out      robot.JointVector

	onSaturation func(SaturationEvent)
}

// NewLoadShaper returns a shaper for len(weights) joints.
func NewLoadShaper(weights, damping robot.JointVector, p ShaperParams) (*LoadShaper, error) {
	n := len(weights)
	if n == 0 {
		return nil, fault.Configf("load weights are empty")
	}
	if err := robot.CheckLen("load weights", weights, n); err != nil {
		return nil, err
	}
	if err := robot.CheckLen("damping gain", damping, n); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &LoadShaper{
		p:        p,
		weights:  weights.Clone(),
		damping:  damping.Clone(),
		avg:      robot.Zeros(n),
		weighted: robot.Zeros(n),
		plain:    robot.Zeros(n),
		damp:     robot.Zeros(n),
		out:      robot.Zeros(n),
	}, nil
}

// OnSaturation registers fn to be called from Shape whenever the ceiling engages.
func (l *LoadShaper) OnSaturation(fn func(SaturationEvent)) {
	l.onSaturation = fn
}

// Average returns a copy of the feedback magnitude moving average.
func (l *LoadShaper) Average() robot.JointVector {
	return l.avg.Clone()
}

// Shape returns the feedback torque for raw load and joint velocity. Both must
// have the shaper's length. The result is overwritten by the next call.
func (l *LoadShaper) Shape(raw, velocity robot.JointVector) robot.JointVector {
	total := l.saturate(raw)

	floats.MulTo(l.damp, l.damping, velocity)

	a := l.p.Alpha
	for i, f := range l.plain {
		mag := math.Abs(f)
		l.avg[i] = a*l.avg[i] + (1-a)*mag
		m := math.Max(mag, l.avg[i])
		l.out[i] = f - math.Max(-m, math.Min(m, l.damp[i]))
	}

	if total >= l.p.Max && l.onSaturation != nil {
		l.onSaturation(SaturationEvent{Total: total, Max: l.p.Max})
	}
	return l.out
}

// saturate fills l.plain from raw and returns the weighted load magnitude.
func (l *LoadShaper) saturate(raw robot.JointVector) float64 {
	floats.MulTo(l.weighted, l.weights, raw)
	total := floats.Norm(l.weighted, 1)

	var scale float64
	switch {
	case total < l.p.Min:
		scale = 0
	case total < l.p.Interp:
		scale = (total - l.p.Min) / (l.p.Interp - l.p.Min)
	case total < l.p.Max:
		scale = 1
	default:
		scale = l.p.Max / total
	}
	floats.ScaleTo(l.plain, scale, raw)
	return total
}

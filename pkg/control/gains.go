package control

import (
	"errors"

	"github.com/gwillem/hapticteleop/pkg/robot"
)

// Gains are the per-joint constants of a session.
type Gains struct {
	// Assistive scales the operator's push on the leader
	Assistive robot.JointVector `yaml:"assistive"`
	// Regularization scales the joint-limit repulsion on the leader
	Regularization robot.JointVector `yaml:"regularization"`
	// Damping brakes force feedback proportionally to leader velocity
	Damping robot.JointVector `yaml:"damping"`
	// LoadWeights weight each joint in the load magnitude
	LoadWeights robot.JointVector `yaml:"load_weights"`
	// Stiffness and TrackingDamping are the follower impedance gains
	Stiffness       robot.JointVector `yaml:"stiffness"`
	TrackingDamping robot.JointVector `yaml:"tracking_damping"`
}

// Gains tuned on 7-DOF torque-controlled arms.
var (
	defaultAssistive       = []float64{0.26, 0.44, 0.40, 1.11, 1.10, 1.20, 0.85}
	defaultRegularization  = []float64{5.0, 2.2, 1.3, 0.3, 0.1, 0.1, 0.0}
	defaultDamping         = []float64{25.0, 25.0, 25.0, 25.0, 7.5, 4.0, 4.0}
	defaultStiffness       = []float64{40, 30, 50, 25, 35, 25, 10}
	defaultTrackingDamping = []float64{4, 6, 5, 5, 3, 2, 1}
)

// DefaultGains returns the 7-DOF defaults fitted to dof joints: extra joints
// repeat the last (wrist) value, fewer joints keep the leading ones.
func DefaultGains(dof int) Gains {
	return Gains{
		Assistive:       fit(defaultAssistive, dof),
		Regularization:  fit(defaultRegularization, dof),
		Damping:         fit(defaultDamping, dof),
		LoadWeights:     robot.Fill(dof, 1),
		Stiffness:       fit(defaultStiffness, dof),
		TrackingDamping: fit(defaultTrackingDamping, dof),
	}
}

func fit(src []float64, n int) robot.JointVector {
	out := make(robot.JointVector, n)
	for i := range out {
		if i < len(src) {
			out[i] = src[i]
		} else {
			out[i] = src[len(src)-1]
		}
	}
	return out
}

// Validate checks every gain vector has dof finite elements.
func (g Gains) Validate(dof int) error {
	return errors.Join(
		robot.CheckLen("assistive gain", g.Assistive, dof),
		robot.CheckLen("regularization gain", g.Regularization, dof),
		robot.CheckLen("damping gain", g.Damping, dof),
		robot.CheckLen("load weights", g.LoadWeights, dof),
		robot.CheckLen("stiffness", g.Stiffness, dof),
		robot.CheckLen("tracking damping", g.TrackingDamping, dof),
	)
}

package control

import (
	"math"

	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/gwillem/hapticteleop/pkg/robot"
)

const (
	// limitEpsilon keeps the limit repulsion finite exactly at a limit.
	limitEpsilon = 1e-8
	// limitFar caps the distance used for the limit repulsion.
	limitFar = 1e5
)

// Limits are per-joint position limits in radians.
type Limits struct {
	Min robot.JointVector `yaml:"min"`
	Max robot.JointVector `yaml:"max"`
}

// Validate checks both vectors have dof elements and Min < Max per joint.
func (l Limits) Validate(dof int) error {
	if err := robot.CheckLen("min limit", l.Min, dof); err != nil {
		return err
	}
	if err := robot.CheckLen("max limit", l.Max, dof); err != nil {
		return err
	}
	for i := range l.Min {
		if !(l.Min[i] < l.Max[i]) {
			return fault.Configf("joint %d: min limit %v not below max %v", i, l.Min[i], l.Max[i])
		}
	}
	return nil
}

// HumanController is the leader-side policy while a human moves the arm: it
// amplifies the operator's push and softly repels the joints from their limits.
type HumanController struct {
	limits         Limits
	assistive      robot.JointVector
	regularization robot.JointVector
	out            robot.JointVector
}

// NewHumanController returns a controller for len(assistive) joints. A zero
// regularization vector disables the limit repulsion.
func NewHumanController(limits Limits, assistive, regularization robot.JointVector) (*HumanController, error) {
	n := len(assistive)
	if n == 0 {
		return nil, fault.Configf("assistive gain is empty")
	}
	if err := robot.CheckLen("assistive gain", assistive, n); err != nil {
		return nil, err
	}
	if err := robot.CheckLen("regularization gain", regularization, n); err != nil {
		return nil, err
	}
	if err := limits.Validate(n); err != nil {
		return nil, err
	}
	return &HumanController{
		limits:         Limits{Min: limits.Min.Clone(), Max: limits.Max.Clone()},
		assistive:      assistive.Clone(),
		regularization: regularization.Clone(),
		out:            robot.Zeros(n),
	}, nil
}

func (h *HumanController) Kind() robot.PolicyKind {
	return robot.PolicyHuman
}

// Torque returns assistive plus limit-repulsion torque for the sensed external
// torque and joint position. The result is overwritten by the next call.
func (h *HumanController) Torque(external, position robot.JointVector) robot.JointVector {
	for i := range h.out {
		left := 1 / clamp(math.Abs(h.limits.Min[i]-position[i]), limitEpsilon, limitFar)
		right := 1 / clamp(math.Abs(h.limits.Max[i]-position[i]), limitEpsilon, limitFar)
		h.out[i] = -h.assistive[i]*external[i] + h.regularization[i]*(left-right)
	}
	return h.out
}

// Compute implements robot.Policy.
func (h *HumanController) Compute(s robot.State) (robot.Command, error) {
	if err := h.checkState(s); err != nil {
		return robot.Command{}, err
	}
	return robot.Command{Torque: h.Torque(s.ExternalTorque, s.Position)}, nil
}

func (h *HumanController) checkState(s robot.State) error {
	n := len(h.out)
	if len(s.Position) != n || len(s.Velocity) != n || len(s.ExternalTorque) != n {
		return fault.Configf("state has %d/%d/%d joints, controller has %d",
			len(s.Position), len(s.Velocity), len(s.ExternalTorque), n)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Package control implements the per-tick policies of a teleoperation
// session: the leader's human and force feedback controllers, the load
// shaper and the follower's position tracker.
package control

import (
	"fmt"
	"sync/atomic"

	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/gwillem/hapticteleop/pkg/kalman"
	"github.com/gwillem/hapticteleop/pkg/robot"
	"gonum.org/v1/gonum/floats"
)

// ParamReplicationTorques names the follower external torque parameter of a
// ForceFeedbackController.
const ParamReplicationTorques = "replication_torques"

// ForceFeedbackController is the leader policy with force feedback: the
// HumanController torque minus the shaped, filtered load sensed on the follower.
type ForceFeedbackController struct {
	human  *HumanController
	filter *kalman.Filter
	shaper *LoadShaper

	replication *Slot
	enabled     atomic.Bool
	out         robot.JointVector
	feedback    robot.JointVector
}

// NewForceFeedbackController combines the three stages. The filter's current
// estimate seeds the replication torque until the first SetParameter.
func NewForceFeedbackController(human *HumanController, filter *kalman.Filter, shaper *LoadShaper, initial robot.JointVector, enabled bool) (*ForceFeedbackController, error) {
	n := len(human.out)
	if err := robot.CheckLen("initial replication torques", initial, n); err != nil {
		return nil, err
	}
	if filter.Dim() != n {
		return nil, fault.Configf("filter has %d joints, controller has %d", filter.Dim(), n)
	}
	if len(shaper.out) != n {
		return nil, fault.Configf("shaper has %d joints, controller has %d", len(shaper.out), n)
	}
	c := &ForceFeedbackController{
		human:       human,
		filter:      filter,
		shaper:      shaper,
		replication: NewSlot(initial),
		out:         robot.Zeros(n),
		feedback:    robot.Zeros(n),
	}
	c.enabled.Store(enabled)
	return c, nil
}

func (c *ForceFeedbackController) Kind() robot.PolicyKind {
	return robot.PolicyForceFeedback
}

// SetFeedback turns force feedback on or off. The filter keeps running while
// feedback is off so re-enabling does not jump.
func (c *ForceFeedbackController) SetFeedback(on bool) {
	c.enabled.Store(on)
}

// FeedbackEnabled reports whether feedback is applied.
func (c *ForceFeedbackController) FeedbackEnabled() bool {
	return c.enabled.Load()
}

// SetParameter implements robot.ParameterReceiver. The only parameter is
// ParamReplicationTorques.
func (c *ForceFeedbackController) SetParameter(name string, value robot.JointVector) error {
	if name != ParamReplicationTorques {
		return fmt.Errorf("unknown parameter %q", name)
	}
	return c.replication.Store(value)
}

// Feedback returns the feedback torque of the last Compute, applied or not.
// It must be called from the goroutine that calls Compute.
func (c *ForceFeedbackController) Feedback() robot.JointVector {
	return c.feedback
}

// Compute implements robot.Policy.
func (c *ForceFeedbackController) Compute(s robot.State) (robot.Command, error) {
	if err := c.human.checkState(s); err != nil {
		return robot.Command{}, err
	}
	human := c.human.Torque(s.ExternalTorque, s.Position)

	est, err := c.filter.Update(c.replication.Load())
	if err != nil {
		return robot.Command{}, fmt.Errorf("estimate load: %w", err)
	}
	copy(c.feedback, c.shaper.Shape(est, s.Velocity))

	if c.enabled.Load() {
		floats.SubTo(c.out, human, c.feedback)
	} else {
		copy(c.out, human)
	}
	return robot.Command{Torque: c.out}, nil
}

package control

import (
	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/gwillem/hapticteleop/pkg/robot"
)

// PositionTracker is the follower policy: a joint impedance around a desired
// position that can be moved from another goroutine.
type PositionTracker struct {
	stiffness robot.JointVector
	damping   robot.JointVector
	target    *Slot

	torque   robot.JointVector
	position robot.JointVector
}

// NewPositionTracker returns a tracker holding initial until SetTarget is called.
func NewPositionTracker(initial, stiffness, damping robot.JointVector) (*PositionTracker, error) {
	n := len(initial)
	if n == 0 {
		return nil, fault.Configf("initial position is empty")
	}
	if err := robot.CheckLen("initial position", initial, n); err != nil {
		return nil, err
	}
	if err := robot.CheckLen("stiffness", stiffness, n); err != nil {
		return nil, err
	}
	if err := robot.CheckLen("tracking damping", damping, n); err != nil {
		return nil, err
	}
	return &PositionTracker{
		stiffness: stiffness.Clone(),
		damping:   damping.Clone(),
		target:    NewSlot(initial),
		torque:    robot.Zeros(n),
		position:  robot.Zeros(n),
	}, nil
}

func (p *PositionTracker) Kind() robot.PolicyKind {
	return robot.PolicyPositionTracking
}

// SetTarget implements robot.TargetReceiver; the latest target wins.
func (p *PositionTracker) SetTarget(target robot.JointVector) error {
	return p.target.Store(target)
}

// Compute implements robot.Policy. The command carries both the target and the
// impedance torque Kq (target - q) - Kqd qd.
func (p *PositionTracker) Compute(s robot.State) (robot.Command, error) {
	n := len(p.torque)
	if len(s.Position) != n || len(s.Velocity) != n {
		return robot.Command{}, fault.Configf("state has %d/%d joints, tracker has %d", len(s.Position), len(s.Velocity), n)
	}
	target := p.target.Load()
	copy(p.position, target)
	for i := range p.torque {
		p.torque[i] = p.stiffness[i]*(target[i]-s.Position[i]) - p.damping[i]*s.Velocity[i]
	}
	return robot.Command{Torque: p.torque, Position: p.position}, nil
}

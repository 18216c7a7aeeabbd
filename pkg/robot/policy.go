package robot

import "time"

// State is a telemetry snapshot read from an arm once per tick.
// Slices may be owned by the driver and are only valid until the next read.
type State struct {
	Position       JointVector
	Velocity       JointVector
	ExternalTorque JointVector
	Timestamp      time.Time
}

// Command is what a policy asks an arm to do for one tick.
// Torque is a feed-forward joint torque, Position a joint position target;
// either may be nil. Drivers apply the parts they support.
type Command struct {
	Torque   JointVector
	Position JointVector
}

// PolicyKind tags the closed set of per-tick command sources.
type PolicyKind int

const (
	PolicyHuman PolicyKind = iota + 1
	PolicyForceFeedback
	PolicyPositionTracking
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyHuman:
		return "human"
	case PolicyForceFeedback:
		return "force_feedback"
	case PolicyPositionTracking:
		return "position_tracking"
	}
	return "unknown"
}

// Policy turns the current arm state into a command. Compute is called once
// per tick from the control goroutine; the returned slices belong to the
// policy and stay valid until the next call.
type Policy interface {
	Kind() PolicyKind
	Compute(s State) (Command, error)
}

// TargetReceiver is implemented by policies that track a desired position.
// SetTarget may be called from a different goroutine than Compute.
type TargetReceiver interface {
	SetTarget(target JointVector) error
}

// ParameterReceiver is implemented by policies with named runtime parameters.
// SetParameter may be called from a different goroutine than Compute.
type ParameterReceiver interface {
	SetParameter(name string, value JointVector) error
}

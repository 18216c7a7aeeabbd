package robot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gwillem/hapticteleop/pkg/fault"
)

// ErrNoPolicy is returned when a policy update reaches a handle with no policy attached.
var ErrNoPolicy = errors.New("no policy attached")

// Handle is the teleoperation core's view of one arm.
type Handle interface {
	// ReadState returns the latest telemetry. It must not block longer than one tick.
	ReadState(ctx context.Context) (State, error)
	// MoveToPosition blocks until the arm reached target or fails.
	MoveToPosition(ctx context.Context, target JointVector) error
	// AttachPolicy installs the per-tick command source.
	AttachPolicy(ctx context.Context, p Policy) error
	// DetachPolicy removes the command source and leaves the arm holding.
	DetachPolicy(ctx context.Context) error
	// UpdateTarget forwards a desired position to a tracking policy (last value wins).
	UpdateTarget(target JointVector) error
	// UpdateParameter forwards a named value to the attached policy.
	UpdateParameter(name string, value JointVector) error
}

// Actuator is implemented by handles whose policy runs in this process.
// The control loop calls Actuate once per tick with the state it just read.
type Actuator interface {
	Actuate(ctx context.Context, s State) error
}

// Driver is the low-level interface to an arm that cannot execute policies itself.
type Driver interface {
	DOF() int
	ReadState(ctx context.Context) (State, error)
	MoveToPosition(ctx context.Context, target JointVector) error
	WriteCommand(ctx context.Context, cmd Command) error
	// Hold stops issuing commands and leaves the arm in its safe idle mode.
	Hold(ctx context.Context) error
}

type attachment struct {
	policy Policy
}

// LocalHandle runs policies in-process on top of a Driver.
type LocalHandle struct {
	name     string
	drv      Driver
	attached atomic.Pointer[attachment]
}

// NewLocalHandle wraps drv. The name is used in error messages.
func NewLocalHandle(name string, drv Driver) *LocalHandle {
	return &LocalHandle{name: name, drv: drv}
}

// Name returns the handle's name.
func (h *LocalHandle) Name() string {
	return h.name
}

// Policy returns the attached policy or nil.
func (h *LocalHandle) Policy() Policy {
	if a := h.attached.Load(); a != nil {
		return a.policy
	}
	return nil
}

func (h *LocalHandle) ReadState(ctx context.Context) (State, error) {
	s, err := h.drv.ReadState(ctx)
	if err != nil {
		return State{}, fault.Connectivity(h.name, fmt.Errorf("read state: %w", err))
	}
	return s, nil
}

func (h *LocalHandle) MoveToPosition(ctx context.Context, target JointVector) error {
	if err := CheckLen("target", target, h.drv.DOF()); err != nil {
		return err
	}
	if err := h.drv.MoveToPosition(ctx, target); err != nil {
		return fault.Connectivity(h.name, fmt.Errorf("move: %w", err))
	}
	return nil
}

func (h *LocalHandle) AttachPolicy(ctx context.Context, p Policy) error {
	if p == nil {
		return fmt.Errorf("%s: attach nil policy", h.name)
	}
	h.attached.Store(&attachment{policy: p})
	return nil
}

func (h *LocalHandle) DetachPolicy(ctx context.Context) error {
	h.attached.Store(nil)
	if err := h.drv.Hold(ctx); err != nil {
		return fault.Connectivity(h.name, fmt.Errorf("hold: %w", err))
	}
	return nil
}

func (h *LocalHandle) UpdateTarget(target JointVector) error {
	a := h.attached.Load()
	if a == nil {
		return fmt.Errorf("%s: %w", h.name, ErrNoPolicy)
	}
	r, ok := a.policy.(TargetReceiver)
	if !ok {
		return fmt.Errorf("%s: %s policy does not accept targets", h.name, a.policy.Kind())
	}
	return r.SetTarget(target)
}

func (h *LocalHandle) UpdateParameter(name string, value JointVector) error {
	a := h.attached.Load()
	if a == nil {
		return fmt.Errorf("%s: %w", h.name, ErrNoPolicy)
	}
	r, ok := a.policy.(ParameterReceiver)
	if !ok {
		return fmt.Errorf("%s: %s policy has no parameters", h.name, a.policy.Kind())
	}
	return r.SetParameter(name, value)
}

// Actuate computes the attached policy on s and writes the command.
// Without an attached policy it does nothing.
func (h *LocalHandle) Actuate(ctx context.Context, s State) error {
	a := h.attached.Load()
	if a == nil {
		return nil
	}
	cmd, err := a.policy.Compute(s)
	if err != nil {
		return fmt.Errorf("%s: %s policy: %w", h.name, a.policy.Kind(), err)
	}
	if err := h.drv.WriteCommand(ctx, cmd); err != nil {
		return fault.Connectivity(h.name, fmt.Errorf("write command: %w", err))
	}
	return nil
}

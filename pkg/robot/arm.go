package robot

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// Arm is an SO-101 arm on a feetech serial bus. It implements Driver.
//
// The STS servos only take position targets, so Arm applies the Position part
// of a Command and drops Torque. External torque is not sensed and reads as zero.
type Arm struct {
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
	motors      []MotorName

	// MoveTolerance is the per-joint error (radians) at which MoveToPosition returns.
	MoveTolerance float64
	// MoveTimeout bounds MoveToPosition when ctx has no deadline.
	MoveTimeout time.Duration

	state    State
	lastRead time.Time
	raw      feetech.PositionMap
}

// NewArm creates and initializes an arm connection.
func NewArm(port string, cal Calibration) (*Arm, error) {
	// Open serial bus
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	var motors []MotorName
	for _, name := range AllMotors() {
		if _, ok := cal[name]; ok {
			motors = append(motors, name)
		}
	}
	group := feetech.NewServoGroupByIDs(bus, cal.MotorIDs()...)

	n := len(motors)
	return &Arm{
		bus:           bus,
		group:         group,
		calibration:   cal,
		motors:        motors,
		MoveTolerance: 0.02,
		MoveTimeout:   5 * time.Second,
		state: State{
			Position:       Zeros(n),
			Velocity:       Zeros(n),
			ExternalTorque: Zeros(n),
		},
		raw: make(feetech.PositionMap, n),
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Enable enables torque on all servos.
func (a *Arm) Enable(ctx context.Context) error {
	return a.group.EnableAll(ctx)
}

// Disable disables torque on all servos.
func (a *Arm) Disable(ctx context.Context) error {
	return a.group.DisableAll(ctx)
}

// Motors returns the motor names in joint-vector order.
func (a *Arm) Motors() []MotorName {
	return a.motors
}

// DOF returns the number of calibrated motors.
func (a *Arm) DOF() int {
	return len(a.motors)
}

// ReadState reads positions from all motors and derives velocities from
// the previous read. The returned slices are reused by the next call.
func (a *Arm) ReadState(ctx context.Context) (State, error) {
	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return State{}, fmt.Errorf("read positions: %w", err)
	}

	now := time.Now()
	dt := now.Sub(a.lastRead).Seconds()
	first := a.lastRead.IsZero()
	for i, name := range a.motors {
		cal := a.calibration[name]
		raw, ok := rawPositions[cal.ID]
		if !ok {
			return State{}, fmt.Errorf("no position for %s (id %d)", name, cal.ID)
		}
		pos := cal.Radians(raw)
		if first || dt <= 0 {
			a.state.Velocity[i] = 0
		} else {
			a.state.Velocity[i] = (pos - a.state.Position[i]) / dt
		}
		a.state.Position[i] = pos
	}
	a.lastRead = now
	a.state.Timestamp = now
	return a.state, nil
}

// WritePositions writes joint targets in radians to all motors.
func (a *Arm) WritePositions(ctx context.Context, target JointVector) error {
	if len(target) != len(a.motors) {
		return fmt.Errorf("write positions: expected %d joints, got %d", len(a.motors), len(target))
	}
	for i, name := range a.motors {
		cal := a.calibration[name]
		a.raw[cal.ID] = cal.Raw(target[i])
	}

	// Write using sync write
	if err := a.group.SetPositions(ctx, a.raw); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}

	return nil
}

// WriteCommand applies the position part of cmd. A torque-only command leaves
// the arm as it is, which for a leader means passive.
func (a *Arm) WriteCommand(ctx context.Context, cmd Command) error {
	if cmd.Position == nil {
		return nil
	}
	return a.WritePositions(ctx, cmd.Position)
}

// MoveToPosition enables torque, writes target and polls until every joint is
// within MoveTolerance.
func (a *Arm) MoveToPosition(ctx context.Context, target JointVector) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.MoveTimeout)
		defer cancel()
	}

	if err := a.Enable(ctx); err != nil {
		return fmt.Errorf("enable: %w", err)
	}
	if err := a.WritePositions(ctx, target); err != nil {
		return err
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		s, err := a.ReadState(ctx)
		if err != nil {
			return err
		}
		if maxAbsDiff(s.Position, target) <= a.MoveTolerance {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("move not completed: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Hold disables torque so the arm can be moved by hand again.
func (a *Arm) Hold(ctx context.Context) error {
	return a.Disable(ctx)
}

func maxAbsDiff(a, b JointVector) float64 {
	var m float64
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}

package robot

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Wall is a one-sided virtual spring on a single joint. Once the joint passes
// Position in the Direction (+1 or -1) it is pushed back with Stiffness.
type Wall struct {
	Joint     int
	Position  float64
	Direction float64
	Stiffness float64
}

// SimConfig configures a simulated arm.
type SimConfig struct {
	DOF      int
	DT       float64     // integration step per command, seconds
	Inertia  float64     // per joint, kg m^2
	Friction float64     // viscous, N m s/rad
	Initial  JointVector // starting position, zero if nil
	Walls    []Wall
}

// SimDriver is a Driver for a simulated arm: independent joints with inertia
// and viscous friction, integrated one DT per WriteCommand. It reports the
// torque of its virtual walls plus any operator torque as external torque,
// with the sign convention of torque-sensing arms (the reaction seen by the
// motors).
type SimDriver struct {
	cfg SimConfig

	mu       sync.Mutex
	pos      JointVector
	vel      JointVector
	operator JointVector
	applied  JointVector
	start    time.Time
	steps    int
	moves    int
	held     bool
	readErr  error
}

// NewSimDriver returns a simulated arm at cfg.Initial.
func NewSimDriver(cfg SimConfig) (*SimDriver, error) {
	if cfg.DOF <= 0 {
		return nil, errors.New("sim: DOF must be positive")
	}
	if cfg.DT <= 0 {
		cfg.DT = 0.001
	}
	if cfg.Inertia <= 0 {
		cfg.Inertia = 0.5
	}
	if cfg.Friction < 0 {
		cfg.Friction = 0
	}
	pos := Zeros(cfg.DOF)
	if cfg.Initial != nil {
		if err := CheckLen("initial", cfg.Initial, cfg.DOF); err != nil {
			return nil, err
		}
		copy(pos, cfg.Initial)
	}
	return &SimDriver{
		cfg:      cfg,
		pos:      pos,
		vel:      Zeros(cfg.DOF),
		operator: Zeros(cfg.DOF),
		applied:  Zeros(cfg.DOF),
		start:    time.Now(),
	}, nil
}

func (s *SimDriver) DOF() int {
	return s.cfg.DOF
}

// SetOperatorTorque sets the torque a virtual operator applies to the arm.
func (s *SimDriver) SetOperatorTorque(t JointVector) {
	s.mu.Lock()
	copy(s.operator, t)
	s.mu.Unlock()
}

// FailReads makes every following ReadState return err. Nil restores reads.
func (s *SimDriver) FailReads(err error) {
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}

// Position returns a copy of the current joint positions.
func (s *SimDriver) Position() JointVector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos.Clone()
}

// LastTorque returns a copy of the torque applied by the last command.
func (s *SimDriver) LastTorque() JointVector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied.Clone()
}

// Stats returns the number of integration steps, completed moves and whether
// the arm is holding.
func (s *SimDriver) Stats() (steps, moves int, held bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps, s.moves, s.held
}

func (s *SimDriver) ReadState(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return State{}, s.readErr
	}
	ext := Zeros(s.cfg.DOF)
	s.environment(ext)
	for i := range ext {
		ext[i] = -(ext[i] + s.operator[i])
	}
	return State{
		Position:       s.pos.Clone(),
		Velocity:       s.vel.Clone(),
		ExternalTorque: ext,
		Timestamp:      s.start.Add(time.Duration(float64(s.steps) * s.cfg.DT * float64(time.Second))),
	}, nil
}

func (s *SimDriver) MoveToPosition(ctx context.Context, target JointVector) error {
	if err := CheckLen("target", target, s.cfg.DOF); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.pos, target)
	for i := range s.vel {
		s.vel[i] = 0
	}
	s.moves++
	s.held = false
	return nil
}

// WriteCommand applies cmd for one DT. A command with only a Position teleports
// the arm there, mimicking a stiff position-controlled servo.
func (s *SimDriver) WriteCommand(ctx context.Context, cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = false
	s.steps++
	if cmd.Torque == nil {
		if cmd.Position != nil {
			copy(s.pos, cmd.Position)
			for i := range s.vel {
				s.vel[i] = 0
			}
		}
		return nil
	}
	copy(s.applied, cmd.Torque)

	env := Zeros(s.cfg.DOF)
	s.environment(env)
	dt := s.cfg.DT
	for i := range s.pos {
		tau := cmd.Torque[i] + env[i] + s.operator[i] - s.cfg.Friction*s.vel[i]
		s.vel[i] += tau / s.cfg.Inertia * dt
		s.pos[i] += s.vel[i] * dt
	}
	return nil
}

func (s *SimDriver) Hold(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = true
	for i := range s.vel {
		s.vel[i] = 0
		s.applied[i] = 0
	}
	return nil
}

// environment adds the wall torques at the current position to dst.
func (s *SimDriver) environment(dst JointVector) {
	for _, w := range s.cfg.Walls {
		if w.Joint < 0 || w.Joint >= len(dst) {
			continue
		}
		pen := (s.pos[w.Joint] - w.Position) * w.Direction
		if pen > 0 {
			dst[w.Joint] -= w.Direction * w.Stiffness * pen
		}
	}
}

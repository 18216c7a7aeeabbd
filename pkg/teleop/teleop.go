// Package teleop runs a leader/follower teleoperation session: it syncs the
// followers to the leader, attaches the policies of a task and drives them
// from one control goroutine at a fixed rate until stopped or until any arm
// fails.
package teleop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gwillem/hapticteleop/pkg/control"
	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/gwillem/hapticteleop/pkg/robot"
)

// ErrStopped is returned by Start once the loop has stopped. Create a new
// loop for a new session.
var ErrStopped = errors.New("teleoperation loop stopped")

// State is the lifecycle state of a Loop.
type State int32

const (
	StateIdle State = iota
	StateSyncing
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger for lifecycle events. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(loop *Loop) {
		loop.log = l
	}
}

// WithErrorHandler sets a callback for the error that ended a session. It
// runs on the control goroutine after the policies were detached.
func WithErrorHandler(fn func(error)) Option {
	return func(loop *Loop) {
		loop.onError = fn
	}
}

// Loop is a teleoperation session. It moves through Idle, Syncing, Running
// and Stopped exactly once.
type Loop struct {
	leader    robot.Handle
	followers []robot.Handle
	cfg       Config
	dof       int
	period    time.Duration
	task      TaskFunc

	log     *slog.Logger
	onError func(error)
	metrics *Metrics

	// mu serializes Start and Stop; the control goroutine never takes it
	mu         sync.Mutex
	state      atomic.Int32
	runs       atomic.Int32
	stopping   atomic.Bool
	stopOnce   sync.Once
	stopCh     chan struct{}
	done       chan struct{}
	cancelSync context.CancelFunc
	failure    atomic.Pointer[error]
	err        error

	// owned by the control goroutine
	plan     Plan
	attached []robot.Handle
	tracking []robot.Handle
	fstates  []robot.State
	target   robot.JointVector
	relay    *control.Slot
}

// New validates cfg and returns an idle loop for the given arms.
func New(leader robot.Handle, followers []robot.Handle, cfg Config, opts ...Option) (*Loop, error) {
	if leader == nil {
		return nil, fault.Configf("no leader")
	}
	if len(followers) == 0 {
		return nil, fault.Configf("no followers")
	}
	for i, f := range followers {
		if f == nil {
			return nil, fault.Configf("follower %d is nil", i)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	task, _ := LookupTask(cfg.Task)

	l := &Loop{
		leader:    leader,
		followers: followers,
		cfg:       cfg,
		dof:       cfg.DOF(),
		period:    time.Second / time.Duration(cfg.Hz),
		task:      task,
		log:       slog.New(slog.DiscardHandler),
		metrics:   newMetrics(),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		fstates:   make([]robot.State, len(followers)),
		target:    robot.Zeros(cfg.DOF()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// IsRunning reports whether the session is syncing or running.
func (l *Loop) IsRunning() bool {
	s := l.State()
	return s == StateSyncing || s == StateRunning
}

// Err returns the error that stopped the session, nil after a clean stop.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Metrics returns the loop's counters.
func (l *Loop) Metrics() *Metrics {
	return l.metrics
}

// Done is closed when the control goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Start enters Syncing and spawns the control goroutine. It returns at once;
// calling it again while syncing or running does nothing. The session stops
// when ctx is done, on Stop or on the first error.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.State() {
	case StateStopped:
		return ErrStopped
	case StateSyncing, StateRunning:
		return nil
	}

	syncCtx, cancel := context.WithCancel(ctx)
	l.cancelSync = cancel
	l.state.Store(int32(StateSyncing))
	go l.run(ctx, syncCtx)
	return nil
}

// Stop asks the control goroutine to finish its tick, detach all policies and
// exit, and waits for it. Before Start it does nothing.
func (l *Loop) Stop() {
	l.mu.Lock()
	switch l.State() {
	case StateIdle:
		l.mu.Unlock()
		return
	case StateStopped:
		// also covers a Stop from the error handler
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	l.requestStop()
	<-l.done
}

func (l *Loop) requestStop() {
	l.stopping.Store(true)
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if l.cancelSync != nil {
			l.cancelSync()
		}
	})
}

// fail records the first fatal error raised outside the control goroutine
// and stops the session.
func (l *Loop) fail(err error) {
	l.failure.CompareAndSwap(nil, &err)
	l.requestStop()
}

func (l *Loop) run(ctx, syncCtx context.Context) {
	defer close(l.done)
	// never unlocked: the thread exits with the goroutine
	runtime.LockOSThread()
	l.runs.Add(1)

	err := l.session(ctx, syncCtx)
	if f := l.failure.Load(); f != nil && err == nil {
		err = *f
	}

	// detach even when ctx was canceled
	if derr := l.detachAll(context.WithoutCancel(ctx)); derr != nil {
		err = errors.Join(err, derr)
	}

	l.mu.Lock()
	l.err = err
	l.state.Store(int32(StateStopped))
	l.mu.Unlock()

	if err != nil {
		l.log.Error("teleoperation failed", append([]any{"err", err}, l.metrics.Summary()...)...)
		if l.onError != nil {
			l.onError(err)
		}
		return
	}
	l.log.Info("teleoperation stopped", l.metrics.Summary()...)
}

// session runs Syncing and Running. It returns nil on a requested stop.
func (l *Loop) session(ctx, syncCtx context.Context) error {
	l.log.Info("teleoperation syncing", "followers", len(l.followers))

	leader, err := l.leader.ReadState(ctx)
	if err != nil {
		return err
	}
	if err := checkState("leader", leader, l.dof); err != nil {
		return err
	}
	target := l.followerTarget(leader.Position).Clone()
	for i, f := range l.followers {
		if err := f.MoveToPosition(syncCtx, target); err != nil {
			if l.stopping.Load() || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("sync follower %d: %w", i, err)
		}
	}
	l.cancelSync()

	if err := l.attach(ctx); err != nil {
		return err
	}
	if l.stopping.Load() {
		return nil
	}

	var relayWG sync.WaitGroup
	if l.cfg.TargetRelayHz > 0 && len(l.tracking) > 0 {
		l.relay = control.NewSlot(target)
		relayWG.Add(1)
		go func() {
			defer relayWG.Done()
			l.relayTargets()
		}()
	}
	// the relay exits on stopCh, which every return below leads to
	defer func() {
		l.requestStop()
		relayWG.Wait()
	}()

	l.state.Store(int32(StateRunning))
	l.log.Info("teleoperation running", "task", l.cfg.Task, "hz", l.cfg.Hz,
		"force_feedback", l.cfg.ForceFeedback, "relay_hz", l.cfg.TargetRelayHz)

	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-l.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			jitter := now.Sub(last) - l.period
			l.metrics.observeJitter(jitter.Abs().Microseconds())
			last = now
		}
		if l.stopping.Load() {
			return nil
		}

		start := time.Now()
		if err := l.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if time.Since(start) > l.period {
			l.metrics.Overruns.Inc(1)
		}
		l.metrics.Ticks.Inc(1)
	}
}

// attach reads the synced arms, builds the task plan and installs it.
func (l *Loop) attach(ctx context.Context) error {
	s := Session{
		Config:    l.cfg,
		Followers: make([]robot.State, len(l.followers)),
		Logger:    l.log,
		OnSaturation: func(control.SaturationEvent) {
			l.metrics.Saturations.Inc(1)
		},
	}
	var err error
	if s.Leader, err = l.leader.ReadState(ctx); err != nil {
		return err
	}
	if err := checkState("leader", s.Leader, l.dof); err != nil {
		return err
	}
	for i, f := range l.followers {
		if s.Followers[i], err = f.ReadState(ctx); err != nil {
			return err
		}
		if err := checkState(fmt.Sprintf("follower %d", i), s.Followers[i], l.dof); err != nil {
			return err
		}
	}

	plan, err := l.task(s)
	if err != nil {
		return fmt.Errorf("%s task: %w", l.cfg.Task, err)
	}
	if plan.Leader == nil || len(plan.Followers) != len(l.followers) {
		return fault.Configf("%s task: plan does not cover the leader and %d followers", l.cfg.Task, len(l.followers))
	}
	if plan.FeedbackSource >= len(l.followers) {
		return fault.Configf("%s task: feedback source %d out of range", l.cfg.Task, plan.FeedbackSource)
	}
	l.plan = plan

	if err := l.leader.AttachPolicy(ctx, plan.Leader); err != nil {
		return err
	}
	l.attached = append(l.attached, l.leader)
	for i, f := range l.followers {
		p := plan.Followers[i]
		if p == nil {
			continue
		}
		if err := f.AttachPolicy(ctx, p); err != nil {
			return err
		}
		l.attached = append(l.attached, f)
		if _, ok := p.(robot.TargetReceiver); ok {
			l.tracking = append(l.tracking, f)
		}
	}
	return nil
}

// tick runs one control cycle.
func (l *Loop) tick(ctx context.Context) error {
	leader, err := l.leader.ReadState(ctx)
	if err != nil {
		return err
	}
	if err := checkTelemetry("leader", leader, l.dof); err != nil {
		return err
	}
	for i, f := range l.followers {
		if l.fstates[i], err = f.ReadState(ctx); err != nil {
			return err
		}
		if err := checkTelemetry("follower", l.fstates[i], l.dof); err != nil {
			return err
		}
	}

	target := l.followerTarget(leader.Position)
	if l.relay != nil {
		if err := l.relay.Store(target); err != nil {
			return err
		}
	} else {
		for _, f := range l.tracking {
			if err := f.UpdateTarget(target); err != nil {
				return err
			}
		}
	}
	if src := l.plan.FeedbackSource; src >= 0 {
		err := l.leader.UpdateParameter(control.ParamReplicationTorques, l.fstates[src].ExternalTorque)
		if err != nil {
			return err
		}
	}

	if a, ok := l.leader.(robot.Actuator); ok {
		if err := a.Actuate(ctx, leader); err != nil {
			return err
		}
	}
	for i, f := range l.followers {
		if a, ok := f.(robot.Actuator); ok {
			if err := a.Actuate(ctx, l.fstates[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// relayTargets forwards the latest leader position to the tracking followers
// at TargetRelayHz until the session stops.
func (l *Loop) relayTargets() {
	ticker := time.NewTicker(time.Second / time.Duration(l.cfg.TargetRelayHz))
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
		}
		target := l.relay.Load()
		for _, f := range l.tracking {
			if err := f.UpdateTarget(target); err != nil {
				l.fail(fmt.Errorf("relay target: %w", err))
				return
			}
		}
	}
}

// detachAll detaches every policy attached by this session.
func (l *Loop) detachAll(ctx context.Context) error {
	var errs []error
	for _, h := range l.attached {
		errs = append(errs, h.DetachPolicy(ctx))
	}
	l.attached = nil
	return errors.Join(errs...)
}

// followerTarget returns pos with the mirrored joints negated. The result is
// owned by the control goroutine and overwritten by the next call.
func (l *Loop) followerTarget(pos robot.JointVector) robot.JointVector {
	copy(l.target, pos)
	for _, j := range l.cfg.Mirror {
		l.target[j] = -l.target[j]
	}
	return l.target
}

// checkState validates the joint count an arm reports before the session runs.
func checkState(name string, s robot.State, dof int) error {
	if joints(s) != dof {
		return fault.Configf("%s reports %d/%d/%d joints, session has %d",
			name, len(s.Position), len(s.Velocity), len(s.ExternalTorque), dof)
	}
	return nil
}

// checkTelemetry is checkState for a running session, where a wrong joint
// count means the telemetry stream is broken.
func checkTelemetry(name string, s robot.State, dof int) error {
	if joints(s) != dof {
		return fault.Connectivity(name, fmt.Errorf("telemetry has %d/%d/%d joints, session has %d",
			len(s.Position), len(s.Velocity), len(s.ExternalTorque), dof))
	}
	return nil
}

// joints returns the joint count of s, or -1 if its vectors disagree.
func joints(s robot.State) int {
	n := len(s.Position)
	if len(s.Velocity) != n || len(s.ExternalTorque) != n {
		return -1
	}
	return n
}

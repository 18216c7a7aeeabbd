package teleop

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gwillem/hapticteleop/pkg/control"
	"github.com/gwillem/hapticteleop/pkg/kalman"
	"github.com/gwillem/hapticteleop/pkg/robot"
)

// Built-in task names.
const (
	TaskForceFeedback = "force_feedback"
	TaskMultibot      = "multibot"
)

// Session is what a task sees when the loop enters Running: the config and
// the arm states right after the followers were synced to the leader.
type Session struct {
	Config    Config
	Leader    robot.State
	Followers []robot.State
	Logger    *slog.Logger
	// OnSaturation should be wired to any LoadShaper the task builds
	OnSaturation func(control.SaturationEvent)
}

// Plan assigns policies to the arms of a session.
type Plan struct {
	Leader robot.Policy
	// Followers holds one policy per follower, in handle order
	Followers []robot.Policy
	// FeedbackSource is the follower whose external torque is passed to the
	// leader policy every tick, or -1 for none
	FeedbackSource int
}

// TaskFunc builds the plan of a task.
type TaskFunc func(s Session) (Plan, error)

var (
	tasksMu sync.RWMutex
	tasks   = map[string]TaskFunc{}
)

func init() {
	RegisterTask(TaskForceFeedback, ForceFeedbackTask)
	RegisterTask(TaskMultibot, MultibotTask)
}

// RegisterTask makes a task available by name. It panics if the name is
// taken or fn is nil.
func RegisterTask(name string, fn TaskFunc) {
	tasksMu.Lock()
	defer tasksMu.Unlock()
	if fn == nil {
		panic("teleop: RegisterTask " + name + " with nil func")
	}
	if _, dup := tasks[name]; dup {
		panic("teleop: RegisterTask called twice for " + name)
	}
	tasks[name] = fn
}

// LookupTask returns the task registered under name.
func LookupTask(name string) (TaskFunc, bool) {
	tasksMu.RLock()
	defer tasksMu.RUnlock()
	fn, ok := tasks[name]
	return fn, ok
}

// TaskNames returns the registered task names, sorted.
func TaskNames() []string {
	tasksMu.RLock()
	defer tasksMu.RUnlock()
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ForceFeedbackTask drives the leader with force feedback from the first
// follower. Every follower tracks the leader.
func ForceFeedbackTask(s Session) (Plan, error) {
	if len(s.Followers) == 0 {
		return Plan{}, fmt.Errorf("%s task needs a follower", TaskForceFeedback)
	}
	cfg := s.Config
	source := s.Followers[0].ExternalTorque

	human, err := control.NewHumanController(cfg.Limits, cfg.Gains.Assistive, cfg.Gains.Regularization)
	if err != nil {
		return Plan{}, err
	}
	filter, err := kalman.New(source, cfg.Filter)
	if err != nil {
		return Plan{}, err
	}
	shaper, err := control.NewLoadShaper(cfg.Gains.LoadWeights, cfg.Gains.Damping, cfg.Shaper)
	if err != nil {
		return Plan{}, err
	}
	shaper.OnSaturation(s.OnSaturation)

	leader, err := control.NewForceFeedbackController(human, filter, shaper, source, cfg.ForceFeedback)
	if err != nil {
		return Plan{}, err
	}
	followers, err := trackers(s)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Leader: leader, Followers: followers, FeedbackSource: 0}, nil
}

// MultibotTask lets any number of followers track a leader moved by hand,
// without force feedback.
func MultibotTask(s Session) (Plan, error) {
	cfg := s.Config
	leader, err := control.NewHumanController(cfg.Limits, cfg.Gains.Assistive, cfg.Gains.Regularization)
	if err != nil {
		return Plan{}, err
	}
	followers, err := trackers(s)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Leader: leader, Followers: followers, FeedbackSource: -1}, nil
}

func trackers(s Session) ([]robot.Policy, error) {
	out := make([]robot.Policy, len(s.Followers))
	for i, f := range s.Followers {
		p, err := control.NewPositionTracker(f.Position, s.Config.Gains.Stiffness, s.Config.Gains.TrackingDamping)
		if err != nil {
			return nil, fmt.Errorf("follower %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

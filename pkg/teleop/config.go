package teleop

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/gwillem/hapticteleop/pkg/control"
	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/gwillem/hapticteleop/pkg/kalman"
	"github.com/gwillem/hapticteleop/pkg/robot"
	"gopkg.in/yaml.v3"
)

// DefaultHz is the control rate of torque-controlled arms.
const DefaultHz = 1000

// Joint limits of 7-DOF research arms, in radians.
var (
	defaultLimitMin = []float64{-2.8973, -1.7628, -2.8973, -3.0718, -2.8973, -0.0175, -2.8973}
	defaultLimitMax = []float64{2.8973, 1.7628, 2.8973, -0.0698, 2.8973, 3.7525, 2.8973}
)

// Config tunes a teleoperation session. It is fixed once the loop is created.
type Config struct {
	// Hz is the control tick rate
	Hz int `yaml:"hz"`
	// Task names a registered task, see TaskNames
	Task string `yaml:"task"`
	// ForceFeedback starts the session with feedback applied to the leader
	ForceFeedback bool `yaml:"force_feedback"`
	// TargetRelayHz, when positive, hands leader positions to the followers
	// from a separate goroutine at this rate instead of once per tick
	TargetRelayHz int `yaml:"target_relay_hz"`
	// Mirror lists joints whose leader position is negated before it becomes
	// the followers' target
	Mirror []int `yaml:"mirror,omitempty"`

	Filter kalman.Params        `yaml:"filter"`
	Gains  control.Gains        `yaml:"gains"`
	Limits control.Limits       `yaml:"limits"`
	Shaper control.ShaperParams `yaml:"shaper"`
}

// DefaultConfig returns the force feedback task with the default gains and
// limits fitted to dof joints.
func DefaultConfig(dof int) Config {
	filter := kalman.DefaultParams()
	filter.DT = 1.0 / DefaultHz
	return Config{
		Hz:            DefaultHz,
		Task:          TaskForceFeedback,
		ForceFeedback: true,
		Filter:        filter,
		Gains:         control.DefaultGains(dof),
		Limits: control.Limits{
			Min: pad(defaultLimitMin, dof),
			Max: pad(defaultLimitMax, dof),
		},
		Shaper: control.DefaultShaperParams(),
	}
}

// LoadConfig reads a YAML session config for dof joints. Fields missing from
// the file keep their DefaultConfig value, except filter.dt which follows hz.
func LoadConfig(path string, dof int) (Config, error) {
	cfg := DefaultConfig(dof)
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg.Filter.DT = 0
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fault.Configf("parse %s: %v", path, err)
	}
	if cfg.Filter.DT == 0 && cfg.Hz > 0 {
		cfg.Filter.DT = 1 / float64(cfg.Hz)
	}
	return cfg, cfg.Validate()
}

// SetHz sets the tick rate and the filter interval that goes with it.
func (c *Config) SetHz(hz int) {
	c.Hz = hz
	if hz > 0 {
		c.Filter.DT = 1 / float64(hz)
	}
}

// Save writes cfg as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DOF returns the number of joints the config is sized for.
func (c Config) DOF() int {
	return len(c.Gains.Assistive)
}

// Validate returns every problem found, each wrapping fault.ErrConfiguration.
func (c Config) Validate() error {
	dof := c.DOF()
	if dof == 0 {
		return fault.Configf("gains are empty")
	}
	var errs []error
	if c.Hz <= 0 {
		errs = append(errs, fault.Configf("hz must be positive, got %d", c.Hz))
	}
	if c.Hz > 0 && c.Filter.DT > 0 {
		// the filter propagates its rate over exactly one tick
		if tick := 1 / float64(c.Hz); math.Abs(c.Filter.DT-tick) > 1e-9*tick {
			errs = append(errs, fault.Configf("filter dt %v does not match the %d Hz tick interval %v", c.Filter.DT, c.Hz, tick))
		}
	}
	if c.TargetRelayHz < 0 {
		errs = append(errs, fault.Configf("target relay hz must not be negative, got %d", c.TargetRelayHz))
	}
	for _, j := range c.Mirror {
		if j < 0 || j >= dof {
			errs = append(errs, fault.Configf("mirrored joint %d out of range for %d joints", j, dof))
		}
	}
	if _, ok := LookupTask(c.Task); !ok {
		errs = append(errs, fault.Configf("unknown task %q", c.Task))
	}
	errs = append(errs,
		wrap("filter", c.Filter.Validate()),
		wrap("gains", c.Gains.Validate(dof)),
		wrap("limits", c.Limits.Validate(dof)),
		wrap("shaper", c.Shaper.Validate()),
	)
	return errors.Join(errs...)
}

func wrap(section string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", section, err)
}

// pad fits src to n elements, repeating the last one.
func pad(src []float64, n int) robot.JointVector {
	out := make(robot.JointVector, n)
	for i := range out {
		out[i] = src[min(i, len(src)-1)]
	}
	return out
}

package teleop

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/gwillem/hapticteleop/pkg/robot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig(7)
	assert.NoError(cfg.Validate())
	assert.Equal(7, cfg.DOF())
	assert.Equal(1000, cfg.Hz)
	assert.Equal(0.001, cfg.Filter.DT)
	assert.Equal(TaskForceFeedback, cfg.Task)
	assert.True(cfg.ForceFeedback)
	assert.Equal(-0.0698, cfg.Limits.Max[3])

	// SO-101 sized
	assert.NoError(DefaultConfig(6).Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"zero hz":        func(c *Config) { c.Hz = 0 },
		"negative relay": func(c *Config) { c.TargetRelayHz = -1 },
		"unknown task":   func(c *Config) { c.Task = "juggle" },
		"short gains":    func(c *Config) { c.Gains.Stiffness = robot.Zeros(2) },
		"inverted limit": func(c *Config) { c.Limits.Min[0] = 3 },
		"bad shaper":     func(c *Config) { c.Shaper.Alpha = 2 },
		"bad filter":     func(c *Config) { c.Filter.ObservationNoise = 0 },
		"no joints":      func(c *Config) { c.Gains.Assistive = nil },
		"dt off tick":    func(c *Config) { c.Filter.DT = 0.004 },
		"mirror range":   func(c *Config) { c.Mirror = []int{3} },
	}
	for name, mutate := range tests {
		cfg := DefaultConfig(3)
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), fault.ErrConfiguration, name)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	data := `
hz: 500
task: multibot
force_feedback: false
filter:
  dt: 0.002
gains:
  stiffness: [10, 20]
shaper:
  max: 30
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Hz)
	assert.Equal(t, TaskMultibot, cfg.Task)
	assert.False(t, cfg.ForceFeedback)
	assert.Equal(t, 0.002, cfg.Filter.DT)
	assert.Equal(t, robot.JointVector{10, 20}, cfg.Gains.Stiffness)
	assert.Equal(t, 30.0, cfg.Shaper.Max)

	// untouched fields keep their defaults
	def := DefaultConfig(2)
	assert.Equal(t, def.Filter.ObservationNoise, cfg.Filter.ObservationNoise)
	assert.Equal(t, def.Gains.Assistive, cfg.Gains.Assistive)
	assert.Equal(t, def.Shaper.Min, cfg.Shaper.Min)
	assert.Equal(t, def.Limits, cfg.Limits)
}

func TestLoadConfigDerivesFilterDT(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "rate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hz: 250\n"), 0644))
	cfg, err := LoadConfig(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Hz)
	assert.InDelta(t, 0.004, cfg.Filter.DT, 1e-12)

	// a dt that disagrees with the tick rate is rejected
	mismatch := filepath.Join(dir, "mismatch.yaml")
	require.NoError(t, os.WriteFile(mismatch, []byte("hz: 250\nfilter:\n  dt: 0.001\n"), 0644))
	_, err = LoadConfig(mismatch, 2)
	assert.ErrorIs(t, err, fault.ErrConfiguration)
	assert.ErrorContains(t, err, "does not match")
}

func TestSetHz(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.SetHz(60)
	assert.Equal(t, 60, cfg.Hz)
	assert.InDelta(t, 1.0/60, cfg.Filter.DT, 1e-15)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"), 2)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("hz: [1"), 0644))
	_, err = LoadConfig(bad, 2)
	assert.ErrorIs(t, err, fault.ErrConfiguration)

	short := filepath.Join(dir, "short.yaml")
	require.NoError(t, os.WriteFile(short, []byte("gains:\n  damping: [1]\n"), 0644))
	_, err = LoadConfig(short, 2)
	assert.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestConfigSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	cfg := DefaultConfig(6)
	cfg.Task = TaskMultibot
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path, 6)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

package control

import (
	"math"
	"testing"

	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/gwillem/hapticteleop/pkg/robot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitLimits = Limits{Min: robot.JointVector{-1}, Max: robot.JointVector{1}}

func TestHumanAssistive(t *testing.T) {
	h, err := NewHumanController(unitLimits, robot.JointVector{0.5}, robot.JointVector{1})
	require.NoError(t, err)
	assert.Equal(t, robot.PolicyHuman, h.Kind())

	// centered: the limit terms cancel, the push is amplified against the reaction
	assert.InDelta(t, -1.0, h.Torque(robot.JointVector{2}, robot.JointVector{0})[0], 1e-12)
	assert.InDelta(t, 1.5, h.Torque(robot.JointVector{-3}, robot.JointVector{0})[0], 1e-12)
}

func TestHumanLimitRepulsion(t *testing.T) {
	h, err := NewHumanController(unitLimits, robot.JointVector{0}, robot.JointVector{1})
	require.NoError(t, err)

	prev := 0.0
	for _, q := range []float64{0.5, 0.9, 0.99, 0.999, 0.9999} {
		tau := h.Torque(robot.JointVector{0}, robot.JointVector{q})[0]
		assert.Less(t, tau, prev, "q=%v", q)
		prev = tau
	}
	prev = 0.0
	for _, q := range []float64{-0.5, -0.9, -0.99, -0.999, -0.9999} {
		tau := h.Torque(robot.JointVector{0}, robot.JointVector{q})[0]
		assert.Greater(t, tau, prev, "q=%v", q)
		prev = tau
	}

	// exactly at a limit the repulsion is large but finite
	at := h.Torque(robot.JointVector{0}, robot.JointVector{1})[0]
	assert.False(t, math.IsInf(at, 0) || math.IsNaN(at))
	assert.InDelta(t, -1e8, at, 1)
}

func TestHumanNoRegularization(t *testing.T) {
	h, err := NewHumanController(unitLimits, robot.JointVector{0.5}, robot.JointVector{0})
	require.NoError(t, err)
	assert.Equal(t, -1.0, h.Torque(robot.JointVector{2}, robot.JointVector{0.9999})[0])
}

func TestHumanCompute(t *testing.T) {
	h, err := NewHumanController(unitLimits, robot.JointVector{0.5}, robot.JointVector{0})
	require.NoError(t, err)

	cmd, err := h.Compute(robot.State{
		Position:       robot.JointVector{0},
		Velocity:       robot.JointVector{0},
		ExternalTorque: robot.JointVector{4},
	})
	require.NoError(t, err)
	assert.Equal(t, robot.JointVector{-2}, cmd.Torque)
	assert.Nil(t, cmd.Position)

	_, err = h.Compute(robot.State{Position: robot.JointVector{0, 0}})
	assert.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestNewHumanControllerErrors(t *testing.T) {
	tests := map[string]struct {
		limits    Limits
		assistive robot.JointVector
		reg       robot.JointVector
	}{
		"empty":          {unitLimits, nil, nil},
		"reg length":     {unitLimits, robot.JointVector{1}, robot.JointVector{1, 1}},
		"limit length":   {Limits{Min: robot.JointVector{-1, -1}, Max: robot.JointVector{1, 1}}, robot.JointVector{1}, robot.JointVector{1}},
		"inverted limit": {Limits{Min: robot.JointVector{1}, Max: robot.JointVector{-1}}, robot.JointVector{1}, robot.JointVector{1}},
		"equal limit":    {Limits{Min: robot.JointVector{0}, Max: robot.JointVector{0}}, robot.JointVector{1}, robot.JointVector{1}},
		"nan gain":       {unitLimits, robot.JointVector{math.NaN()}, robot.JointVector{1}},
	}
	for name, tt := range tests {
		_, err := NewHumanController(tt.limits, tt.assistive, tt.reg)
		assert.ErrorIs(t, err, fault.ErrConfiguration, name)
	}
}

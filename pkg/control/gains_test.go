package control

import (
	"testing"

	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/gwillem/hapticteleop/pkg/robot"
	"github.com/stretchr/testify/assert"
)

func TestDefaultGains(t *testing.T) {
	assert := assert.New(t)

	g := DefaultGains(7)
	assert.NoError(g.Validate(7))
	assert.Equal(robot.JointVector{0.26, 0.44, 0.40, 1.11, 1.10, 1.20, 0.85}, g.Assistive)
	assert.Equal(robot.Fill(7, 1), g.LoadWeights)

	// SO-101 arms have six joints
	g = DefaultGains(6)
	assert.NoError(g.Validate(6))
	assert.Equal(robot.JointVector{25, 25, 25, 25, 7.5, 4}, g.Damping)

	g = DefaultGains(9)
	assert.Equal(0.85, g.Assistive[8])
}

func TestGainsValidate(t *testing.T) {
	g := DefaultGains(3)
	g.Stiffness = robot.Zeros(2)
	g.Damping = nil
	err := g.Validate(3)
	assert.ErrorIs(t, err, fault.ErrConfiguration)
	assert.ErrorContains(t, err, "stiffness")
	assert.ErrorContains(t, err, "damping gain")
}

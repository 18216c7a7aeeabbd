package main

import (
	"testing"

	"github.com/gwillem/hapticteleop/pkg/robot"
	"github.com/stretchr/testify/assert"
)

func TestMirroredJoints(t *testing.T) {
	assert.Equal(t, []int{0, 4}, mirroredJoints(robot.AllMotors()))
	assert.Equal(t, []int{1}, mirroredJoints([]robot.MotorName{robot.ElbowFlex, robot.WristRoll}))
	assert.Empty(t, mirroredJoints([]robot.MotorName{robot.Gripper}))
}

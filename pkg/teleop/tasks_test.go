package teleop

import (
	"testing"

	"github.com/gwillem/hapticteleop/pkg/control"
	"github.com/gwillem/hapticteleop/pkg/robot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func session(followers int) Session {
	s := Session{
		Config: testConfig(TaskForceFeedback),
		Leader: robot.State{
			Position:       robot.JointVector{0.1},
			Velocity:       robot.Zeros(1),
			ExternalTorque: robot.Zeros(1),
		},
	}
	for i := 0; i < followers; i++ {
		s.Followers = append(s.Followers, robot.State{
			Position:       robot.JointVector{0.1},
			Velocity:       robot.Zeros(1),
			ExternalTorque: robot.JointVector{float64(i)},
		})
	}
	return s
}

func TestTaskRegistry(t *testing.T) {
	assert.Equal(t, []string{TaskForceFeedback, TaskMultibot}, TaskNames())

	fn, ok := LookupTask(TaskMultibot)
	assert.True(t, ok)
	assert.NotNil(t, fn)
	_, ok = LookupTask("nope")
	assert.False(t, ok)

	assert.Panics(t, func() { RegisterTask(TaskMultibot, MultibotTask) })
	assert.Panics(t, func() { RegisterTask("nil", nil) })
}

func TestForceFeedbackTask(t *testing.T) {
	plan, err := ForceFeedbackTask(session(3))
	require.NoError(t, err)

	assert.Equal(t, robot.PolicyForceFeedback, plan.Leader.Kind())
	assert.IsType(t, &control.ForceFeedbackController{}, plan.Leader)
	assert.Equal(t, 0, plan.FeedbackSource)
	require.Len(t, plan.Followers, 3)
	for _, p := range plan.Followers {
		assert.Equal(t, robot.PolicyPositionTracking, p.Kind())
	}

	_, err = ForceFeedbackTask(session(0))
	assert.Error(t, err)
}

func TestMultibotTask(t *testing.T) {
	plan, err := MultibotTask(session(2))
	require.NoError(t, err)

	assert.Equal(t, robot.PolicyHuman, plan.Leader.Kind())
	assert.Equal(t, -1, plan.FeedbackSource)
	require.Len(t, plan.Followers, 2)

	// trackers hold the follower position until the first target
	cmd, err := plan.Followers[1].Compute(session(2).Followers[1])
	require.NoError(t, err)
	assert.Equal(t, robot.JointVector{0.1}, cmd.Position)
	assert.Equal(t, robot.JointVector{0}, cmd.Torque)
}

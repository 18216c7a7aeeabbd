package control

import (
	"sync"
	"testing"

	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/gwillem/hapticteleop/pkg/robot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerImpedance(t *testing.T) {
	assert := assert.New(t)

	p, err := NewPositionTracker(robot.Zeros(2), robot.Fill(2, 10), robot.Fill(2, 1))
	require.NoError(t, err)
	assert.Equal(robot.PolicyPositionTracking, p.Kind())

	s := robot.State{Position: robot.Zeros(2), Velocity: robot.Zeros(2)}
	cmd, err := p.Compute(s)
	require.NoError(t, err)
	assert.Equal(robot.JointVector{0, 0}, cmd.Torque)
	assert.Equal(robot.JointVector{0, 0}, cmd.Position)

	require.NoError(t, p.SetTarget(robot.JointVector{1, -1}))
	s.Velocity = robot.JointVector{2, 0}
	cmd, err = p.Compute(s)
	require.NoError(t, err)
	assert.Equal(robot.JointVector{8, -10}, cmd.Torque)
	assert.Equal(robot.JointVector{1, -1}, cmd.Position)
}

func TestTrackerErrors(t *testing.T) {
	_, err := NewPositionTracker(nil, nil, nil)
	assert.ErrorIs(t, err, fault.ErrConfiguration)
	_, err = NewPositionTracker(robot.Zeros(2), robot.Fill(1, 10), robot.Fill(2, 1))
	assert.ErrorIs(t, err, fault.ErrConfiguration)

	p, err := NewPositionTracker(robot.Zeros(2), robot.Fill(2, 10), robot.Fill(2, 1))
	require.NoError(t, err)
	assert.ErrorIs(t, p.SetTarget(robot.JointVector{1}), fault.ErrConfiguration)
	_, err = p.Compute(robot.State{Position: robot.Zeros(1), Velocity: robot.Zeros(1)})
	assert.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestTrackerConcurrentTargets(t *testing.T) {
	const n = 5000
	p, err := NewPositionTracker(robot.Zeros(3), robot.Fill(3, 1), robot.Fill(3, 0))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for k := 1; k <= n; k++ {
			v := float64(k)
			if err := p.SetTarget(robot.JointVector{v, v, v}); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	s := robot.State{Position: robot.Zeros(3), Velocity: robot.Zeros(3)}
	last := 0.0
	for last < n {
		cmd, err := p.Compute(s)
		require.NoError(t, err)
		pos := cmd.Position
		if pos[1] != pos[0] || pos[2] != pos[0] {
			t.Fatalf("torn target: %v", pos)
		}
		if pos[0] < last {
			t.Fatalf("stale target %v after %v", pos[0], last)
		}
		last = pos[0]
	}
	wg.Wait()
}

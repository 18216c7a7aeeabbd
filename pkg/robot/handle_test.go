package robot

import (
	"context"
	"errors"
	"testing"

	"github.com/gwillem/hapticteleop/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constPolicy struct {
	torque JointVector
	target JointVector
	params map[string]JointVector
	err    error
}

func (p *constPolicy) Kind() PolicyKind { return PolicyPositionTracking }

func (p *constPolicy) Compute(s State) (Command, error) {
	return Command{Torque: p.torque}, p.err
}

func (p *constPolicy) SetTarget(v JointVector) error {
	p.target = v.Clone()
	return nil
}

func (p *constPolicy) SetParameter(name string, v JointVector) error {
	if p.params == nil {
		p.params = map[string]JointVector{}
	}
	p.params[name] = v.Clone()
	return nil
}

type torquePolicy struct{}

func (torquePolicy) Kind() PolicyKind               { return PolicyHuman }
func (torquePolicy) Compute(State) (Command, error) { return Command{}, nil }

func newSim(t *testing.T, dof int) *SimDriver {
	t.Helper()
	sim, err := NewSimDriver(SimConfig{DOF: dof, DT: 0.001, Inertia: 1})
	require.NoError(t, err)
	return sim
}

func TestLocalHandleLifecycle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	sim := newSim(t, 2)
	h := NewLocalHandle("follower", sim)

	// nothing attached yet
	assert.ErrorIs(h.UpdateTarget(JointVector{1, 2}), ErrNoPolicy)
	assert.ErrorIs(h.UpdateParameter("x", JointVector{1, 2}), ErrNoPolicy)
	assert.NoError(h.Actuate(ctx, State{}))
	assert.Error(h.AttachPolicy(ctx, nil))

	p := &constPolicy{torque: JointVector{1, 0}}
	require.NoError(t, h.AttachPolicy(ctx, p))
	assert.Equal(p, h.Policy())

	assert.NoError(h.UpdateTarget(JointVector{0.5, 0.25}))
	assert.Equal(JointVector{0.5, 0.25}, p.target)
	assert.NoError(h.UpdateParameter("gain", JointVector{3, 4}))
	assert.Equal(JointVector{3, 4}, p.params["gain"])

	s, err := h.ReadState(ctx)
	require.NoError(t, err)
	require.NoError(t, h.Actuate(ctx, s))
	assert.Equal(JointVector{1, 0}, sim.LastTorque())

	require.NoError(t, h.DetachPolicy(ctx))
	assert.Nil(h.Policy())
	_, _, held := sim.Stats()
	assert.True(held)
}

func TestLocalHandleRejectsUnsupportedUpdates(t *testing.T) {
	ctx := context.Background()
	h := NewLocalHandle("leader", newSim(t, 1))
	require.NoError(t, h.AttachPolicy(ctx, torquePolicy{}))

	assert.Error(t, h.UpdateTarget(JointVector{0}))
	assert.Error(t, h.UpdateParameter("x", JointVector{0}))
}

func TestLocalHandleErrors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	sim := newSim(t, 2)
	h := NewLocalHandle("leader", sim)

	assert.ErrorIs(h.MoveToPosition(ctx, JointVector{1}), fault.ErrConfiguration)

	sim.FailReads(errors.New("cable unplugged"))
	_, err := h.ReadState(ctx)
	assert.ErrorIs(err, fault.ErrConnectivity)

	numErr := fault.Numericalf("singular")
	require.NoError(t, h.AttachPolicy(ctx, &constPolicy{err: numErr}))
	err = h.Actuate(ctx, State{})
	assert.ErrorIs(err, fault.ErrNumerical)
	assert.NotErrorIs(err, fault.ErrConnectivity)
}

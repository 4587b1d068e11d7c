package callbacks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/step"
)

func TestRegisterPreStepRunsInOrder(t *testing.T) {
	b := New()
	var calls []string

	require.True(t, b.RegisterPreStep(func(ctx context.Context, p *part.Part, s step.Step) error {
		calls = append(calls, "first")
		return nil
	}))
	require.True(t, b.RegisterPreStep(func(ctx context.Context, p *part.Part, s step.Step) error {
		calls = append(calls, "second")
		return nil
	}))

	p := &part.Part{Name: "a"}
	require.NoError(t, b.RunPreStep(context.Background(), p, step.Pull))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestRegisterDuplicateHookByIdentityIsRejected(t *testing.T) {
	b := New()
	hook := func(ctx context.Context) error { return nil }

	assert.True(t, b.RegisterPrologue(hook))
	assert.False(t, b.RegisterPrologue(hook))
}

func TestClearDropsEveryHook(t *testing.T) {
	b := New()
	ran := false
	b.RegisterEpilogue(func(ctx context.Context) error { ran = true; return nil })
	b.Clear()

	require.NoError(t, b.RunEpilogue(context.Background()))
	assert.False(t, ran)
}

func TestRunPreStepStopsAtFirstError(t *testing.T) {
	b := New()
	calledSecond := false
	boom := assert.AnError

	b.RegisterPreStep(func(ctx context.Context, p *part.Part, s step.Step) error { return boom })
	b.RegisterPreStep(func(ctx context.Context, p *part.Part, s step.Step) error {
		calledSecond = true
		return nil
	})

	err := b.RunPreStep(context.Background(), &part.Part{Name: "a"}, step.Build)
	assert.ErrorIs(t, err, boom)
	assert.False(t, calledSecond)
}

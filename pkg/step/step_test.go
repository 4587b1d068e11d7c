package step

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviousAndNextSteps(t *testing.T) {
	assert.Empty(t, Pull.PreviousSteps())
	assert.Equal(t, []Step{Pull}, Build.PreviousSteps())
	assert.Equal(t, []Step{Pull, Build}, Stage.PreviousSteps())
	assert.Equal(t, []Step{Pull, Build, Stage}, Prime.PreviousSteps())

	assert.Equal(t, []Step{Build, Stage, Prime}, Pull.NextSteps())
	assert.Empty(t, Prime.NextSteps())
}

func TestDependencyPrerequisiteStep(t *testing.T) {
	for _, s := range []Step{Pull, Build} {
		_, ok := DependencyPrerequisiteStep(s)
		assert.False(t, ok, "%s should have no cross-part prerequisite", s)
	}

	for _, s := range []Step{Stage, Prime} {
		prereq, ok := DependencyPrerequisiteStep(s)
		require.True(t, ok)
		assert.Equal(t, Stage, prereq)
	}
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "pull", Pull.String())
	assert.Equal(t, "prime", Prime.String())
	assert.True(t, Pull.Valid())
	assert.False(t, Step(99).Valid())
}

func TestParse(t *testing.T) {
	s, err := Parse("stage")
	require.NoError(t, err)
	assert.Equal(t, Stage, s)

	_, err = Parse("launch")
	assert.Error(t, err)
}

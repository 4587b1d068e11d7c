package sequencer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	craftparts "github.com/mensylisir/craftkit/pkg/craftparts"
	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/source"
	"github.com/mensylisir/craftkit/pkg/statemanager"
	"github.com/mensylisir/craftkit/pkg/step"
)

// fakeSource is a no-op source handler so parts with a Source do not
// require network access during planning.
type fakeSource struct {
	changed  bool
	checkErr error
}

func (f *fakeSource) Pull(ctx context.Context) error { return nil }
func (f *fakeSource) Check(ctx context.Context, stateFilePath string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.changed, nil
}
func (f *fakeSource) Update(ctx context.Context) error { return nil }
func (f *fakeSource) Provision(ctx context.Context, dest string, cleanTarget bool, src string) error {
	return nil
}

func noSourceFactory(p *part.Part) (source.Handler, error) { return nil, nil }

func newSequencer(t *testing.T, parts []*part.Part) *Sequencer {
	t.Helper()
	workDir := t.TempDir()
	seq, err := New(workDir, parts, craftparts.ProjectInfo{
		ApplicationName: "test-app",
		TargetArch:      "amd64",
		ProjectOptions:  map[string]any{"target-arch": "amd64"},
	}, noSourceFactory, statemanager.NewSerialGenerator(), nil, nil)
	require.NoError(t, err)
	return seq
}

func actionsFor(actions []Action, partName string) []Action {
	var out []Action
	for _, a := range actions {
		if a.PartName == partName {
			out = append(out, a)
		}
	}
	return out
}

func TestFreshPlanLinearDependencyOrdering(t *testing.T) {
	a := &part.Part{Name: "a"}
	b := &part.Part{Name: "b", After: []string{"a"}}
	seq := newSequencer(t, []*part.Part{b, a})

	actions, err := seq.Plan(context.Background(), step.Prime, nil, false)
	require.NoError(t, err)
	require.NotEmpty(t, actions)

	indexOf := func(name string, s step.Step, typ ActionType) int {
		for i, act := range actions {
			if act.PartName == name && act.Step == s && act.Type == typ {
				return i
			}
		}
		return -1
	}

	aStage := indexOf("a", step.Stage, Run)
	bStage := indexOf("b", step.Stage, Run)
	require.GreaterOrEqual(t, aStage, 0)
	require.GreaterOrEqual(t, bStage, 0)
	assert.Less(t, aStage, bStage, "a must stage before b stages, since b depends on a")

	for _, s := range step.Steps {
		require.GreaterOrEqual(t, indexOf("a", s, Run), 0)
		require.GreaterOrEqual(t, indexOf("b", s, Run), 0)
	}
}

func TestReplanWithNoChangesSkipsEverything(t *testing.T) {
	a := &part.Part{Name: "a"}
	seq := newSequencer(t, []*part.Part{a})

	_, err := seq.Plan(context.Background(), step.Prime, nil, false)
	require.NoError(t, err)

	actions, err := seq.Plan(context.Background(), step.Prime, nil, false)
	require.NoError(t, err)

	for _, act := range actions {
		assert.Equal(t, Skip, act.Type, "%s should be skipped on replan with no changes", act)
	}
}

func TestPropertyChangeTriggersRerunAndDependents(t *testing.T) {
	a := &part.Part{Name: "a", BuildPackages: []string{"gcc"}}
	b := &part.Part{Name: "b", After: []string{"a"}}
	parts := []*part.Part{a, b}

	// A single long-lived Sequencer models the real lifecycle: state lives
	// in the Manager's ephemeral wrappers until an executor persists it,
	// so a second independent Manager reading the same (still-empty)
	// workDir would see nothing from the first Plan at all.
	seq := newSequencer(t, parts)
	_, err := seq.Plan(context.Background(), step.Prime, nil, false)
	require.NoError(t, err)

	a.BuildPackages = []string{"gcc", "make"}

	actions, err := seq.Plan(context.Background(), step.Prime, nil, false)
	require.NoError(t, err)

	aBuild := actionsFor(actions, "a")
	var sawRerun bool
	for _, act := range aBuild {
		if act.Step == step.Build && act.Type == Rerun {
			sawRerun = true
		}
	}
	assert.True(t, sawRerun, "changing a's build-packages should rerun a's build step")

	bActions := actionsFor(actions, "b")
	var bRerun bool
	for _, act := range bActions {
		if act.Type == Rerun {
			bRerun = true
		}
	}
	assert.True(t, bRerun, "b should be dirtied because its dependency a re-ran")
}

func TestExplicitRerunOfRequestedStep(t *testing.T) {
	a := &part.Part{Name: "a"}
	seq := newSequencer(t, []*part.Part{a})

	_, err := seq.Plan(context.Background(), step.Prime, nil, false)
	require.NoError(t, err)

	actions, err := seq.Plan(context.Background(), step.Build, []string{"a"}, false)
	require.NoError(t, err)

	found := false
	for _, act := range actions {
		if act.PartName == "a" && act.Step == step.Build {
			assert.Equal(t, Rerun, act.Type)
			assert.Equal(t, "requested step", act.Reason)
			found = true
		}
	}
	assert.True(t, found)
}

func TestOutdatedPullViaSourceCheckCascadesToBuild(t *testing.T) {
	a := &part.Part{Name: "a", Source: part.Source{URL: "https://example.invalid/a.tar"}}
	workDir := t.TempDir()
	serials := statemanager.NewSerialGenerator()
	info := craftparts.ProjectInfo{ProjectOptions: map[string]any{}}

	fake := &fakeSource{}
	factory := func(p *part.Part) (source.Handler, error) { return fake, nil }

	seq, err := New(workDir, []*part.Part{a}, info, factory, serials, nil, nil)
	require.NoError(t, err)
	_, err = seq.Plan(context.Background(), step.Prime, nil, false)
	require.NoError(t, err)

	fake.changed = true

	actions, err := seq.Plan(context.Background(), step.Prime, nil, true)
	require.NoError(t, err)

	aActions := actionsFor(actions, "a")
	var pullUpdated, buildAffected bool
	for _, act := range aActions {
		if act.Step == step.Pull && act.Type == Update {
			pullUpdated = true
		}
		if act.Step == step.Build && (act.Type == Rerun || act.Type == Update) {
			buildAffected = true
		}
	}
	assert.True(t, pullUpdated, "pull should be an UPDATE action when the source reports new content")
	assert.True(t, buildAffected, "build should be affected once pull is newer")
}

func TestResolvePackageDependenciesWithoutRepoFails(t *testing.T) {
	a := &part.Part{Name: "a"}
	seq := newSequencer(t, []*part.Part{a})

	_, err := seq.ResolvePackageDependencies(context.Background(), []string{"libfoo"})
	assert.Error(t, err)
}

func TestActionTypeString(t *testing.T) {
	assert.Equal(t, "run", Run.String())
	assert.Equal(t, "rerun", Rerun.String())
	assert.Equal(t, "update", Update.String())
	assert.Equal(t, "skip", Skip.String())
}

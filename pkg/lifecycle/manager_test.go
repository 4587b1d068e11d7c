package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	craftparts "github.com/mensylisir/craftkit/pkg/craftparts"
	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/plugin"
	"github.com/mensylisir/craftkit/pkg/source"
	"github.com/mensylisir/craftkit/pkg/step"
)

type fakePlugin struct{ commands []string }

func (p *fakePlugin) UnmarshalProperties(raw map[string]any) (any, error) { return nil, nil }
func (p *fakePlugin) Schema() (map[string]any, error)                     { return nil, nil }
func (p *fakePlugin) BuildSnaps() map[string]bool                         { return nil }
func (p *fakePlugin) BuildPackages() map[string]bool                      { return nil }
func (p *fakePlugin) BuildEnvironment() map[string]string                 { return nil }
func (p *fakePlugin) BuildCommands() []string                             { return p.commands }

type fakeSource struct{}

func (f *fakeSource) Pull(ctx context.Context) error { return nil }
func (f *fakeSource) Check(ctx context.Context, stateFilePath string) (bool, error) {
	return false, nil
}
func (f *fakeSource) Update(ctx context.Context) error { return nil }
func (f *fakeSource) Provision(ctx context.Context, dest string, cleanTarget bool, src string) error {
	return nil
}

func mkPart(t *testing.T, workDir, name string, after []string) *part.Part {
	t.Helper()
	partsDir := filepath.Join(workDir, "parts", name)
	for _, sub := range []string{"src", "build", "install"} {
		require.NoError(t, os.MkdirAll(filepath.Join(partsDir, sub), 0o755))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "stage"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "prime"), 0o755))

	return &part.Part{
		Name:  name,
		After: after,
		Dirs: part.Directories{
			Source:  filepath.Join(partsDir, "src"),
			Build:   filepath.Join(partsDir, "build"),
			Install: filepath.Join(partsDir, "install"),
			Stage:   filepath.Join(workDir, "stage"),
			Prime:   filepath.Join(workDir, "prime"),
		},
	}
}

func newManager(t *testing.T, parts []*part.Part, workDir string) *Manager {
	t.Helper()
	m, err := NewManager(Options{
		WorkDir: workDir,
		Parts:   parts,
		Project: craftparts.ProjectInfo{ApplicationName: "test", ProjectOptions: map[string]any{}},
		SourceFactory: func(p *part.Part) (source.Handler, error) {
			return &fakeSource{}, nil
		},
		PluginFactory: func(p *part.Part) (plugin.Plugin, error) {
			return &fakePlugin{commands: []string{"touch " + filepath.Join(p.Dirs.Install, "out")}}, nil
		},
	})
	require.NoError(t, err)
	return m
}

func TestRunExecutesFullLifecycleForward(t *testing.T) {
	workDir := t.TempDir()
	p := mkPart(t, workDir, "mylib", nil)
	m := newManager(t, []*part.Part{p}, workDir)

	actions, err := m.Run(context.Background(), step.Stage, nil, false)
	require.NoError(t, err)
	require.NotEmpty(t, actions)

	_, err = os.Stat(filepath.Join(p.Dirs.Install, "out"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(p.Dirs.Stage, "out"))
	assert.NoError(t, err)
}

func TestRunOrdersDependenciesBeforeDependents(t *testing.T) {
	workDir := t.TempDir()
	base := mkPart(t, workDir, "base", nil)
	top := mkPart(t, workDir, "top", []string{"base"})
	m := newManager(t, []*part.Part{top, base}, workDir)

	actions, err := m.Run(context.Background(), step.Build, nil, false)
	require.NoError(t, err)

	var baseBuildIdx, topBuildIdx int
	for i, a := range actions {
		if a.PartName == "base" && a.Step == step.Build {
			baseBuildIdx = i
		}
		if a.PartName == "top" && a.Step == step.Build {
			topBuildIdx = i
		}
	}
	assert.Less(t, baseBuildIdx, topBuildIdx)
}

func TestSecondRunSkipsUnchangedWork(t *testing.T) {
	workDir := t.TempDir()
	p := mkPart(t, workDir, "mylib", nil)
	m := newManager(t, []*part.Part{p}, workDir)

	_, err := m.Run(context.Background(), step.Prime, nil, false)
	require.NoError(t, err)

	actions, err := m.Run(context.Background(), step.Prime, nil, false)
	require.NoError(t, err)
	for _, a := range actions {
		assert.Equalf(t, "skip", a.Type.String(), "expected %s to be skipped on second run", a)
	}
}

func TestCleanRemovesStateAndAllowsRerun(t *testing.T) {
	workDir := t.TempDir()
	p := mkPart(t, workDir, "mylib", nil)
	m := newManager(t, []*part.Part{p}, workDir)

	_, err := m.Run(context.Background(), step.Build, nil, false)
	require.NoError(t, err)

	require.NoError(t, m.Clean(context.Background(), step.Build, nil))

	actions, err := m.Plan(context.Background(), step.Build, nil, false)
	require.NoError(t, err)
	require.NotEmpty(t, actions)
	assert.Equal(t, "run", actions[len(actions)-1].Type.String())
}

func TestCleanRemovesPartAndSharedDirectories(t *testing.T) {
	workDir := t.TempDir()
	p := mkPart(t, workDir, "mylib", nil)
	m := newManager(t, []*part.Part{p}, workDir)

	_, err := m.Run(context.Background(), step.Prime, nil, false)
	require.NoError(t, err)

	require.NoError(t, m.Clean(context.Background(), step.Pull, nil))

	for _, dir := range []string{p.Dirs.Source, p.Dirs.Build, p.Dirs.Install, p.Dirs.Stage, p.Dirs.Prime} {
		_, statErr := os.Stat(dir)
		assert.Truef(t, os.IsNotExist(statErr), "expected %s to be removed", dir)
	}
}

func TestCleanNamedPartLeavesSharedDirectories(t *testing.T) {
	workDir := t.TempDir()
	p := mkPart(t, workDir, "mylib", nil)
	m := newManager(t, []*part.Part{p}, workDir)

	_, err := m.Run(context.Background(), step.Prime, nil, false)
	require.NoError(t, err)

	require.NoError(t, m.Clean(context.Background(), step.Pull, []string{"mylib"}))

	_, statErr := os.Stat(p.Dirs.Install)
	assert.True(t, os.IsNotExist(statErr))

	_, stageStatErr := os.Stat(p.Dirs.Stage)
	assert.NoError(t, stageStatErr, "a named-part clean must not remove the shared stage directory")
	_, primeStatErr := os.Stat(p.Dirs.Prime)
	assert.NoError(t, primeStatErr, "a named-part clean must not remove the shared prime directory")
}

func TestCallbacksRunAroundEachAction(t *testing.T) {
	workDir := t.TempDir()
	p := mkPart(t, workDir, "mylib", nil)
	m := newManager(t, []*part.Part{p}, workDir)

	var pre, post int
	m.Callbacks().RegisterPreStep(func(ctx context.Context, p *part.Part, s step.Step) error {
		pre++
		return nil
	})
	m.Callbacks().RegisterPostStep(func(ctx context.Context, p *part.Part, s step.Step) error {
		post++
		return nil
	})

	_, err := m.Run(context.Background(), step.Build, nil, false)
	require.NoError(t, err)
	assert.Equal(t, pre, post)
	assert.Greater(t, pre, 0)
}

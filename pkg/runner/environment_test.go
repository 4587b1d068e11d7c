package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/step"
)

type fakePlugin struct{ env map[string]string }

func (p *fakePlugin) UnmarshalProperties(raw map[string]any) (any, error) { return nil, nil }
func (p *fakePlugin) Schema() (map[string]any, error)                     { return nil, nil }
func (p *fakePlugin) BuildSnaps() map[string]bool                         { return nil }
func (p *fakePlugin) BuildPackages() map[string]bool                      { return nil }
func (p *fakePlugin) BuildEnvironment() map[string]string                 { return p.env }
func (p *fakePlugin) BuildCommands() []string                             { return []string{"make", "make install"} }

func TestEnvironmentScriptIncludesPartAndUserEnv(t *testing.T) {
	install := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(install, "usr/bin"), 0o755))

	p := &part.Part{
		Name:             "mylib",
		Dirs:             part.Directories{Install: install},
		BuildEnvironment: []part.KV{{Key: "FOO", Value: "bar"}},
	}

	env := Environment{
		Part:   p,
		Step:   step.Build,
		Plugin: &fakePlugin{env: map[string]string{"PLUGIN_VAR": "1"}},
	}

	script := env.Script()
	assert.Contains(t, script, "#!/bin/sh")
	assert.Contains(t, script, `export FOO="bar"`)
	assert.Contains(t, script, `export PLUGIN_VAR="1"`)
	assert.Contains(t, script, "PATH=")
	assert.Contains(t, script, filepath.Join(install, "usr/bin"))
}

func TestEnvironmentScriptOmitsPluginEnvOutsideBuild(t *testing.T) {
	p := &part.Part{Name: "mylib"}
	env := Environment{Part: p, Step: step.Stage, Plugin: &fakePlugin{env: map[string]string{"PLUGIN_VAR": "1"}}}

	script := env.Script()
	assert.NotContains(t, script, "PLUGIN_VAR")
}

func TestWriteBuildScript(t *testing.T) {
	install := t.TempDir()
	runDir := t.TempDir()
	p := &part.Part{Name: "mylib", Dirs: part.Directories{Install: install}}
	env := Environment{Part: p, Step: step.Build}

	path, err := WriteBuildScript(env, &fakePlugin{}, runDir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "set -x")
	assert.Contains(t, string(data), "make install")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

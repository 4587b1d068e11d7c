package specdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/craftkit/pkg/part"
)

const sampleDoc = `
parts:
  mylib:
    plugin: make
    source: https://example.com/mylib.tar.gz
    source-type: tar
    after: [libdep]
    stage-packages: [libfoo1]
    stage: [-usr/share/doc]
    build-environment:
      - FOO: bar
    make-parameters: ["-j4"]

  libdep:
    plugin: nil
    source: .
`

func TestParseBuildsPartsSortedByName(t *testing.T) {
	parts, err := Parse([]byte(sampleDoc), "/work")
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, "libdep", parts[0].Name)
	assert.Equal(t, "mylib", parts[1].Name)
}

func TestParseResolvesDeclarativeFields(t *testing.T) {
	parts, err := Parse([]byte(sampleDoc), "/work")
	require.NoError(t, err)

	mylib := parts[1]
	assert.Equal(t, "make", mylib.Plugin)
	assert.Equal(t, "https://example.com/mylib.tar.gz", mylib.Source.URL)
	assert.Equal(t, "tar", mylib.Source.Type)
	assert.Equal(t, []string{"libdep"}, mylib.After)
	assert.Equal(t, []string{"libfoo1"}, mylib.StagePackages)
	assert.Equal(t, []string{"-usr/share/doc"}, mylib.StageFileset)
	assert.Equal(t, []part.KV{{Key: "FOO", Value: "bar"}}, mylib.BuildEnvironment)
	assert.Equal(t, []any{"-j4"}, mylib.PluginProperties["make-parameters"])
}

func TestParseResolvesDirectoryLayout(t *testing.T) {
	parts, err := Parse([]byte(sampleDoc), "/work")
	require.NoError(t, err)

	mylib := parts[1]
	assert.Equal(t, "/work/parts/mylib/src", mylib.Dirs.Source)
	assert.Equal(t, "/work/parts/mylib/build", mylib.Dirs.Build)
	assert.Equal(t, "/work/parts/mylib/install", mylib.Dirs.Install)
	assert.Equal(t, "/work/stage", mylib.Dirs.Stage)
	assert.Equal(t, "/work/prime", mylib.Dirs.Prime)
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("parts: [not, a, map]"), "/work")
	assert.Error(t, err)
}

package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/craftkit/pkg/step"
)

func TestPullStateDiffPropertiesOfInterest(t *testing.T) {
	st := NewPullState(map[string]any{"source": "a", "build-packages": []string{"gcc"}}, nil)

	// build-packages is not a property of interest for PULL, so changing
	// it should not be reported.
	diff := st.DiffPropertiesOfInterest(map[string]any{"source": "a", "build-packages": []string{"clang"}})
	assert.Empty(t, diff)

	diff = st.DiffPropertiesOfInterest(map[string]any{"source": "b", "build-packages": []string{"gcc"}})
	assert.Equal(t, []string{"source"}, diff)
}

func TestBuildStateDiffPropertiesOfInterest(t *testing.T) {
	st := NewBuildState(map[string]any{"build-packages": []string{"gcc"}, "source": "a"}, nil, nil)

	diff := st.DiffPropertiesOfInterest(map[string]any{"build-packages": []string{"gcc"}, "source": "b"})
	assert.Empty(t, diff, "source is not a BUILD property of interest")

	diff = st.DiffPropertiesOfInterest(map[string]any{"build-packages": []string{"clang"}, "source": "a"})
	assert.Equal(t, []string{"build-packages"}, diff)
}

func TestDiffProjectOptionsOfInterest(t *testing.T) {
	st := NewPullState(nil, map[string]any{"target-arch": "amd64"})

	diff := st.DiffProjectOptionsOfInterest(map[string]any{"target-arch": "arm64"})
	assert.Equal(t, []string{"target-arch"}, diff)

	diff = st.DiffProjectOptionsOfInterest(map[string]any{"target-arch": "amd64"})
	assert.Empty(t, diff)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state-file")

	original := NewStageState(
		map[string]any{"stage": []string{"bin/*"}},
		nil,
		[]string{"bin/hello", "bin/world"},
		[]string{"bin"},
	)

	require.NoError(t, Save(path, original))

	loaded, modTime, err := Load(path)
	require.NoError(t, err)
	assert.False(t, modTime.IsZero())
	require.NotNil(t, loaded)
	assert.Equal(t, step.Stage, loaded.Step())
	assert.True(t, loaded.Files()["bin/hello"])
	assert.True(t, loaded.Files()["bin/world"])
	assert.True(t, loaded.Directories()["bin"])
}

func TestLoadMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	loaded, modTime, err := Load(filepath.Join(dir, "does-not-exist"))
	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.True(t, modTime.IsZero())
}

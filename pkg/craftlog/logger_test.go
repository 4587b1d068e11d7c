package craftlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithFileOutputWritesRotatedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "craftkit.log")

	l := New(Options{
		ConsoleLevel: InfoLevel,
		FileLevel:    DebugLevel,
		FilePath:     path,
		MaxSizeMB:    1,
		MaxBackups:   1,
		MaxAgeDays:   1,
	})
	l.Infof("building %s", "mylib")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mylib")
}

func TestGetInitializesOnce(t *testing.T) {
	a := Get()
	b := Get()
	assert.Same(t, a, b)
}

func TestWithAttachesFields(t *testing.T) {
	l := New(DefaultOptions())
	scoped := l.With("part", "mylib", "step", "build")
	assert.NotNil(t, scoped)
	scoped.Infof("running")
}

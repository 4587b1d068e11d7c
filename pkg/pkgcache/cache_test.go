package pkgcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStoreIsIdempotentAndContentAddressed(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "pkg.deb")
	writeFile(t, src, "package-bytes")

	c := New(root, "stage-packages")

	path1, digest1, err := c.Store(src)
	require.NoError(t, err)
	path2, digest2, err := c.Store(src)
	require.NoError(t, err)

	assert.Equal(t, path1, path2)
	assert.Equal(t, digest1, digest2)

	got, ok := c.Get(digest1)
	require.True(t, ok)
	assert.Equal(t, path1, got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "package-bytes", string(data))
}

func TestGetMissingDigestReportsAbsent(t *testing.T) {
	c := New(t.TempDir(), "stage-packages")
	_, ok := c.Get("deadbeef")
	assert.False(t, ok)
}

func TestStoreAllCachesEveryPackageConcurrently(t *testing.T) {
	srcDir := t.TempDir()
	var pkgs []FetchedPackage
	for _, name := range []string{"a", "b", "c"} {
		p := filepath.Join(srcDir, name+".deb")
		writeFile(t, p, "content-"+name)
		pkgs = append(pkgs, FetchedPackage{Name: name, ArchivePath: p})
	}

	c := New(t.TempDir(), "stage-packages")
	stored, err := StoreAll(context.Background(), c, pkgs, 2)
	require.NoError(t, err)
	require.Len(t, stored, 3)

	for i, s := range stored {
		assert.Equal(t, pkgs[i].Name, s.Name)
		_, ok := c.Get(s.Digest)
		assert.True(t, ok)
	}
}

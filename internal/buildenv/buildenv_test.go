package buildenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFileCopiesContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("kernel config"), 0o644))

	require.NoError(t, copyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "kernel config", string(got))
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := copyFile(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
	assert.Error(t, err)
}

func TestFromDirDoesNotOwnTempDir(t *testing.T) {
	env := FromDir("/some/build/dir")
	assert.Equal(t, "/some/build/dir", env.BuildDir)
	assert.Equal(t, "/some/build/dir/source", env.SourceDir)
	assert.Equal(t, "/some/build/dir/config", env.Config)

	// FromDir wraps an already-configured directory it doesn't own; Close
	// must be a no-op rather than deleting the caller's build directory.
	assert.NoError(t, env.Close())
	_, err := os.Stat("/some/build/dir")
	assert.True(t, os.IsNotExist(err), "Close must not have created anything either")
}

func TestCloseRemovesOwnedTempDir(t *testing.T) {
	parent := t.TempDir()
	owned := filepath.Join(parent, "owned")
	require.NoError(t, os.MkdirAll(owned, 0o755))

	env := &BuildEnv{BuildDir: owned, tempDir: owned}
	require.NoError(t, env.Close())

	_, err := os.Stat(owned)
	assert.True(t, os.IsNotExist(err))
}

package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNestedDirectory(t *testing.T) {
	tmp := t.TempDir()
	want := filepath.Join(tmp, "audio", "nested")

	got, err := EnsureDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	// idempotent
	_, err = EnsureDir(want)
	require.NoError(t, err)
}

func TestResolve(t *testing.T) {
	root := t.TempDir()

	p, err := Resolve(root, "toukan_1.m4a")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "toukan_1.m4a"), p)

	for _, bad := range []string{"", "../x.m4a", "/etc/passwd", "a/../../x"} {
		_, err := Resolve(root, bad)
		assert.ErrorIs(t, err, ErrOutsideRoot, bad)
	}
}

func TestExistsAndRemove(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "f.m4a")

	assert.False(t, Exists(p))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	assert.True(t, Exists(p))
	assert.False(t, Exists(root), "directories are not files")

	require.NoError(t, Remove(p))
	assert.False(t, Exists(p))
	require.NoError(t, Remove(p), "removing a missing file is fine")
}

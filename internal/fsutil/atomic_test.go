package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "calendar.ics")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o644, 0o755))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o644, 0o755))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestWriteFileAtomicEmptyPath(t *testing.T) {
	require.Error(t, WriteFileAtomic("", nil, 0o600, 0o700))
}

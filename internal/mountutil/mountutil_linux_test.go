package mountutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrepareDir_Creates(t *testing.T) {
	m := New()
	dir := filepath.Join(t.TempDir(), "sub")

	require.NoError(t, m.PrepareDir(dir, 0o700, os.Getuid(), os.Getgid()))

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
	require.Equal(t, os.FileMode(0o700), fi.Mode().Perm())
}

func TestPrepareDir_FixesMode(t *testing.T) {
	m := New()
	dir := filepath.Join(t.TempDir(), "sub")

	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, m.PrepareDir(dir, 0o700, os.Getuid(), os.Getgid()))

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o700), fi.Mode().Perm())
}

func TestPrepareDir_RejectsNonDirectory(t *testing.T) {
	m := New()
	f := filepath.Join(t.TempDir(), "file")

	require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))
	require.Error(t, m.PrepareDir(f, 0o700, os.Getuid(), os.Getgid()))
}

func TestDeviceID(t *testing.T) {
	m := New()

	dev, err := m.DeviceID(t.TempDir())
	require.NoError(t, err)
	require.NotZero(t, dev)

	_, err = m.DeviceID(filepath.Join(t.TempDir(), "no-such-path"))
	require.Error(t, err)
}

func TestRemoveDir(t *testing.T) {
	m := New()
	dir := filepath.Join(t.TempDir(), "sub")

	require.NoError(t, os.Mkdir(dir, 0o700))
	require.NoError(t, m.RemoveDir(dir))
	require.NoDirExists(t, dir)

	// missing directory is not an error
	require.NoError(t, m.RemoveDir(dir))
}

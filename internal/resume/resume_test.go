package resume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempPST(t *testing.T, dir string, content string) string {
	t.Helper()
	path := filepath.Join(dir, "archive.pst")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewHashesFirstMiBAndLoadFindsNoPriorState(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPST(t, dir, "hello pst")

	m, err := New(path, dir)
	require.NoError(t, err)
	require.NoError(t, m.Load())

	assert.False(t, m.IsMaterialized("block-1"))
	assert.False(t, m.HasExistingProgress())
}

func TestSaveAndLoadRoundTripsMaterializedSet(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPST(t, dir, "archive contents")

	m, err := New(path, dir)
	require.NoError(t, err)
	require.NoError(t, m.Load())

	m.MarkMaterialized("block-1")
	m.MarkMaterialized("block-2")
	m.MarkFolderComplete("Inbox")
	m.SetTotal(10)
	require.NoError(t, m.Save())

	reloaded, err := New(path, dir)
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())

	assert.True(t, reloaded.IsMaterialized("block-1"))
	assert.True(t, reloaded.IsMaterialized("block-2"))
	assert.False(t, reloaded.IsMaterialized("block-3"))
	assert.True(t, reloaded.IsFolderComplete("Inbox"))
	assert.False(t, reloaded.IsFolderComplete("Sent"))

	materialized, total := reloaded.Progress()
	assert.Equal(t, 2, materialized)
	assert.Equal(t, 10, total)
}

func TestLoadIgnoresStateFromADifferentPSTHash(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPST(t, dir, "version one")

	m, err := New(path, dir)
	require.NoError(t, err)
	require.NoError(t, m.Load())
	m.MarkMaterialized("block-1")
	require.NoError(t, m.Save())

	// Overwrite the PST contents; its hash now differs from what was saved.
	require.NoError(t, os.WriteFile(path, []byte("version two, totally different contents"), 0o644))

	reloaded, err := New(path, dir)
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())

	assert.False(t, reloaded.IsMaterialized("block-1"))
	assert.False(t, reloaded.HasExistingProgress())
}

func TestLoadIgnoresStateFromADifferentOutputRoot(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPST(t, dir, "same pst, different destination")

	m, err := New(path, filepath.Join(dir, "out-a"))
	require.NoError(t, err)
	require.NoError(t, m.Load())
	m.MarkMaterialized("block-1")
	require.NoError(t, m.Save())

	reloaded, err := New(path, filepath.Join(dir, "out-b"))
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())

	assert.False(t, reloaded.IsMaterialized("block-1"))
}

func TestSaveWritesAtomicallyViaTempFileRename(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPST(t, dir, "atomic save check")

	m, err := New(path, dir)
	require.NoError(t, err)
	require.NoError(t, m.Load())
	require.NoError(t, m.Save())

	assert.FileExists(t, m.ManifestPath())
	assert.NoFileExists(t, m.ManifestPath()+".tmp")
}

func TestClearRemovesSidecarAndResetsState(t *testing.T) {
	dir := t.TempDir()
	path := writeTempPST(t, dir, "clear check")

	m, err := New(path, dir)
	require.NoError(t, err)
	require.NoError(t, m.Load())
	m.MarkMaterialized("block-1")
	require.NoError(t, m.Save())

	require.NoError(t, m.Clear())
	assert.NoFileExists(t, m.ManifestPath())
	assert.False(t, m.HasExistingProgress())
	assert.False(t, m.IsMaterialized("block-1"))
}

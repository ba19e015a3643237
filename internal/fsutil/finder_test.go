package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0o755))
	for _, name := range []string{"b.json", "a.yaml", "nested/c.yml", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("{}"), 0o644))
	}

	files, err := FindFilesByExtension(root, ".json", ".yaml", ".yml")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(root, "a.yaml"),
		filepath.Join(root, "b.json"),
		filepath.Join(root, "nested", "c.yml"),
	}, files)
}

func TestFindFilesByExtension_SingleFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "pkg.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	files, err := FindFilesByExtension(path, ".json")
	require.NoError(t, err)
	require.Equal(t, []string{path}, files)

	files, err = FindFilesByExtension(path, ".yaml")
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestFindFilesByExtension_MissingRoot(t *testing.T) {
	_, err := FindFilesByExtension(filepath.Join(t.TempDir(), "missing"), ".json")
	require.Error(t, err)
}

package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chtmp runs the test from a fresh temp directory since the scaffold writes
// relative paths.
func chtmp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { os.Chdir(originalDir) })

	return tmpDir
}

func TestInitialize(t *testing.T) {
	t.Run("fresh initialization", func(t *testing.T) {
		tmpDir := chtmp(t)

		require.NoError(t, Initialize("acme-books", false))

		keelYml, err := os.ReadFile(filepath.Join(tmpDir, ConfigFile))
		require.NoError(t, err)
		assert.Contains(t, string(keelYml), `name: "acme-books"`)

		truthMd, err := os.ReadFile(filepath.Join(tmpDir, TruthTemplateFile))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(truthMd), "# PROJECT TRUTH"))
		assert.Contains(t, string(truthMd), "acme-books")
	})

	t.Run("force overwrites existing files", func(t *testing.T) {
		tmpDir := chtmp(t)
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ConfigFile), []byte("old content"), 0644))

		require.NoError(t, Initialize("acme-books", true))

		keelYml, err := os.ReadFile(filepath.Join(tmpDir, ConfigFile))
		require.NoError(t, err)
		assert.NotContains(t, string(keelYml), "old content")
	})

	t.Run("empty project name is rejected", func(t *testing.T) {
		chtmp(t)
		assert.Error(t, Initialize("", false))
	})
}

func TestCheckExisting(t *testing.T) {
	t.Run("clean directory passes", func(t *testing.T) {
		chtmp(t)
		assert.NoError(t, CheckExisting())
	})

	t.Run("existing keel.yml is reported", func(t *testing.T) {
		tmpDir := chtmp(t)
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ConfigFile), []byte("x"), 0644))

		err := CheckExisting()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already initialized")
		assert.Contains(t, err.Error(), ConfigFile)
	})

	t.Run("both files are listed", func(t *testing.T) {
		tmpDir := chtmp(t)
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ConfigFile), []byte("x"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, TruthTemplateFile), []byte("x"), 0644))

		err := CheckExisting()
		require.Error(t, err)
		assert.Contains(t, err.Error(), TruthTemplateFile)
	})
}

package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/catalog"
)

func TestCatalogCmd(t *testing.T) {
	t.Run("prints the defaults", func(t *testing.T) {
		out, _, err := executeCommand(t, nil, "catalog")
		require.NoError(t, err)

		entries, err := catalog.Parse([]byte(out))
		require.NoError(t, err, "the dump must load back as a catalog")
		assert.Equal(t, catalog.Default().Entries(), entries)
	})

	t.Run("only the extension file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "custom.yaml", customCatalog)
		out, _, err := executeCommand(t, nil, "catalog", "--catalog", path, "--no-default-catalog")
		require.NoError(t, err)

		entries, err := catalog.Parse([]byte(out))
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "main", entries[0].Name)
		assert.Equal(t, catalog.RoleSink, entries[1].Role)
	})

	t.Run("extension from the config file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "custom.yaml", customCatalog)
		cfgPath := writeFile(t, dir, "config.yaml", "catalog:\n  files: ["+path+"]\n  disable_defaults: true\n")

		out, _, err := executeCommand(t, nil, "--config", cfgPath, "catalog")
		require.NoError(t, err)
		entries, err := catalog.Parse([]byte(out))
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := executeCommand(t, nil, "catalog", "--catalog", filepath.Join(t.TempDir(), "none.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load catalog")
	})
}

package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileService_YamlRoundTrip(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, fs.WriteYamlFile(path, map[string]string{"default_environment": "delta"}))

	exists, err := fs.IsFileExists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	var out map[string]string
	require.NoError(t, fs.ReadYamlFile(path, &out))
	assert.Equal(t, "delta", out["default_environment"])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileService_IsFileExists_Missing(t *testing.T) {
	exists, err := NewFileService().IsFileExists(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".ssh/id_rsa"), ExpandHome("~/.ssh/id_rsa"))
	assert.Equal(t, "/etc/docks/ca.pem", ExpandHome("/etc/docks/ca.pem"))
	assert.Equal(t, "~", ExpandHome("~"))
}

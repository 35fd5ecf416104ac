package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, sections map[string]map[string]interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	data, err := json.MarshalIndent(fileFormat{Version: "1.0", Sections: sections}, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestNewFileStore(t *testing.T) {
	t.Run("missing file yields empty store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		store, err := NewFileStore(path)
		require.NoError(t, err)
		assert.Equal(t, path, store.Path())
		assert.False(t, store.IsModified())

		all, err := store.GetAll()
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("default path", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		store, err := NewFileStore("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".otpgate", "config.json"), store.Path())
	})

	t.Run("loads existing file", func(t *testing.T) {
		path := writeConfigFile(t, map[string]map[string]interface{}{
			"login": {"url": "https://example.test/login"},
		})

		store, err := NewFileStore(path)
		require.NoError(t, err)

		section, err := store.GetSection("login")
		require.NoError(t, err)
		assert.Equal(t, "https://example.test/login", section["url"])
	})

	t.Run("empty file yields empty store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, nil, 0600))

		store, err := NewFileStore(path)
		require.NoError(t, err)
		all, err := store.GetAll()
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("corrupt file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

		_, err := NewFileStore(path)
		assert.Error(t, err)
	})
}

func TestFileStore_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.SetSection("server", map[string]interface{}{
		"addr":         "0.0.0.0:8080",
		"max_sessions": 3,
	}))
	assert.True(t, store.IsModified())
	require.NoError(t, store.Save())
	assert.False(t, store.IsModified())

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	reloaded, err := NewFileStore(path)
	require.NoError(t, err)
	section, err := reloaded.GetSection("server")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", section["addr"])
	assert.Equal(t, float64(3), section["max_sessions"])
}

func TestFileStore_CopiesOnReadAndWrite(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	in := map[string]interface{}{"headless": true}
	require.NoError(t, store.SetSection("browser", in))
	in["headless"] = false

	out, err := store.GetSection("browser")
	require.NoError(t, err)
	assert.Equal(t, true, out["headless"])

	out["headless"] = "changed"
	again, err := store.GetSection("browser")
	require.NoError(t, err)
	assert.Equal(t, true, again["headless"])
}

func TestFileStore_SetAll(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	data := map[string]map[string]interface{}{
		"browser": {"headless": true},
		"server":  {"addr": ":9000"},
	}
	require.NoError(t, store.SetAll(data))
	data["browser"]["headless"] = false

	all, err := store.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, true, all["browser"]["headless"])
}

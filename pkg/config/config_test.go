package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWhenFilesMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "none.yaml"), filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.IsProduction())
}

func TestLoadLayersYAMLDotenvAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "sheetboard.yaml", `
environment: production
store:
  url: http://store.local:8081
server:
  storeAddr: ":9001"
  editorAddr: ":9000"
mongo:
  uri: mongodb://yaml:27017
dashboard:
  autosaveDelay: 5s
  historyDepth: 20
  refreshSchedule: "@every 1m"
`)
	envPath := writeFile(t, dir, ".env", "SHEETBOARD_MONGO_URI=mongodb://dotenv:27017\nSHEETBOARD_STORE_API_KEY=from-dotenv\n")
	t.Setenv("SHEETBOARD_STORE_API_KEY", "from-env")
	t.Setenv("SHEETBOARD_HISTORY_DEPTH", "7")
	t.Setenv("SHEETBOARD_SKIP_SCHEMAS", "true")

	cfg, err := Load(yamlPath, envPath)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "http://store.local:8081", cfg.Store.URL)
	assert.Equal(t, "from-env", cfg.Store.APIKey)
	assert.Equal(t, "mongodb://dotenv:27017", cfg.Mongo.URI)
	assert.Equal(t, "sheetboard", cfg.Mongo.Database)
	assert.Equal(t, ":9001", cfg.Server.StoreAddr)
	assert.Equal(t, 5*time.Second, cfg.Dashboard.AutosaveDelay)
	assert.Equal(t, 7, cfg.Dashboard.HistoryDepth)
	assert.Equal(t, "@every 1m", cfg.Dashboard.RefreshSchedule)
	assert.True(t, cfg.Dashboard.SkipSchemas)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	t.Run("duration", func(t *testing.T) {
		t.Setenv("SHEETBOARD_AUTOSAVE_DELAY", "soon")
		_, err := Load("", "")
		assert.Error(t, err)
	})
	t.Run("skip schemas", func(t *testing.T) {
		t.Setenv("SHEETBOARD_SKIP_SCHEMAS", "sometimes")
		_, err := Load("", "")
		assert.Error(t, err)
	})
	t.Run("environment", func(t *testing.T) {
		t.Setenv("SHEETBOARD_ENV", "staging")
		_, err := Load("", "")
		assert.Error(t, err)
	})
	t.Run("yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, dir, "bad.yaml", "server: [1, 2"), "")
		assert.Error(t, err)
	})
	t.Run("store url", func(t *testing.T) {
		t.Setenv("SHEETBOARD_STORE_URL", "not a url")
		_, err := Load("", "")
		assert.Error(t, err)
	})
}

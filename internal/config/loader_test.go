package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the finsight config dir.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "finsight")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "stock", cfg.Qdrant.CollectionName)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, 384, cfg.Embeddings.Dimension)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, "gemini-2.5-flash", cfg.Live.Model)
	assert.Equal(t, 2500, cfg.Live.ThinkingBudget)
	assert.Equal(t, 5, cfg.Pipeline.TopK)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.InterpretTimeout)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  http_port: 9191
vectorstore:
  provider: chromem
qdrant:
  collection_name: equities
pipeline:
  top_k: 3
  gate_timeout: 2s
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "equities", cfg.Qdrant.CollectionName)
	assert.Equal(t, 3, cfg.Pipeline.TopK)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.GateTimeout)
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 9191\n", 0600)

	t.Setenv("SERVER_HTTP_PORT", "7777")
	t.Setenv("PIPELINE_TOP_K", "8")
	t.Setenv("LLM_API_KEY", "gsk-namespaced")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Pipeline.TopK)
	assert.Equal(t, "gsk-namespaced", cfg.LLM.APIKey.Value())
}

func TestLoadWithFile_LegacyKeyAliases(t *testing.T) {
	setupTestHome(t)
	t.Setenv("GROQ_API_KEY", "gsk-legacy")
	t.Setenv("GEMINI_API_KEY", "gem-legacy")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, "gsk-legacy", cfg.LLM.APIKey.Value())
	assert.Equal(t, "gem-legacy", cfg.Live.APIKey.Value())
	assert.NoError(t, cfg.RequireAPIKeys())
}

func TestLoadWithFile_NamespacedKeyWinsOverLegacy(t *testing.T) {
	setupTestHome(t)
	t.Setenv("GROQ_API_KEY", "gsk-legacy")
	t.Setenv("LLM_API_KEY", "gsk-namespaced")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, "gsk-namespaced", cfg.LLM.APIKey.Value())
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 9191\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_InvalidProvider(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "vectorstore:\n  provider: pinecone\n", 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported vectorstore provider")
}

func TestValidateConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"user config", filepath.Join(home, ".config", "finsight", "config.yaml"), false},
		{"user subdir", filepath.Join(home, ".config", "finsight", "prod", "config.yaml"), false},
		{"system config", "/etc/finsight/config.yaml", false},
		{"sibling prefix", "/etc/finsight-evil/config.yaml", true},
		{"traversal", filepath.Join(home, ".config", "finsight", "..", "..", "config.yaml"), true},
		{"outside", "/tmp/config.yaml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequireAPIKeys(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireAPIKeys())

	cfg.LLM.APIKey = "a"
	assert.ErrorContains(t, cfg.RequireAPIKeys(), "live api key")

	cfg.Live.APIKey = "b"
	assert.NoError(t, cfg.RequireAPIKeys())
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, "data"), ExpandHome("~/data"))
	assert.Equal(t, "/var/data", ExpandHome("/var/data"))
}

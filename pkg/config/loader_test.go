package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
)

const testCatalog = `
default_model: gpt4
models:
  gpt4:
    model_id: gpt-4o
    provider: openai
    quality: high
    speed: standard
  local:
    model_id: llama3
    provider: ollama
    privacy: local
providers:
  openai:
    type: openai
    api_key_env: OPENAI_API_KEY
    timeout: ${LLM_TIMEOUT:-45}
  ollama:
    type: ollama
    base_url: ${OLLAMA_URL}
agents:
  coder:
    description: writes code
    default_model: gpt4
use_cases:
  coding:
    quality: high
    speed: standard
tools:
  categories:
    math:
      add:
        description: adds numbers
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderLoad(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://localhost:11434")

	loader, err := NewLoader(LoaderOptions{Path: writeCatalog(t, testCatalog)})
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt4", cfg.DefaultModel)
	require.Contains(t, cfg.Models, "gpt4")
	assert.Equal(t, "gpt-4o", cfg.Models["gpt4"].ModelID)
	assert.Equal(t, QualityHigh, cfg.Models["gpt4"].Quality)

	// Defaults fill what the document leaves out.
	assert.Equal(t, 4096, cfg.Models["gpt4"].MaxTokens)
	assert.Equal(t, QualityMedium, cfg.Models["local"].Quality)
	assert.Equal(t, 3, cfg.Providers["openai"].MaxRetries)

	// Env expansion: default fallback re-parses as an int, reference
	// resolves from the environment.
	assert.Equal(t, 45, cfg.Providers["openai"].Timeout)
	assert.Equal(t, "http://localhost:11434", cfg.Providers["ollama"].BaseURL)

	assert.Equal(t, "gpt4", cfg.Agents["coder"].DefaultModel)
	assert.Contains(t, cfg.Tools.Categories["math"], "add")
}

func TestLoaderRejectsBrokenReferences(t *testing.T) {
	tests := []struct {
		name    string
		catalog string
	}{
		{
			"unknown provider",
			"models:\n  m:\n    model_id: x\n    provider: nope\n",
		},
		{
			"unknown default model",
			"default_model: nope\n",
		},
		{
			"missing api_key_env",
			"providers:\n  p:\n    type: openai\n",
		},
		{
			"duplicate model_id",
			"models:\n  a:\n    model_id: x\n    provider: p\n  b:\n    model_id: x\n    provider: p\nproviders:\n  p:\n    type: ollama\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := NewLoader(LoaderOptions{Path: writeCatalog(t, tt.catalog)})
			require.NoError(t, err)
			_, err = loader.Load()
			assert.True(t, aierrors.IsKind(err, aierrors.KindConfigInvalid), "err = %v", err)
		})
	}
}

func TestLoaderRequiresPath(t *testing.T) {
	_, err := NewLoader(LoaderOptions{})
	assert.Error(t, err)
}

func TestExpandEnvVarsInData(t *testing.T) {
	t.Setenv("EXPAND_TEST_VALUE", "hello")

	data := map[string]interface{}{
		"plain":    "no vars here",
		"braced":   "${EXPAND_TEST_VALUE}",
		"fallback": "${EXPAND_TEST_UNSET:-30}",
		"boolean":  "${EXPAND_TEST_UNSET:-true}",
		"nested": []interface{}{
			map[string]interface{}{"inner": "$EXPAND_TEST_VALUE"},
		},
		"number": 7,
	}

	out, ok := ExpandEnvVarsInData(data).(map[string]interface{})
	require.True(t, ok)

	assert.Equal(t, "no vars here", out["plain"])
	assert.Equal(t, "hello", out["braced"])
	assert.Equal(t, 30, out["fallback"])
	assert.Equal(t, true, out["boolean"])
	assert.Equal(t, 7, out["number"])

	nested := out["nested"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "hello", nested["inner"])
}

func TestStoreReload(t *testing.T) {
	path := writeCatalog(t, "default_model: \"\"\nmodels:\n  m:\n    model_id: one\n    provider: p\nproviders:\n  p:\n    type: ollama\n")

	store, err := LoadStore(path)
	require.NoError(t, err)
	defer store.Close()

	m, err := store.Model("m")
	require.NoError(t, err)
	assert.Equal(t, "one", m.ModelID)

	require.NoError(t, os.WriteFile(path,
		[]byte("models:\n  m:\n    model_id: two\n    provider: p\nproviders:\n  p:\n    type: ollama\n"), 0o644))
	require.NoError(t, store.Reload())

	m, err = store.Model("m")
	require.NoError(t, err)
	assert.Equal(t, "two", m.ModelID)
}

func TestStoreReloadKeepsSnapshotOnFailure(t *testing.T) {
	path := writeCatalog(t, "models:\n  m:\n    model_id: one\n    provider: p\nproviders:\n  p:\n    type: ollama\n")

	store, err := LoadStore(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, os.WriteFile(path, []byte("models:\n  m:\n    provider: nope\n"), 0o644))
	assert.Error(t, store.Reload())

	m, err := store.Model("m")
	require.NoError(t, err)
	assert.Equal(t, "one", m.ModelID)
}

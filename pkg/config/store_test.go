package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
)

func newTestStore() *Store {
	return NewStore(&Config{
		Models: map[string]*ModelConfig{
			"gpt4": {ModelID: "gpt-4o", Provider: "openai", Temperature: Float64Ptr(0.5)},
		},
		Agents: map[string]*AgentConfig{
			"coder": {Description: "writes code", DefaultModel: "gpt4"},
		},
		DefaultModel: "gpt4",
		Tools: ToolsConfig{Categories: map[string]map[string]*ToolConfig{
			"math": {"add": {Description: "adds numbers"}},
			"web":  {"fetch": {Description: "fetches a page"}},
		}},
	})
}

func TestStoreLookups(t *testing.T) {
	s := newTestStore()

	m, err := s.Model("gpt4")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.ModelID)

	_, err = s.Model("nope")
	assert.True(t, aierrors.IsKind(err, aierrors.KindConfigNotFound))

	a, err := s.Agent("coder")
	require.NoError(t, err)
	assert.Equal(t, "gpt4", a.DefaultModel)

	_, err = s.Agent("nope")
	assert.True(t, aierrors.IsKind(err, aierrors.KindConfigNotFound))
}

func TestStoreToolLookupAcrossCategories(t *testing.T) {
	s := newTestStore()

	add, err := s.Tool("add")
	require.NoError(t, err)
	assert.Equal(t, "adds numbers", add.Description)

	fetch, err := s.Tool("fetch")
	require.NoError(t, err)
	assert.Equal(t, "fetches a page", fetch.Description)

	_, err = s.Tool("nope")
	assert.True(t, aierrors.IsKind(err, aierrors.KindConfigNotFound))

	catalog := s.ToolCatalog()
	assert.Len(t, catalog, 2)
	assert.Contains(t, catalog, "add")
	assert.Contains(t, catalog, "fetch")
}

func TestStoreUserOverlay(t *testing.T) {
	s := newTestStore()
	model, _ := s.Model("gpt4")

	// Without an overlay the catalog speaks.
	assert.Equal(t, "gpt4", s.DefaultModelID())
	assert.Equal(t, 0.5, s.EffectiveTemperature(model))
	assert.Equal(t, "", s.SystemPromptOverride())
	assert.True(t, s.ShowThinking())

	s.ApplyUserConfig(&UserConfig{
		Model:        "other",
		UseCase:      "coding",
		Temperature:  Float64Ptr(0.1),
		SystemPrompt: "Be brief.",
		ShowThinking: BoolPtr(false),
	})

	assert.Equal(t, "other", s.DefaultModelID())
	assert.Equal(t, "coding", s.DefaultUseCase())
	assert.Equal(t, 0.1, s.EffectiveTemperature(model))
	assert.Equal(t, "Be brief.", s.SystemPromptOverride())
	assert.False(t, s.ShowThinking())

	// Clearing the overlay restores catalog behavior.
	s.ApplyUserConfig(nil)
	assert.Equal(t, "gpt4", s.DefaultModelID())
	assert.Equal(t, 0.5, s.EffectiveTemperature(model))
}

func TestEffectiveTemperatureFallback(t *testing.T) {
	s := NewStore(nil)
	assert.Equal(t, 0.7, s.EffectiveTemperature(nil))
	assert.Equal(t, 0.7, s.EffectiveTemperature(&ModelConfig{}))
}

func TestLoadUserConfig(t *testing.T) {
	path := writeCatalog(t, "model: gpt4\nuse_case: coding\ntemperature: 0.2\nshow_thinking: false\n")

	uc, err := LoadUserConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt4", uc.Model)
	assert.Equal(t, "coding", uc.UseCase)
	require.NotNil(t, uc.Temperature)
	assert.Equal(t, 0.2, *uc.Temperature)
	require.NotNil(t, uc.ShowThinking)
	assert.False(t, *uc.ShowThinking)

	_, err = LoadUserConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, aierrors.IsKind(err, aierrors.KindConfigNotFound))

	_, err = LoadUserConfig(writeCatalog(t, "temperature: 9.5\n"))
	assert.True(t, aierrors.IsKind(err, aierrors.KindConfigInvalid))
}

func TestCostEstimate(t *testing.T) {
	c := CostConfig{InputTokens: 0.001, OutputTokens: 0.002, MinimumCost: 0.5}
	assert.Equal(t, 0.5, c.Estimate(10, 10))
	assert.InDelta(t, 3.0, c.Estimate(1000, 1000), 1e-9)
}

package llms

import (
	"os"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/registry"
)

// ProviderRegistry holds constructed providers keyed by provider name.
type ProviderRegistry struct {
	*registry.BaseRegistry[Provider]
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// NewProvider constructs a provider from its configuration, resolving the
// API key from the environment. Ollama needs no key.
func NewProvider(name string, cfg *config.ProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, aierrors.Newf(aierrors.KindConfigInvalid, "provider %q has no configuration", name)
	}

	if cfg.Type == "ollama" {
		return NewOllamaProvider(cfg), nil
	}

	apiKey, err := resolveAPIKey(name, cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "openai":
		return NewOpenAIProvider(cfg, apiKey), nil
	case "anthropic":
		return NewAnthropicProvider(cfg, apiKey), nil
	case "gemini":
		return NewGeminiProvider(cfg, apiKey), nil
	default:
		return nil, aierrors.Newf(aierrors.KindConfigInvalid, "provider %q has unsupported type %q", name, cfg.Type)
	}
}

func resolveAPIKey(name string, cfg *config.ProviderConfig) (string, error) {
	if cfg.APIKeyEnv == "" {
		return "", aierrors.Newf(aierrors.KindCredentialsMissing,
			"provider %q declares no api_key_env", name)
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return "", aierrors.Newf(aierrors.KindCredentialsMissing,
			"environment variable %s for provider %q is not set", cfg.APIKeyEnv, name)
	}
	return key, nil
}

// Build constructs every provider in cfg and registers it. Providers with
// missing credentials are skipped and reported so one unset key does not
// take down the rest.
func (r *ProviderRegistry) Build(providers map[string]*config.ProviderConfig) []error {
	var errs []error
	for name, cfg := range providers {
		p, err := NewProvider(name, cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.Register(name, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// CloseAll closes every registered provider and clears the registry.
func (r *ProviderRegistry) CloseAll() {
	for _, p := range r.List() {
		p.Close()
	}
	r.Clear()
}

// Package config loads and exposes the immutable model, provider, agent,
// use-case and tool catalogs, with an optional per-user overlay.
//
// The Store holds one catalog snapshot behind an atomic pointer: readers
// never lock, Reload swaps the whole snapshot so a reader sees either the
// old or the new catalog, never a torn view.
package config

import (
	"sync/atomic"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
)

// Store is the process-wide configuration store.
type Store struct {
	snapshot atomic.Pointer[Config]
	overlay  atomic.Pointer[UserConfig]
	loader   *Loader
}

// NewStore creates a store over an in-memory catalog. Used by tests and by
// callers that assemble catalogs programmatically.
func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = &Config{}
	}
	s := &Store{}
	s.snapshot.Store(cfg)
	return s
}

// LoadStore loads the catalog document at path and returns a store over it.
func LoadStore(path string) (*Store, error) {
	loader, err := NewLoader(LoaderOptions{Path: path})
	if err != nil {
		return nil, err
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	s := NewStore(cfg)
	s.loader = loader
	return s, nil
}

// Watch re-creates the loader in watch mode: every on-disk change that
// parses and validates replaces the snapshot atomically.
func (s *Store) Watch() error {
	if s.loader == nil {
		return aierrors.New(aierrors.KindConfigInvalid, "store was not loaded from a file")
	}

	loader, err := NewLoader(LoaderOptions{
		Path:  s.loader.options.Path,
		Watch: true,
		OnChange: func(cfg *Config) error {
			s.snapshot.Store(cfg)
			return nil
		},
	})
	if err != nil {
		return err
	}

	s.loader.Stop()
	s.loader = loader
	return loader.StartWatch()
}

// Close stops any file watching.
func (s *Store) Close() {
	if s.loader != nil {
		s.loader.Stop()
	}
}

// Reload re-reads the catalog document and atomically swaps the snapshot.
// On failure the previous snapshot stays in place.
func (s *Store) Reload() error {
	if s.loader == nil {
		return aierrors.New(aierrors.KindConfigInvalid, "store was not loaded from a file")
	}

	cfg, err := s.loader.Load()
	if err != nil {
		return err
	}

	s.snapshot.Store(cfg)
	return nil
}

// Snapshot returns the current catalog. The returned value must be treated
// as read-only.
func (s *Store) Snapshot() *Config {
	return s.snapshot.Load()
}

// ApplyUserConfig installs the per-user overlay. Passing nil clears it.
func (s *Store) ApplyUserConfig(uc *UserConfig) {
	s.overlay.Store(uc)
}

// UserConfig returns the installed overlay, or nil.
func (s *Store) UserConfig() *UserConfig {
	return s.overlay.Load()
}

// Model returns the model entry for id.
func (s *Store) Model(id string) (*ModelConfig, error) {
	if m, ok := s.Snapshot().Models[id]; ok && m != nil {
		return m, nil
	}
	return nil, aierrors.Newf(aierrors.KindConfigNotFound, "model %q not found", id)
}

// Models returns the full model catalog.
func (s *Store) Models() map[string]*ModelConfig {
	return s.Snapshot().Models
}

// Provider returns the provider entry for id.
func (s *Store) Provider(id string) (*ProviderConfig, error) {
	if p, ok := s.Snapshot().Providers[id]; ok && p != nil {
		return p, nil
	}
	return nil, aierrors.Newf(aierrors.KindConfigNotFound, "provider %q not found", id)
}

// Agent returns the agent entry for id.
func (s *Store) Agent(id string) (*AgentConfig, error) {
	if a, ok := s.Snapshot().Agents[id]; ok && a != nil {
		return a, nil
	}
	return nil, aierrors.Newf(aierrors.KindConfigNotFound, "agent %q not found", id)
}

// Agents returns the full agent catalog.
func (s *Store) Agents() map[string]*AgentConfig {
	return s.Snapshot().Agents
}

// UseCase returns the use-case entry for id.
func (s *Store) UseCase(id string) (*UseCaseConfig, error) {
	if uc, ok := s.Snapshot().UseCases[id]; ok && uc != nil {
		return uc, nil
	}
	return nil, aierrors.Newf(aierrors.KindConfigNotFound, "use_case %q not found", id)
}

// Tool looks a tool up by name across all categories.
func (s *Store) Tool(name string) (*ToolConfig, error) {
	for _, category := range s.Snapshot().Tools.Categories {
		if t, ok := category[name]; ok && t != nil {
			return t, nil
		}
	}
	return nil, aierrors.Newf(aierrors.KindConfigNotFound, "tool %q not found", name)
}

// ToolCatalog flattens all categories into one name-keyed map.
func (s *Store) ToolCatalog() map[string]*ToolConfig {
	out := make(map[string]*ToolConfig)
	for _, category := range s.Snapshot().Tools.Categories {
		for name, t := range category {
			if t != nil {
				out[name] = t
			}
		}
	}
	return out
}

// DefaultModelID returns the effective default model: the user overlay
// first, then the catalog default.
func (s *Store) DefaultModelID() string {
	if uc := s.UserConfig(); uc != nil && uc.Model != "" {
		return uc.Model
	}
	return s.Snapshot().DefaultModel
}

// DefaultUseCase returns the user's configured use case, if any.
func (s *Store) DefaultUseCase() string {
	if uc := s.UserConfig(); uc != nil {
		return uc.UseCase
	}
	return ""
}

// EffectiveTemperature resolves the temperature for a model: user overlay,
// then model default, then 0.7.
func (s *Store) EffectiveTemperature(m *ModelConfig) float64 {
	if uc := s.UserConfig(); uc != nil && uc.Temperature != nil {
		return *uc.Temperature
	}
	if m != nil && m.Temperature != nil {
		return *m.Temperature
	}
	return 0.7
}

// SystemPromptOverride returns the user's system prompt, if set.
func (s *Store) SystemPromptOverride() string {
	if uc := s.UserConfig(); uc != nil {
		return uc.SystemPrompt
	}
	return ""
}

// ShowThinking reports whether extracted reasoning stays in message content.
// Defaults to true when the overlay does not say.
func (s *Store) ShowThinking() bool {
	if uc := s.UserConfig(); uc != nil && uc.ShowThinking != nil {
		return *uc.ShowThinking
	}
	return true
}

package config

import (
	"fmt"
)

// Quality is the coarse output quality tier of a model.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Speed is the coarse latency tier of a model.
type Speed string

const (
	SpeedFast     Speed = "fast"
	SpeedStandard Speed = "standard"
	SpeedSlow     Speed = "slow"
)

// Privacy distinguishes locally hosted models from external API models.
type Privacy string

const (
	PrivacyLocal    Privacy = "local"
	PrivacyExternal Privacy = "external"
)

// UseCase is a coarse request category driving model selection defaults.
type UseCase string

const (
	UseCaseChat              UseCase = "chat"
	UseCaseCoding            UseCase = "coding"
	UseCaseSolidityCoding    UseCase = "solidity_coding"
	UseCaseTranslation       UseCase = "translation"
	UseCaseSummarization     UseCase = "summarization"
	UseCaseDataAnalysis      UseCase = "data_analysis"
	UseCaseWebAnalysis       UseCase = "web_analysis"
	UseCaseContentGeneration UseCase = "content_generation"
	UseCaseImageGeneration   UseCase = "image_generation"
	UseCaseToolSelection     UseCase = "tool_selection"
)

// CostConfig carries per-token pricing for a model.
type CostConfig struct {
	InputTokens  float64 `yaml:"input_tokens" json:"input_tokens"`
	OutputTokens float64 `yaml:"output_tokens" json:"output_tokens"`
	MinimumCost  float64 `yaml:"minimum_cost" json:"minimum_cost"`
}

// Estimate returns the estimated cost of a request with the given token
// counts, floored by the model's minimum cost.
func (c CostConfig) Estimate(inputTokens, outputTokens int) float64 {
	cost := float64(inputTokens)*c.InputTokens + float64(outputTokens)*c.OutputTokens
	if cost < c.MinimumCost {
		return c.MinimumCost
	}
	return cost
}

// ModelConfig describes one model in the catalog.
type ModelConfig struct {
	// ModelID is the provider-side model identifier (e.g. "gpt-4o").
	ModelID string `yaml:"model_id" json:"model_id"`

	// Provider is the id of the provider entry serving this model.
	Provider string `yaml:"provider" json:"provider"`

	Quality Quality `yaml:"quality" json:"quality"`
	Speed   Speed   `yaml:"speed" json:"speed"`
	Privacy Privacy `yaml:"privacy" json:"privacy"`

	MaxTokens   int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	Cost     CostConfig `yaml:"cost" json:"cost"`
	UseCases []UseCase  `yaml:"use_cases,omitempty" json:"use_cases,omitempty"`
}

// SetDefaults applies default values.
func (c *ModelConfig) SetDefaults() {
	if c.Quality == "" {
		c.Quality = QualityMedium
	}
	if c.Speed == "" {
		c.Speed = SpeedStandard
	}
	if c.Privacy == "" {
		c.Privacy = PrivacyExternal
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Temperature == nil {
		temp := 0.7
		c.Temperature = &temp
	}
}

// Validate checks the model configuration.
func (c *ModelConfig) Validate() error {
	if c.ModelID == "" {
		return fmt.Errorf("model_id is required")
	}
	if c.Provider == "" {
		return fmt.Errorf("provider is required for model %q", c.ModelID)
	}
	switch c.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		return fmt.Errorf("invalid quality %q for model %q (valid: low, medium, high)", c.Quality, c.ModelID)
	}
	switch c.Speed {
	case SpeedFast, SpeedStandard, SpeedSlow:
	default:
		return fmt.Errorf("invalid speed %q for model %q (valid: fast, standard, slow)", c.Speed, c.ModelID)
	}
	switch c.Privacy {
	case PrivacyLocal, PrivacyExternal:
	default:
		return fmt.Errorf("invalid privacy %q for model %q (valid: local, external)", c.Privacy, c.ModelID)
	}
	return nil
}

// SupportsUseCase reports whether the model is declared for the use case.
func (c *ModelConfig) SupportsUseCase(uc UseCase) bool {
	for _, candidate := range c.UseCases {
		if candidate == uc {
			return true
		}
	}
	return false
}

// ProviderConfig describes one LLM backend endpoint.
type ProviderConfig struct {
	// Type identifies the wire protocol (openai, anthropic, gemini, ollama).
	Type string `yaml:"type" json:"type"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Timeout is the request timeout in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// MaxRetries bounds transport-level retries.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// RetryDelay is the base retry delay in seconds.
	RetryDelay int `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
}

// SetDefaults applies default values.
func (c *ProviderConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2
	}
}

// Validate checks the provider configuration.
func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case "openai", "anthropic", "gemini", "ollama":
	default:
		return fmt.Errorf("invalid provider type %q (valid: openai, anthropic, gemini, ollama)", c.Type)
	}
	// Ollama runs locally and needs no credentials.
	if c.Type != "ollama" && c.APIKeyEnv == "" {
		return fmt.Errorf("api_key_env is required for provider type %q", c.Type)
	}
	return nil
}

// AgentConfig describes one agent in the catalog.
type AgentConfig struct {
	Description  string `yaml:"description" json:"description"`
	DefaultModel string `yaml:"default_model,omitempty" json:"default_model,omitempty"`
	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	if c.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

// UseCaseConfig carries the quality/speed defaults for one use case.
type UseCaseConfig struct {
	Quality Quality `yaml:"quality" json:"quality"`
	Speed   Speed   `yaml:"speed" json:"speed"`
}

// Validate checks the use case configuration.
func (c *UseCaseConfig) Validate() error {
	switch c.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		return fmt.Errorf("invalid quality %q", c.Quality)
	}
	switch c.Speed {
	case SpeedFast, SpeedStandard, SpeedSlow:
	default:
		return fmt.Errorf("invalid speed %q", c.Speed)
	}
	return nil
}

// ToolConfig describes one catalog tool (description plus parameter schema).
// Handlers are attached at registration time, not in configuration.
type ToolConfig struct {
	Description      string                 `yaml:"description" json:"description"`
	ParametersSchema map[string]interface{} `yaml:"parameters_schema,omitempty" json:"parameters_schema,omitempty"`
}

// ToolsConfig groups catalog tools by category.
type ToolsConfig struct {
	Categories map[string]map[string]*ToolConfig `yaml:"categories,omitempty" json:"categories,omitempty"`
}

// Config is the root catalog document.
type Config struct {
	Models    map[string]*ModelConfig    `yaml:"models,omitempty" json:"models,omitempty"`
	Providers map[string]*ProviderConfig `yaml:"providers,omitempty" json:"providers,omitempty"`
	Agents    map[string]*AgentConfig    `yaml:"agents,omitempty" json:"agents,omitempty"`
	UseCases  map[string]*UseCaseConfig  `yaml:"use_cases,omitempty" json:"use_cases,omitempty"`

	// DefaultModel is the catalog-level fallback model id.
	DefaultModel string `yaml:"default_model,omitempty" json:"default_model,omitempty"`

	// Tools maps category -> tool name -> definition.
	Tools ToolsConfig `yaml:"tools,omitempty" json:"tools,omitempty"`

	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// ObservabilityConfig toggles the OTel instrument pipeline. Tracing spans
// are always emitted; only the Prometheus-exported counters are optional.
type ObservabilityConfig struct {
	MetricsEnabled bool `yaml:"metrics_enabled,omitempty" json:"metrics_enabled,omitempty"`
}

// SetDefaults applies defaults to every catalog entry.
func (c *Config) SetDefaults() {
	for _, m := range c.Models {
		if m != nil {
			m.SetDefaults()
		}
	}
	for _, p := range c.Providers {
		if p != nil {
			p.SetDefaults()
		}
	}
}

// Validate checks the whole catalog: per-entry validity, reference
// integrity, and model id uniqueness across the catalog (the selector and
// agents share one canonical id space).
func (c *Config) Validate() error {
	seen := make(map[string]string, len(c.Models))
	for id, m := range c.Models {
		if m == nil {
			return fmt.Errorf("model %q: empty entry", id)
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("model %q: %w", id, err)
		}
		if prev, dup := seen[m.ModelID]; dup {
			return fmt.Errorf("model %q: model_id %q already used by %q", id, m.ModelID, prev)
		}
		seen[m.ModelID] = id
		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q: unknown provider %q", id, m.Provider)
		}
	}
	for id, p := range c.Providers {
		if p == nil {
			return fmt.Errorf("provider %q: empty entry", id)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %q: %w", id, err)
		}
	}
	for id, a := range c.Agents {
		if a == nil {
			return fmt.Errorf("agent %q: empty entry", id)
		}
		if err := a.Validate(); err != nil {
			return fmt.Errorf("agent %q: %w", id, err)
		}
		if a.DefaultModel != "" {
			if _, ok := c.Models[a.DefaultModel]; !ok {
				return fmt.Errorf("agent %q: unknown default_model %q", id, a.DefaultModel)
			}
		}
	}
	for id, uc := range c.UseCases {
		if uc == nil {
			return fmt.Errorf("use_case %q: empty entry", id)
		}
		if err := uc.Validate(); err != nil {
			return fmt.Errorf("use_case %q: %w", id, err)
		}
	}
	if c.DefaultModel != "" {
		if _, ok := c.Models[c.DefaultModel]; !ok {
			return fmt.Errorf("unknown default_model %q", c.DefaultModel)
		}
	}
	return nil
}

// UserConfig is the per-user overlay applied on top of the base catalogs.
// Accessors consult it first; it never mutates base entries.
type UserConfig struct {
	Model        string   `yaml:"model,omitempty" json:"model,omitempty"`
	UseCase      string   `yaml:"use_case,omitempty" json:"use_case,omitempty"`
	Temperature  *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	SystemPrompt string   `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	ShowThinking *bool    `yaml:"show_thinking,omitempty" json:"show_thinking,omitempty"`
	ConfigFile   string   `yaml:"config_file,omitempty" json:"config_file,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 { return &f }

package ai

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/0x00000002/multi-ai/pkg/agent"
	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/analyzer"
	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/conversation"
	"github.com/0x00000002/multi-ai/pkg/llms"
	"github.com/0x00000002/multi-ai/pkg/logger"
	"github.com/0x00000002/multi-ai/pkg/metrics"
	"github.com/0x00000002/multi-ai/pkg/models"
	"github.com/0x00000002/multi-ai/pkg/observability"
	"github.com/0x00000002/multi-ai/pkg/prompts"
	"github.com/0x00000002/multi-ai/pkg/tools"
)

// Runtime bundles the assembled subsystems behind the package API. One
// runtime serves any number of clients.
type Runtime struct {
	store     *config.Store
	providers *llms.ProviderRegistry
	tools     *tools.ToolRegistry
	executor  *tools.Executor
	selector  *models.Selector
	metrics   *metrics.Service
	prompts   *prompts.Manager
	agents    *agent.Registry

	orchestrator *agent.Orchestrator
}

// NewRuntime builds a runtime from the catalog named in opts. Providers
// whose credentials are missing are skipped with a warning; the runtime
// only fails when nothing at all can be assembled.
func NewRuntime(opts Options) (*Runtime, error) {
	// Credentials commonly live in a .env next to the catalog.
	_ = godotenv.Load()

	if opts.LogLevel != "" {
		logger.Init(logger.ParseLevel(opts.LogLevel), os.Stderr, opts.LogFormat)
	}

	var store *config.Store
	if opts.ConfigFile != "" {
		s, err := config.LoadStore(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = config.NewStore(nil)
	}
	overlay := &config.UserConfig{ConfigFile: opts.ConfigFile}
	if opts.UserConfigFile != "" {
		uc, err := config.LoadUserConfig(opts.UserConfigFile)
		if err != nil {
			return nil, err
		}
		*overlay = *uc
	}
	if opts.Model != "" {
		overlay.Model = opts.Model
	}
	if opts.UseCase != "" {
		overlay.UseCase = opts.UseCase
	}
	if opts.Temperature != nil {
		overlay.Temperature = opts.Temperature
	}
	if opts.SystemPrompt != "" {
		overlay.SystemPrompt = opts.SystemPrompt
	}
	if opts.ShowThinking != nil {
		overlay.ShowThinking = opts.ShowThinking
	}
	store.ApplyUserConfig(overlay)

	if store.Snapshot().Observability.MetricsEnabled {
		prom, err := observability.InitMetrics(observability.MetricsConfig{Enabled: true})
		if err != nil {
			slog.Warn("Prometheus metrics disabled", "error", err)
		} else {
			observability.SetGlobalMetrics(prom)
		}
	}

	providers := llms.NewProviderRegistry()
	for _, err := range providers.Build(store.Snapshot().Providers) {
		slog.Warn("Provider skipped", "error", err)
	}

	toolReg := tools.NewToolRegistry()
	executor, err := tools.NewExecutor(toolReg)
	if err != nil {
		return nil, err
	}

	metricsService := metrics.NewService(opts.MetricsFile)
	metrics.SetDefault(metricsService)

	rt := &Runtime{
		store:     store,
		providers: providers,
		tools:     toolReg,
		executor:  executor,
		selector:  models.NewSelector(store),
		metrics:   metricsService,
		prompts:   prompts.NewManager(),
		agents:    agent.NewRegistry(),
	}
	agent.RegisterBuiltins(rt.agents)

	deps := rt.deps(nil)
	deps.Finder = rt.finder()
	rt.orchestrator = agent.NewOrchestrator(deps, agent.NewFactory(rt.agents, deps), rt.analyzer())
	return rt, nil
}

// deps assembles the collaborator set for an agent, with conv as its
// conversation (nil for stateless work).
func (rt *Runtime) deps(conv *conversation.Manager) agent.Deps {
	return agent.Deps{
		Store:        rt.store,
		Providers:    rt.providers,
		Tools:        rt.tools,
		Executor:     rt.executor,
		Selector:     rt.selector,
		Metrics:      rt.metrics,
		Conversation: conv,
	}
}

// utilityProvider resolves the provider and model used for the runtime's
// own LLM calls (analysis, tool finding).
func (rt *Runtime) utilityProvider() (llms.Provider, string, bool) {
	id := rt.store.DefaultModelID()
	if id == "" {
		return nil, "", false
	}
	m, err := rt.store.Model(id)
	if err != nil {
		return nil, "", false
	}
	p, ok := rt.providers.Get(m.Provider)
	if !ok {
		return nil, "", false
	}
	return p, m.ModelID, true
}

func (rt *Runtime) analyzer() *analyzer.Analyzer {
	if p, model, ok := rt.utilityProvider(); ok {
		return analyzer.New(p, model)
	}
	return nil
}

func (rt *Runtime) finder() tools.ToolFinder {
	if p, model, ok := rt.utilityProvider(); ok {
		return tools.NewAIToolFinder(p, model)
	}
	return tools.NewKeywordToolFinder()
}

// Orchestrator exposes the multi-agent pipeline.
func (rt *Runtime) Orchestrator() *agent.Orchestrator {
	return rt.orchestrator
}

// Prompts exposes the template manager.
func (rt *Runtime) Prompts() *prompts.Manager {
	return rt.prompts
}

// Metrics exposes the usage tracker.
func (rt *Runtime) Metrics() *metrics.Service {
	return rt.metrics
}

// RegisterTool makes a tool available to every client and agent.
func (rt *Runtime) RegisterTool(t tools.Tool) error {
	if rt.tools == nil {
		return aierrors.New(aierrors.KindDependencyUnavailable, "tool registry is not initialized")
	}
	return rt.tools.RegisterTool(t)
}

// Close releases providers and stops config watching.
func (rt *Runtime) Close() {
	if rt.providers != nil {
		rt.providers.CloseAll()
	}
	if rt.store != nil {
		rt.store.Close()
	}
}

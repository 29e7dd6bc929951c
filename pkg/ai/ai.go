// Package ai is the programmatic entry point: Configure once, then create
// clients for conversational use or hand requests to the orchestrator.
package ai

import (
	"context"
	"sync"

	"github.com/0x00000002/multi-ai/pkg/agent"
	"github.com/0x00000002/multi-ai/pkg/aierrors"
)

// Options are the process-wide defaults set by Configure.
type Options struct {
	ConfigFile  string
	MetricsFile string

	// UserConfigFile points to a per-user overlay document; explicit
	// options below win over its contents.
	UserConfigFile string

	Model        string
	UseCase      string
	Temperature  *float64
	SystemPrompt string
	ShowThinking *bool

	// LogLevel ("debug", "info", "warn", "error") and LogFormat ("simple"
	// or "verbose") reconfigure the process logger when LogLevel is set.
	LogLevel  string
	LogFormat string
}

// Option mutates the Configure options.
type Option func(*Options)

func WithConfigFile(path string) Option {
	return func(o *Options) { o.ConfigFile = path }
}

func WithMetricsFile(path string) Option {
	return func(o *Options) { o.MetricsFile = path }
}

func WithUserConfigFile(path string) Option {
	return func(o *Options) { o.UserConfigFile = path }
}

func WithModel(id string) Option {
	return func(o *Options) { o.Model = id }
}

func WithUseCase(useCase string) Option {
	return func(o *Options) { o.UseCase = useCase }
}

func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = &t }
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Options) { o.SystemPrompt = prompt }
}

func WithShowThinking(show bool) Option {
	return func(o *Options) { s := show; o.ShowThinking = &s }
}

func WithLogLevel(level string) Option {
	return func(o *Options) { o.LogLevel = level }
}

func WithLogFormat(format string) Option {
	return func(o *Options) { o.LogFormat = format }
}

var (
	defaultMu      sync.Mutex
	defaultRuntime *Runtime
)

// Configure assembles the process-wide runtime. Calling it again replaces
// the previous runtime.
func Configure(opts ...Option) error {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	rt, err := NewRuntime(o)
	if err != nil {
		return err
	}
	SetDefault(rt)
	return nil
}

// SetDefault replaces the process-wide runtime. Tests use it to install a
// runtime built around fakes.
func SetDefault(rt *Runtime) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRuntime != nil && defaultRuntime != rt {
		defaultRuntime.Close()
	}
	defaultRuntime = rt
}

// Default returns the process-wide runtime, or nil before Configure.
func Default() *Runtime {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRuntime
}

func requireDefault() (*Runtime, error) {
	if rt := Default(); rt != nil {
		return rt, nil
	}
	return nil, aierrors.New(aierrors.KindDependencyUnavailable, "ai.Configure has not been called")
}

// ProcessRequest routes one request through the default runtime's
// orchestrator.
func ProcessRequest(ctx context.Context, req *agent.Request) (*agent.Response, error) {
	rt, err := requireDefault()
	if err != nil {
		return nil, err
	}
	return rt.Orchestrator().ProcessRequest(ctx, req), nil
}

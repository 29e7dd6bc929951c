package agent

import (
	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/registry"
)

// Constructor builds an agent instance from its dependencies.
type Constructor func(id string, deps Deps) Agent

// Registry maps agent ids to constructors. Registering the same id twice
// is a no-op, so package init blocks can register unconditionally.
type Registry struct {
	base *registry.BaseRegistry[Constructor]
}

func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Constructor]()}
}

// Register adds a constructor; duplicates are silently ignored.
func (r *Registry) Register(id string, ctor Constructor) {
	r.base.RegisterIfAbsent(id, ctor)
}

func (r *Registry) Get(id string) (Constructor, bool) {
	return r.base.Get(id)
}

func (r *Registry) IDs() []string {
	return r.base.Names()
}

func (r *Registry) Count() int {
	return r.base.Count()
}

// Factory builds agents with their dependencies filled in.
type Factory struct {
	registry *Registry
	deps     Deps
}

func NewFactory(reg *Registry, deps Deps) *Factory {
	return &Factory{registry: reg, deps: deps}
}

// Create builds the agent registered under id. Unregistered ids that exist
// in the agent catalog get a BaseAgent, so configuration-only agents work
// without code.
func (f *Factory) Create(id string) (Agent, error) {
	if ctor, ok := f.registry.Get(id); ok {
		return ctor(id, f.deps), nil
	}
	if f.deps.Store != nil {
		if _, err := f.deps.Store.Agent(id); err == nil {
			return NewBaseAgent(id, f.deps), nil
		}
	}
	return nil, aierrors.Newf(aierrors.KindAgentNotFound, "agent %q is not registered", id)
}

// Descriptions returns id -> description for every creatable agent, the
// menu handed to the request analyzer.
func (f *Factory) Descriptions() map[string]string {
	out := make(map[string]string)
	if f.deps.Store != nil {
		for id, cfg := range f.deps.Store.Agents() {
			out[id] = cfg.Description
		}
	}
	for _, id := range f.registry.IDs() {
		if _, ok := out[id]; !ok {
			out[id] = id
		}
	}
	return out
}

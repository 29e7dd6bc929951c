package agent

import (
	"context"

	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/models"
)

// RegisterBuiltins registers the stock agents. Registration is idempotent,
// so callers can combine it with their own registrations freely.
func RegisterBuiltins(reg *Registry) {
	reg.Register("coding_assistant", NewCodingAssistant)
	reg.Register("listener", NewListener)
	reg.Register("tool_finder", NewToolFinderAgent)
}

// CodingAssistant handles programming requests with a coding system prompt.
type CodingAssistant struct {
	*BaseAgent
}

func NewCodingAssistant(id string, deps Deps) Agent {
	a := &CodingAssistant{BaseAgent: NewBaseAgent(id, deps)}
	if a.systemPrompt == "" {
		a.SetSystemPrompt(models.SystemPrompt(config.UseCaseCoding))
	}
	return a
}

func (a *CodingAssistant) CanHandle(request string) float64 {
	return keywordConfidence(request,
		[]string{"write a function", "write code", "implement", "debug", "refactor", "solidity", "contract"},
		[]string{"code", "python", "golang", "javascript", "script", "program"})
}

func (a *CodingAssistant) ProcessRequest(ctx context.Context, req *Request) *Response {
	req = req.Clone()
	if req.UseCase == "" || req.UseCase == config.UseCaseChat {
		req.UseCase = config.UseCaseCoding
	}
	if req.UseCase == config.UseCaseSolidityCoding && req.SystemPrompt == "" {
		req.SystemPrompt = models.SystemPrompt(config.UseCaseSolidityCoding)
	}
	return a.BaseAgent.ProcessRequest(ctx, req)
}

// Listener handles transcription-style requests. Audio input itself is out
// of band; the agent works on the transcribed text in the prompt.
type Listener struct {
	*BaseAgent
}

func NewListener(id string, deps Deps) Agent {
	a := &Listener{BaseAgent: NewBaseAgent(id, deps)}
	if a.systemPrompt == "" {
		a.SetSystemPrompt("You process transcribed speech. Clean up the text and answer the underlying request.")
	}
	return a
}

func (a *Listener) CanHandle(request string) float64 {
	return keywordConfidence(request,
		[]string{"transcribe", "transcription", "audio", "recording"},
		[]string{"listen", "speech", "voice"})
}

// ToolFinderAgent wraps the tool finder as an agent so the orchestrator
// can invoke it uniformly. Its response carries the selection in metadata
// under "selected_tools".
type ToolFinderAgent struct {
	*BaseAgent
}

func NewToolFinderAgent(id string, deps Deps) Agent {
	return &ToolFinderAgent{BaseAgent: NewBaseAgent(id, deps)}
}

func (a *ToolFinderAgent) CanHandle(string) float64 { return 0.1 }

func (a *ToolFinderAgent) ProcessRequest(ctx context.Context, req *Request) *Response {
	var selected []string
	if a.deps.Finder != nil && a.deps.Tools != nil {
		selected = a.deps.Finder.FindTools(ctx, req.Prompt, a.deps.Tools.Infos())
	}
	if selected == nil {
		selected = []string{}
	}
	return &Response{
		Status:             StatusSuccess,
		ContributingAgents: []string{a.id},
		Metadata: map[string]interface{}{
			"selected_tools": selected,
		},
	}
}

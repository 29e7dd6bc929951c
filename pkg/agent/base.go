package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/llms"
	"github.com/0x00000002/multi-ai/pkg/models"
	"github.com/0x00000002/multi-ai/pkg/observability"
	"github.com/0x00000002/multi-ai/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
)

// maxToolRounds bounds the request/tool-result loop so a model that keeps
// calling tools cannot spin forever.
const maxToolRounds = 5

// BaseAgent is the generic request handler. It resolves the model and
// provider per request, runs the tool loop and normalizes errors into
// Response values. Specialized agents embed it.
type BaseAgent struct {
	id           string
	description  string
	systemPrompt string
	defaultModel string
	deps         Deps
}

func NewBaseAgent(id string, deps Deps) *BaseAgent {
	a := &BaseAgent{id: id, deps: deps}
	if cfg, err := deps.Store.Agent(id); err == nil {
		a.description = cfg.Description
		a.defaultModel = cfg.DefaultModel
		a.systemPrompt = cfg.SystemPrompt
	}
	return a
}

func (a *BaseAgent) ID() string { return a.id }

func (a *BaseAgent) Description() string { return a.description }

func (a *BaseAgent) CanHandle(string) float64 { return 0.5 }

// SetSystemPrompt overrides the configured system prompt. Used by the
// specialized wrappers.
func (a *BaseAgent) SetSystemPrompt(prompt string) { a.systemPrompt = prompt }

// resolveModel picks the model for this request: explicit request model,
// then the agent's configured default, then the selector, then the
// catalog default.
func (a *BaseAgent) resolveModel(req *Request) (string, *config.ModelConfig, error) {
	if req.Model != "" {
		m, err := a.deps.Store.Model(req.Model)
		return req.Model, m, err
	}
	if a.defaultModel != "" {
		m, err := a.deps.Store.Model(a.defaultModel)
		return a.defaultModel, m, err
	}
	if a.deps.Selector != nil {
		if id, m, err := a.deps.Selector.Select(models.Criteria{UseCase: req.UseCase}); err == nil {
			return id, m, nil
		}
	}
	id := a.deps.Store.DefaultModelID()
	if id == "" {
		return "", nil, aierrors.New(aierrors.KindNoSuitableModel, "no model configured")
	}
	m, err := a.deps.Store.Model(id)
	return id, m, err
}

func (a *BaseAgent) provider(m *config.ModelConfig) (llms.Provider, error) {
	p, ok := a.deps.Providers.Get(m.Provider)
	if !ok {
		return nil, aierrors.Newf(aierrors.KindAgentProcessingFailed,
			"provider %q for model %q is not available", m.Provider, m.ModelID)
	}
	return p, nil
}

// ProcessRequest resolves model and provider, assembles the message list
// and runs the provider call with a bounded tool loop. Failures come back
// as Status=error, never as panics.
func (a *BaseAgent) ProcessRequest(ctx context.Context, req *Request) *Response {
	req = req.Clone()

	tracer := observability.GetTracer("agent")
	ctx, span := tracer.Start(ctx, observability.SpanAgentCall)
	defer span.End()
	span.SetAttributes(attribute.String(observability.AttrAgentID, a.id))

	start := time.Now()
	resp := a.process(ctx, req)

	if m := observability.GetGlobalMetrics(); m != nil {
		var err error
		if resp.Status == StatusError {
			err = aierrors.New(aierrors.KindAgentProcessingFailed, resp.Error)
		}
		m.RecordAgentCall(ctx, a.id, time.Since(start), err)
	}
	return resp
}

func (a *BaseAgent) process(ctx context.Context, req *Request) *Response {
	modelID, modelCfg, err := a.resolveModel(req)
	if err != nil {
		return errorResponse(fmt.Sprintf("agent %s: %v", a.id, err))
	}
	provider, err := a.provider(modelCfg)
	if err != nil {
		return errorResponse(fmt.Sprintf("agent %s: %v", a.id, err))
	}

	messages := a.buildMessages(req)
	opts := &llms.RequestOptions{
		Model:       modelCfg.ModelID,
		MaxTokens:   modelCfg.MaxTokens,
		Temperature: req.Temperature,
	}
	if opts.Temperature == nil {
		t := a.deps.Store.EffectiveTemperature(modelCfg)
		opts.Temperature = &t
	}
	if a.deps.Tools != nil && a.deps.Tools.Count() > 0 {
		opts.Tools = a.deps.Tools.Definitions(req.RelevantTools)
	}

	callStart := time.Now()
	reply, err := a.runToolLoop(ctx, provider, messages, opts, req)
	if a.deps.Metrics != nil && req.RequestID != "" {
		a.deps.Metrics.TrackModelUsage(req.RequestID, modelID,
			tokensIn(reply), tokensOut(reply), time.Since(callStart), err == nil)
	}
	if err != nil {
		slog.Warn("Agent request failed", "agent", a.id, "model", modelID, "error", err)
		return errorResponse(fmt.Sprintf("agent %s: %v", a.id, err))
	}

	if a.deps.Conversation != nil {
		a.deps.Conversation.AddMessage(protocol.NewUserMessage(req.Prompt))
		a.deps.Conversation.AddMessage(protocol.NewAssistantMessage(reply.Content))
	}

	return &Response{
		Content:            reply.Content,
		Status:             StatusSuccess,
		ContributingAgents: []string{a.id},
		Metadata: map[string]interface{}{
			"model": modelID,
		},
	}
}

func (a *BaseAgent) buildMessages(req *Request) []protocol.Message {
	var msgs []protocol.Message

	system := req.SystemPrompt
	if system == "" {
		system = a.systemPrompt
	}
	if system == "" && a.deps.Store != nil {
		system = a.deps.Store.SystemPromptOverride()
	}
	if system == "" {
		system = models.SystemPrompt(req.UseCase)
	}
	if system != "" {
		msgs = append(msgs, protocol.NewSystemMessage(system))
	}

	if a.deps.Conversation != nil {
		for _, m := range a.deps.Conversation.Messages() {
			if m.Role == protocol.RoleSystem {
				continue
			}
			msgs = append(msgs, m)
		}
	}

	return append(msgs, protocol.NewUserMessage(req.Prompt))
}

// runToolLoop performs the provider call, executing any tool calls and
// feeding results back until the model answers with text.
func (a *BaseAgent) runToolLoop(ctx context.Context, provider llms.Provider, messages []protocol.Message, opts *llms.RequestOptions, req *Request) (*llms.Reply, error) {
	reply, err := provider.Request(ctx, messages, opts)
	if err != nil {
		return nil, err
	}

	for round := 0; round < maxToolRounds && len(reply.ToolCalls) > 0; round++ {
		if a.deps.Executor == nil {
			break
		}

		messages = append(messages, protocol.Message{
			Role:      protocol.RoleAssistant,
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		})

		for _, call := range reply.ToolCalls {
			result, execErr := a.deps.Executor.Execute(ctx, call.Name, call.Arguments)
			content := result.Content
			if execErr != nil || !result.Success {
				// Tool failures flow back to the model as text; the
				// request keeps going.
				content = fmt.Sprintf("Error: %s", result.Error)
			}
			if a.deps.Metrics != nil && req.RequestID != "" {
				a.deps.Metrics.TrackToolUsage(req.RequestID, call.Name,
					result.ExecutionTime, execErr == nil && result.Success, nil)
			}
			messages = provider.AddToolMessage(messages, call.Name, content, call.ID)
		}

		reply, err = provider.Request(ctx, messages, opts)
		if err != nil {
			return nil, err
		}
	}
	return reply, nil
}

func tokensIn(r *llms.Reply) int {
	if r == nil {
		return 0
	}
	return r.InputTokens
}

func tokensOut(r *llms.Reply) int {
	if r == nil {
		return 0
	}
	return r.OutputTokens
}

// keywordConfidence scores a request against keyword sets. Shared by the
// specialized agents' CanHandle implementations.
func keywordConfidence(request string, strong, weak []string) float64 {
	lower := strings.ToLower(request)
	for _, kw := range strong {
		if strings.Contains(lower, kw) {
			return 0.9
		}
	}
	for _, kw := range weak {
		if strings.Contains(lower, kw) {
			return 0.7
		}
	}
	return 0.3
}

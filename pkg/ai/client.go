package ai

import (
	"context"
	"strings"

	"github.com/0x00000002/multi-ai/pkg/agent"
	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/conversation"
	"github.com/0x00000002/multi-ai/pkg/llms"
	"github.com/0x00000002/multi-ai/pkg/models"
	"github.com/0x00000002/multi-ai/pkg/protocol"
	"github.com/0x00000002/multi-ai/pkg/tools"
)

// Client is a conversational handle over one model. Each client keeps its
// own conversation; tools and metrics are shared through the runtime.
type Client struct {
	rt           *Runtime
	model        string
	systemPrompt string
	conv         *conversation.Manager
}

// New creates a client on the default runtime. Empty model or systemPrompt
// fall back to the configured defaults.
func New(model, systemPrompt string) (*Client, error) {
	rt, err := requireDefault()
	if err != nil {
		return nil, err
	}
	return NewClient(rt, model, systemPrompt), nil
}

// NewClient creates a client bound to an explicit runtime.
func NewClient(rt *Runtime, model, systemPrompt string) *Client {
	return &Client{
		rt:           rt,
		model:        model,
		systemPrompt: systemPrompt,
		conv:         conversation.NewManager(conversation.WithShowThinking(rt.store.ShowThinking())),
	}
}

// Request sends one prompt and returns the reply text. The exchange is
// appended to the client's conversation.
func (c *Client) Request(ctx context.Context, prompt string) (string, error) {
	return c.request(ctx, prompt, c.systemPrompt)
}

func (c *Client) request(ctx context.Context, prompt, systemPrompt string) (string, error) {
	a := agent.NewBaseAgent("client", c.rt.deps(c.conv))
	resp := a.ProcessRequest(ctx, &agent.Request{
		Prompt:       prompt,
		Model:        c.model,
		SystemPrompt: systemPrompt,
		UseCase:      config.UseCase(c.rt.store.DefaultUseCase()),
	})
	if resp.Status == agent.StatusError {
		return "", aierrors.New(aierrors.KindAgentProcessingFailed, resp.Error)
	}
	return resp.Content, nil
}

// Stream sends one prompt and yields reply text incrementally. The full
// reply joins the conversation once the stream ends.
func (c *Client) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	provider, modelCfg, err := c.resolve()
	if err != nil {
		return nil, err
	}

	messages := c.buildMessages(prompt)
	temperature := c.rt.store.EffectiveTemperature(modelCfg)
	chunks, err := provider.Stream(ctx, messages, &llms.RequestOptions{
		Model:       modelCfg.ModelID,
		MaxTokens:   modelCfg.MaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		var full strings.Builder
		for chunk := range chunks {
			if chunk.Err != nil {
				return
			}
			if chunk.Text == "" {
				continue
			}
			full.WriteString(chunk.Text)
			select {
			case out <- chunk.Text:
			case <-ctx.Done():
				return
			}
		}
		c.conv.AddInteraction(prompt, full.String())
	}()
	return out, nil
}

// RequestWithTemplate renders the template with vars and sends it. With a
// user message the rendered text becomes the system prompt instead.
func (c *Client) RequestWithTemplate(ctx context.Context, templateID string, vars map[string]string, user ...string) (string, error) {
	rendered, _, err := c.rt.prompts.Render(templateID, vars)
	if err != nil {
		return "", err
	}
	if len(user) > 0 && user[0] != "" {
		return c.request(ctx, user[0], rendered)
	}
	return c.request(ctx, rendered, c.systemPrompt)
}

// RegisterTool registers a function-backed tool on the shared registry.
func (c *Client) RegisterTool(name, description string, schema map[string]interface{},
	fn func(ctx context.Context, args map[string]interface{}) (string, error)) error {
	return c.rt.RegisterTool(tools.NewFuncTool(name, description, schema, fn))
}

// ResetConversation clears the client's history, metadata and context.
func (c *Client) ResetConversation() {
	c.conv.Reset()
}

func (c *Client) resolve() (llms.Provider, *config.ModelConfig, error) {
	id := c.model
	if id == "" {
		if sid, _, err := c.rt.selector.Select(models.Criteria{
			UseCase: config.UseCase(c.rt.store.DefaultUseCase()),
		}); err == nil {
			id = sid
		}
	}
	if id == "" {
		id = c.rt.store.DefaultModelID()
	}
	if id == "" {
		return nil, nil, aierrors.New(aierrors.KindNoSuitableModel, "no model configured")
	}
	m, err := c.rt.store.Model(id)
	if err != nil {
		return nil, nil, err
	}
	p, ok := c.rt.providers.Get(m.Provider)
	if !ok {
		return nil, nil, aierrors.Newf(aierrors.KindDependencyUnavailable,
			"provider %q for model %q is not available", m.Provider, id)
	}
	return p, m, nil
}

func (c *Client) buildMessages(prompt string) []protocol.Message {
	var msgs []protocol.Message
	system := c.systemPrompt
	if system == "" {
		system = c.rt.store.SystemPromptOverride()
	}
	if system != "" {
		msgs = append(msgs, protocol.NewSystemMessage(system))
	}
	for _, m := range c.conv.Messages() {
		if m.Role == protocol.RoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}
	return append(msgs, protocol.NewUserMessage(prompt))
}

package llms

import (
	"context"
	"encoding/json"
	"time"

	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/httpclient"
	"github.com/0x00000002/multi-ai/pkg/observability"
	"github.com/0x00000002/multi-ai/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicAPIVersion     = "2023-06-01"

	// The messages API requires max_tokens; used when the caller sets none.
	anthropicDefaultMaxTokens = 4096
)

// AnthropicProvider speaks the Anthropic messages API. System prompts travel
// in the top-level system field, tool calls and tool results as content
// blocks.
type AnthropicProvider struct {
	config     *config.ProviderConfig
	apiKey     string
	httpClient *httpclient.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
	System      string             `json:"system,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
	Error *anthropicError `json:"error,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewAnthropicProvider(cfg *config.ProviderConfig, apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		config:     cfg,
		apiKey:     apiKey,
		httpClient: createHTTPClient(cfg, httpclient.ParseAnthropicHeaders),
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Capabilities() Capability {
	return CapabilityTools | CapabilityImages
}

func (p *AnthropicProvider) Close() error { return nil }

func (p *AnthropicProvider) baseURL() string {
	if p.config.BaseURL != "" {
		return p.config.BaseURL
	}
	return defaultAnthropicBaseURL
}

func (p *AnthropicProvider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}
}

func (p *AnthropicProvider) buildRequest(messages []protocol.Message, opts *RequestOptions, stream bool) *anthropicRequest {
	req := &anthropicRequest{
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      stream,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = anthropicDefaultMaxTokens
	}
	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	for _, m := range messages {
		switch m.Role {
		case protocol.RoleSystem:
			// Concatenated when messages carry more than one system entry.
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += m.Content

		case protocol.RoleTool:
			req.Messages = append(req.Messages, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})

		case protocol.RoleAssistant:
			var blocks []anthropicContent
			if m.Content != "" {
				blocks = append(blocks, anthropicContent{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if input == nil {
					input = map[string]interface{}{}
				}
				blocks = append(blocks, anthropicContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: input,
				})
			}
			if len(blocks) > 0 {
				req.Messages = append(req.Messages, anthropicMessage{Role: "assistant", Content: blocks})
			}

		default:
			req.Messages = append(req.Messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicContent{{Type: "text", Text: m.Content}},
			})
		}
	}
	return req
}

func (p *AnthropicProvider) Request(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (*Reply, error) {
	start := time.Now()
	reply, err := p.request(ctx, messages, opts)
	recordLLMCall(ctx, opts.Model, time.Since(start), reply, err)
	return reply, err
}

func (p *AnthropicProvider) request(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (*Reply, error) {
	tracer := observability.GetTracer("llms")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest)
	defer span.End()
	span.SetAttributes(
		attribute.String(observability.AttrLLMProvider, p.Name()),
		attribute.String(observability.AttrLLMModel, opts.Model),
	)

	body, err := postJSON(ctx, p.httpClient, p.Name(), p.baseURL()+"/messages", p.headers(), p.buildRequest(messages, opts, false))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, badResponse(p.Name(), "failed to decode response", body)
	}
	if resp.Error != nil {
		return nil, badResponse(p.Name(), "API error", []byte(resp.Error.Message))
	}

	reply := &Reply{
		FinishReason: resp.StopReason,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			reply.Content += block.Text
		case "tool_use":
			args := block.Input
			if args == nil {
				args = map[string]interface{}{}
			}
			reply.ToolCalls = append(reply.ToolCalls, &protocol.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, reply.InputTokens),
		attribute.Int(observability.AttrLLMTokensOutput, reply.OutputTokens),
	)
	return reply, nil
}

func (p *AnthropicProvider) Stream(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (<-chan StreamChunk, error) {
	body, err := postJSONStream(ctx, p.httpClient, p.Name(), p.baseURL()+"/messages", p.headers(), p.buildRequest(messages, opts, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer body.Close()

		err := scanSSE(body, func(data string) bool {
			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				return true
			}
			switch event.Type {
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Text != "" {
					select {
					case ch <- StreamChunk{Text: event.Delta.Text}:
					case <-ctx.Done():
						return false
					}
				}
			case "error":
				msg := "stream error"
				if event.Error != nil {
					msg = event.Error.Message
				}
				ch <- StreamChunk{Err: badResponse(p.Name(), "stream error", []byte(msg))}
				return false
			case "message_stop":
				return false
			}
			return true
		})
		if err != nil {
			ch <- StreamChunk{Err: classifyTransportError(p.Name(), 0, err)}
		}
	}()
	return ch, nil
}

func (p *AnthropicProvider) AddToolMessage(messages []protocol.Message, name, content, toolCallID string) []protocol.Message {
	out := protocol.CloneMessages(messages)
	return append(out, protocol.NewToolMessage(name, content, toolCallID))
}

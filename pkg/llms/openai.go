package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/httpclient"
	"github.com/0x00000002/multi-ai/pkg/observability"
	"github.com/0x00000002/multi-ai/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider speaks the OpenAI chat completions API with native tool
// calling.
type OpenAIProvider struct {
	config     *config.ProviderConfig
	apiKey     string
	httpClient *httpclient.Client
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
	Tools       []openAITool    `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Choices []openAIStreamChoice `json:"choices"`
	Error   *openAIError         `json:"error,omitempty"`
}

type openAIStreamChoice struct {
	Delta struct {
		Content string `json:"content,omitempty"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewOpenAIProvider(cfg *config.ProviderConfig, apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		config:     cfg,
		apiKey:     apiKey,
		httpClient: createHTTPClient(cfg, httpclient.ParseOpenAIHeaders),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Capabilities() Capability {
	return CapabilityTools | CapabilityImages
}

func (p *OpenAIProvider) Close() error { return nil }

func (p *OpenAIProvider) baseURL() string {
	if p.config.BaseURL != "" {
		return p.config.BaseURL
	}
	return defaultOpenAIBaseURL
}

func (p *OpenAIProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

func (p *OpenAIProvider) buildRequest(messages []protocol.Message, opts *RequestOptions, stream bool) *openAIRequest {
	req := &openAIRequest{
		Model:       opts.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: opts.Temperature,
		Stream:      stream,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = &opts.MaxTokens
	}
	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return req
}

func toOpenAIMessages(messages []protocol.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		msg := openAIMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		if m.Role == protocol.RoleTool {
			msg.Name = m.Name
			msg.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			args, err := tc.ArgumentsJSON()
			if err != nil {
				args = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openAIFunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func (p *OpenAIProvider) Request(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (*Reply, error) {
	start := time.Now()
	reply, err := p.request(ctx, messages, opts)
	recordLLMCall(ctx, opts.Model, time.Since(start), reply, err)
	return reply, err
}

func (p *OpenAIProvider) request(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (*Reply, error) {
	tracer := observability.GetTracer("llms")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest)
	defer span.End()
	span.SetAttributes(
		attribute.String(observability.AttrLLMProvider, p.Name()),
		attribute.String(observability.AttrLLMModel, opts.Model),
	)

	body, err := postJSON(ctx, p.httpClient, p.Name(), p.baseURL()+"/chat/completions", p.headers(), p.buildRequest(messages, opts, false))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, badResponse(p.Name(), "failed to decode response", body)
	}
	if resp.Error != nil {
		return nil, badResponse(p.Name(), "API error", []byte(resp.Error.Message))
	}
	if len(resp.Choices) == 0 {
		return nil, badResponse(p.Name(), "response has no choices", body)
	}

	choice := resp.Choices[0]
	reply := &Reply{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]interface{}{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, badResponse(p.Name(),
					fmt.Sprintf("malformed arguments for tool call %s", tc.ID),
					[]byte(tc.Function.Arguments))
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, &protocol.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, reply.InputTokens),
		attribute.Int(observability.AttrLLMTokensOutput, reply.OutputTokens),
	)
	return reply, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (<-chan StreamChunk, error) {
	body, err := postJSONStream(ctx, p.httpClient, p.Name(), p.baseURL()+"/chat/completions", p.headers(), p.buildRequest(messages, opts, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer body.Close()

		err := scanSSE(body, func(data string) bool {
			var chunk openAIStreamResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Skip malformed keep-alive frames.
				return true
			}
			if chunk.Error != nil {
				ch <- StreamChunk{Err: badResponse(p.Name(), "stream error", []byte(chunk.Error.Message))}
				return false
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				select {
				case ch <- StreamChunk{Text: chunk.Choices[0].Delta.Content}:
				case <-ctx.Done():
					return false
				}
			}
			return true
		})
		if err != nil {
			ch <- StreamChunk{Err: classifyTransportError(p.Name(), 0, err)}
		}
	}()
	return ch, nil
}

func (p *OpenAIProvider) AddToolMessage(messages []protocol.Message, name, content, toolCallID string) []protocol.Message {
	out := protocol.CloneMessages(messages)
	return append(out, protocol.NewToolMessage(name, content, toolCallID))
}

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

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaProvider speaks the Ollama /api/chat endpoint. Local, no API key,
// native tool calling, newline-delimited JSON streaming.
type OllamaProvider struct {
	config     *config.ProviderConfig
	httpClient *httpclient.Client
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
	Error           string        `json:"error,omitempty"`
}

func NewOllamaProvider(cfg *config.ProviderConfig) *OllamaProvider {
	return &OllamaProvider{
		config:     cfg,
		httpClient: createHTTPClient(cfg, httpclient.ParseRetryAfterOnly),
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Capabilities() Capability {
	return CapabilityTools
}

func (p *OllamaProvider) Close() error { return nil }

func (p *OllamaProvider) baseURL() string {
	if p.config.BaseURL != "" {
		return p.config.BaseURL
	}
	return defaultOllamaBaseURL
}

func (p *OllamaProvider) buildRequest(messages []protocol.Message, opts *RequestOptions, stream bool) *ollamaRequest {
	req := &ollamaRequest{
		Model:  opts.Model,
		Stream: stream,
	}
	if opts.MaxTokens > 0 || opts.Temperature != nil {
		req.Options = &ollamaOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		}
	}
	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	for _, m := range messages {
		msg := ollamaMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		if m.Role == protocol.RoleTool {
			// Ollama's tool role carries no call id; the content ordering
			// ties results to calls.
			msg.Content = m.Content
		}
		for _, tc := range m.ToolCalls {
			args := tc.Arguments
			if args == nil {
				args = map[string]interface{}{}
			}
			msg.ToolCalls = append(msg.ToolCalls, ollamaToolCall{
				Function: ollamaFunctionCall{Name: tc.Name, Arguments: args},
			})
		}
		req.Messages = append(req.Messages, msg)
	}
	return req
}

func (p *OllamaProvider) Request(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (*Reply, error) {
	start := time.Now()
	reply, err := p.request(ctx, messages, opts)
	recordLLMCall(ctx, opts.Model, time.Since(start), reply, err)
	return reply, err
}

func (p *OllamaProvider) request(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (*Reply, error) {
	tracer := observability.GetTracer("llms")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest)
	defer span.End()
	span.SetAttributes(
		attribute.String(observability.AttrLLMProvider, p.Name()),
		attribute.String(observability.AttrLLMModel, opts.Model),
	)

	body, err := postJSON(ctx, p.httpClient, p.Name(), p.baseURL()+"/api/chat", nil, p.buildRequest(messages, opts, false))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, badResponse(p.Name(), "failed to decode response", body)
	}
	if resp.Error != "" {
		return nil, badResponse(p.Name(), "API error", []byte(resp.Error))
	}

	reply := &Reply{
		Content:      resp.Message.Content,
		FinishReason: resp.DoneReason,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}
	for i, tc := range resp.Message.ToolCalls {
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]interface{}{}
		}
		reply.ToolCalls = append(reply.ToolCalls, &protocol.ToolCall{
			ID:        fmt.Sprintf("call-%d-%s", i, tc.Function.Name),
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

func (p *OllamaProvider) Stream(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (<-chan StreamChunk, error) {
	body, err := postJSONStream(ctx, p.httpClient, p.Name(), p.baseURL()+"/api/chat", nil, p.buildRequest(messages, opts, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer body.Close()

		err := scanNDJSON(body, func(line string) bool {
			var chunk ollamaResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				return true
			}
			if chunk.Error != "" {
				ch <- StreamChunk{Err: badResponse(p.Name(), "stream error", []byte(chunk.Error))}
				return false
			}
			if chunk.Message.Content != "" {
				select {
				case ch <- StreamChunk{Text: chunk.Message.Content}:
				case <-ctx.Done():
					return false
				}
			}
			return !chunk.Done
		})
		if err != nil {
			ch <- StreamChunk{Err: classifyTransportError(p.Name(), 0, err)}
		}
	}()
	return ch, nil
}

func (p *OllamaProvider) AddToolMessage(messages []protocol.Message, name, content, toolCallID string) []protocol.Message {
	out := protocol.CloneMessages(messages)
	return append(out, protocol.NewToolMessage(name, content, toolCallID))
}

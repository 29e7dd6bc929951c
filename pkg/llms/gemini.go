package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/httpclient"
	"github.com/0x00000002/multi-ai/pkg/observability"
	"github.com/0x00000002/multi-ai/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider speaks the Gemini generateContent API. Gemini has no tool
// role and no native tool-calling path here, so tools are emulated: the
// instruction block from BuildToolInstruction rides in the system text and
// replies are checked with ParseEmulatedToolCall. Tool results are fed back
// as user messages prefixed with the tool name.
type GeminiProvider struct {
	config     *config.ProviderConfig
	apiKey     string
	httpClient *httpclient.Client
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
	Error         *geminiError         `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewGeminiProvider(cfg *config.ProviderConfig, apiKey string) *GeminiProvider {
	return &GeminiProvider{
		config:     cfg,
		apiKey:     apiKey,
		httpClient: createHTTPClient(cfg, httpclient.ParseRetryAfterOnly),
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Capabilities() Capability {
	// CapabilityTools is still advertised: calls are emulated, the caller
	// does not see the difference.
	return CapabilityTools | CapabilityImages
}

func (p *GeminiProvider) Close() error { return nil }

func (p *GeminiProvider) baseURL() string {
	if p.config.BaseURL != "" {
		return p.config.BaseURL
	}
	return defaultGeminiBaseURL
}

func (p *GeminiProvider) endpoint(model, action string) string {
	return fmt.Sprintf("%s/models/%s:%s?key=%s", p.baseURL(), model, action, p.apiKey)
}

func (p *GeminiProvider) buildRequest(messages []protocol.Message, opts *RequestOptions) *geminiRequest {
	req := &geminiRequest{}
	if opts.MaxTokens > 0 || opts.Temperature != nil {
		req.GenerationConfig = &geminiGenerationConfig{
			MaxOutputTokens: opts.MaxTokens,
			Temperature:     opts.Temperature,
		}
	}

	var system []string
	for _, m := range messages {
		switch m.Role {
		case protocol.RoleSystem:
			system = append(system, m.Content)

		case protocol.RoleAssistant:
			text := m.Content
			// Assistant tool calls re-enter history as the emulated JSON
			// they were parsed from.
			for _, tc := range m.ToolCalls {
				if args, err := json.Marshal(map[string]interface{}{
					"tool":       tc.Name,
					"parameters": tc.Arguments,
				}); err == nil {
					text = string(args)
				}
			}
			req.Contents = append(req.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: text}},
			})

		case protocol.RoleTool:
			req.Contents = append(req.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: fmt.Sprintf("Tool %s returned: %s", m.Name, m.Content)}},
			})

		default:
			req.Contents = append(req.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}

	if instruction := BuildToolInstruction(opts.Tools); instruction != "" {
		system = append(system, instruction)
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}},
		}
	}
	return req
}

func (p *GeminiProvider) Request(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (*Reply, error) {
	start := time.Now()
	reply, err := p.request(ctx, messages, opts)
	recordLLMCall(ctx, opts.Model, time.Since(start), reply, err)
	return reply, err
}

func (p *GeminiProvider) request(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (*Reply, error) {
	tracer := observability.GetTracer("llms")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest)
	defer span.End()
	span.SetAttributes(
		attribute.String(observability.AttrLLMProvider, p.Name()),
		attribute.String(observability.AttrLLMModel, opts.Model),
	)

	body, err := postJSON(ctx, p.httpClient, p.Name(), p.endpoint(opts.Model, "generateContent"), nil, p.buildRequest(messages, opts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, badResponse(p.Name(), "failed to decode response", body)
	}
	if resp.Error != nil {
		return nil, badResponse(p.Name(), "API error", []byte(resp.Error.Message))
	}
	if len(resp.Candidates) == 0 {
		return nil, badResponse(p.Name(), "response has no candidates", body)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	reply := &Reply{
		Content:      text.String(),
		FinishReason: resp.Candidates[0].FinishReason,
	}
	if resp.UsageMetadata != nil {
		reply.InputTokens = resp.UsageMetadata.PromptTokenCount
		reply.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}

	if len(opts.Tools) > 0 {
		// A hallucinated tool name stays plain text; only names actually
		// advertised to the model become calls.
		if call, ok := ParseEmulatedToolCall(reply.Content); ok && toolOffered(opts.Tools, call.Name) {
			reply.ToolCalls = []*protocol.ToolCall{call}
			reply.Content = ""
		}
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, reply.InputTokens),
		attribute.Int(observability.AttrLLMTokensOutput, reply.OutputTokens),
	)
	return reply, nil
}

func (p *GeminiProvider) Stream(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (<-chan StreamChunk, error) {
	url := p.endpoint(opts.Model, "streamGenerateContent") + "&alt=sse"
	body, err := postJSONStream(ctx, p.httpClient, p.Name(), url, nil, p.buildRequest(messages, opts))
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer body.Close()

		err := scanSSE(body, func(data string) bool {
			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return true
			}
			if chunk.Error != nil {
				ch <- StreamChunk{Err: badResponse(p.Name(), "stream error", []byte(chunk.Error.Message))}
				return false
			}
			for _, cand := range chunk.Candidates {
				for _, part := range cand.Content.Parts {
					if part.Text == "" {
						continue
					}
					select {
					case ch <- StreamChunk{Text: part.Text}:
					case <-ctx.Done():
						return false
					}
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

// AddToolMessage appends the tool result as a user-visible tool message.
// buildRequest rewrites it into a plain user turn on the wire.
func (p *GeminiProvider) AddToolMessage(messages []protocol.Message, name, content, toolCallID string) []protocol.Message {
	out := protocol.CloneMessages(messages)
	return append(out, protocol.NewToolMessage(name, content, toolCallID))
}

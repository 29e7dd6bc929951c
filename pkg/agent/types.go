// Package agent implements the request-handling agents: the base agent,
// the specialized wrappers, the response aggregator and the orchestrator
// that coordinates them.
package agent

import (
	"context"

	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/conversation"
	"github.com/0x00000002/multi-ai/pkg/llms"
	"github.com/0x00000002/multi-ai/pkg/metrics"
	"github.com/0x00000002/multi-ai/pkg/models"
	"github.com/0x00000002/multi-ai/pkg/tools"
)

// Status classifies an agent response.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// Request is one unit of work handed to an agent. The orchestrator
// enriches it before fan-out; agents treat it as read-only and copy before
// mutating.
type Request struct {
	RequestID    string
	Prompt       string
	UseCase      config.UseCase
	Model        string
	SystemPrompt string
	Temperature  *float64

	// RelevantTools restricts the tools offered to the provider. Nil
	// means every registered tool.
	RelevantTools []string

	Context  map[string]interface{}
	Metadata map[string]interface{}
}

// Clone returns a copy safe to mutate.
func (r *Request) Clone() *Request {
	out := *r
	if r.RelevantTools != nil {
		out.RelevantTools = append([]string(nil), r.RelevantTools...)
	}
	out.Context = copyMap(r.Context)
	out.Metadata = copyMap(r.Metadata)
	return &out
}

// Response is the outcome of one agent processing a request.
type Response struct {
	Content            string                 `json:"content"`
	Status             Status                 `json:"status"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
	ContributingAgents []string               `json:"contributing_agents,omitempty"`
	Error              string                 `json:"error,omitempty"`

	// Confidence carries the analyzer's score for ordering before
	// aggregation.
	Confidence float64 `json:"confidence,omitempty"`
}

// Agent handles requests for one domain.
type Agent interface {
	ID() string

	ProcessRequest(ctx context.Context, req *Request) *Response

	// CanHandle reports the agent's own confidence for a request.
	CanHandle(request string) float64
}

// Deps carries the collaborators agents need. The factory fills missing
// fields with defaults.
type Deps struct {
	Store        *config.Store
	Providers    *llms.ProviderRegistry
	Tools        *tools.ToolRegistry
	Executor     *tools.Executor
	Finder       tools.ToolFinder
	Selector     *models.Selector
	Metrics      *metrics.Service
	Conversation *conversation.Manager
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func errorResponse(msg string) *Response {
	return &Response{Status: StatusError, Content: msg, Error: msg}
}

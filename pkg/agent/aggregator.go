package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/llms"
	"github.com/0x00000002/multi-ai/pkg/models"
	"github.com/0x00000002/multi-ai/pkg/observability"
	"github.com/0x00000002/multi-ai/pkg/protocol"
)

const noAgentsMessage = "No agents were able to process your request."

// agentResult pairs an agent's response with its identity and confidence
// for ordering and attribution during aggregation.
type agentResult struct {
	AgentID    string
	Confidence float64
	Response   *Response
}

// Aggregator fuses multiple agent responses into one. With two or more
// responses an LLM merges them; on merge failure the highest-confidence
// response is returned with Status=partial.
type Aggregator struct {
	deps Deps
}

func NewAggregator(deps Deps) *Aggregator {
	return &Aggregator{deps: deps}
}

// Aggregate assumes results are already ordered by confidence descending.
func (ag *Aggregator) Aggregate(ctx context.Context, results []agentResult, originalRequest string) *Response {
	switch len(results) {
	case 0:
		return &Response{
			Content: noAgentsMessage,
			Status:  StatusError,
			Error:   noAgentsMessage,
		}
	case 1:
		out := *results[0].Response
		out.ContributingAgents = []string{results[0].AgentID}
		return &out
	}

	merged, err := ag.merge(ctx, results, originalRequest)
	if err == nil {
		return merged
	}

	slog.Warn("Aggregation failed, falling back to best response", "error", err)
	best := results[0]
	out := *best.Response
	out.Status = StatusPartial
	out.ContributingAgents = contributorIDs(results)
	if out.Metadata == nil {
		out.Metadata = make(map[string]interface{})
	}
	out.Metadata["note"] = fmt.Sprintf("aggregation error: %v; returning the response from %s", err, best.AgentID)
	return &out
}

func (ag *Aggregator) merge(ctx context.Context, results []agentResult, originalRequest string) (*Response, error) {
	var b strings.Builder
	b.WriteString("Merge the following agent responses into one coherent answer to the user's request. ")
	b.WriteString("Keep all correct information, drop duplicates, and do not mention the agents.\n\n")
	b.WriteString("User request: ")
	b.WriteString(originalRequest)
	b.WriteString("\n\n")
	for i, r := range results {
		b.WriteString(fmt.Sprintf("--- Response %d (%s, %.2f, %s) ---\n%s\n\n",
			i+1, r.AgentID, r.Confidence, r.Response.Status, r.Response.Content))
	}

	modelID, modelCfg, provider, err := ag.aggregationModel()
	if err != nil {
		return nil, aierrors.Wrap(aierrors.KindAggregationFailed, "no model available for aggregation", err)
	}

	tracer := observability.GetTracer("agent")
	ctx, span := tracer.Start(ctx, observability.SpanAggregation)
	defer span.End()

	reply, err := provider.Request(ctx, []protocol.Message{protocol.NewUserMessage(b.String())},
		&llms.RequestOptions{Model: modelCfg.ModelID, MaxTokens: modelCfg.MaxTokens})
	if err != nil {
		span.RecordError(err)
		return nil, aierrors.Wrap(aierrors.KindAggregationFailed, "merging agent responses failed", err)
	}

	return &Response{
		Content:            reply.Content,
		Status:             StatusSuccess,
		ContributingAgents: contributorIDs(results),
		Metadata: map[string]interface{}{
			"aggregation_model": modelID,
		},
	}, nil
}

func (ag *Aggregator) aggregationModel() (string, *config.ModelConfig, llms.Provider, error) {
	var (
		id  string
		cfg *config.ModelConfig
		err error
	)
	if ag.deps.Selector != nil {
		id, cfg, err = ag.deps.Selector.Select(models.Criteria{UseCase: config.UseCaseSummarization})
	}
	if cfg == nil {
		id = ag.deps.Store.DefaultModelID()
		cfg, err = ag.deps.Store.Model(id)
		if err != nil {
			return "", nil, nil, err
		}
	}
	provider, ok := ag.deps.Providers.Get(cfg.Provider)
	if !ok {
		return "", nil, nil, fmt.Errorf("provider %q for aggregation model %q is not available", cfg.Provider, id)
	}
	return id, cfg, provider, nil
}

func contributorIDs(results []agentResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.AgentID)
	}
	return out
}

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/0x00000002/multi-ai/pkg/analyzer"
	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/models"
	"github.com/0x00000002/multi-ai/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxParallelAgents caps the fan-out per request.
const DefaultMaxParallelAgents = 3

// useCaseKeywords maps prompt keywords to use cases. Scanned in order,
// first match wins; solidity comes before the generic code words so they
// cannot shadow it.
var useCaseKeywords = []struct {
	useCase  config.UseCase
	keywords []string
}{
	{config.UseCaseSolidityCoding, []string{"solidity", "erc20", "erc721", "smart contract"}},
	{config.UseCaseCoding, []string{"code", "function", "python", "golang", "javascript", "debug", "script", "program", "implement"}},
	{config.UseCaseTranslation, []string{"translate", "translation"}},
	{config.UseCaseSummarization, []string{"summarize", "summary", "tl;dr"}},
	{config.UseCaseDataAnalysis, []string{"analyze the data", "data analysis", "dataset", "csv"}},
	{config.UseCaseWebAnalysis, []string{"analyze this website", "web page", "webpage", "url"}},
	{config.UseCaseContentGeneration, []string{"write a blog", "write an article", "marketing copy", "write a post"}},
	{config.UseCaseImageGeneration, []string{"generate an image", "draw", "picture of", "image of"}},
}

// DetectUseCase scans the lowercased prompt for use-case keywords. The
// default is chat.
func DetectUseCase(prompt string) config.UseCase {
	lower := strings.ToLower(prompt)
	for _, entry := range useCaseKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.useCase
			}
		}
	}
	return config.UseCaseChat
}

// Orchestrator coordinates agents for one request: use-case detection,
// model selection, tool finding, agent classification, parallel fan-out
// and aggregation.
type Orchestrator struct {
	deps       Deps
	factory    *Factory
	analyzer   *analyzer.Analyzer
	aggregator *Aggregator

	maxParallel int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

func WithMaxParallelAgents(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.maxParallel = n }
}

// NewOrchestrator builds the orchestrator with a factory handle. The
// analyzer may be nil, in which case every request is handled directly.
func NewOrchestrator(deps Deps, factory *Factory, an *analyzer.Analyzer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		deps:        deps,
		factory:     factory,
		analyzer:    an,
		aggregator:  NewAggregator(deps),
		maxParallel: DefaultMaxParallelAgents,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessRequest runs the full pipeline. It never panics; catastrophic
// failures come back as a Status=error response.
func (o *Orchestrator) ProcessRequest(ctx context.Context, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Orchestrator panic", "panic", r)
			resp = errorResponse(fmt.Sprintf("An error occurred while processing your request: %v", r))
		}
	}()

	req = req.Clone()

	// Step 1: request id and metrics.
	if o.deps.Metrics != nil {
		req.RequestID = o.deps.Metrics.StartRequestTracking(req.RequestID, req.Prompt, req.Metadata)
	}

	tracer := observability.GetTracer("orchestrator")
	ctx, span := tracer.Start(ctx, observability.SpanRequest)
	defer span.End()
	span.SetAttributes(attribute.String(observability.AttrRequestID, req.RequestID))

	resp = o.process(ctx, req)

	// Step 10: attach request metadata and close metrics.
	if resp.Metadata == nil {
		resp.Metadata = make(map[string]interface{})
	}
	resp.Metadata["request_id"] = req.RequestID
	resp.Metadata["agents_used"] = resp.ContributingAgents
	if o.deps.Metrics != nil {
		// Tools actually executed, not merely found relevant.
		if record, ok := o.deps.Metrics.Request(req.RequestID); ok && len(record.ToolsUsed) > 0 {
			resp.Metadata["tools_used"] = record.ToolsUsed
		}
		o.deps.Metrics.EndRequestTracking(req.RequestID, resp.Status != StatusError, resp.Error)
	}
	return resp
}

func (o *Orchestrator) process(ctx context.Context, req *Request) *Response {
	// Step 3: use-case detection.
	if req.UseCase == "" || !validUseCase(req.UseCase) {
		req.UseCase = DetectUseCase(req.Prompt)
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(observability.AttrUseCase, string(req.UseCase)))

	// Step 4: model selection.
	if req.Model == "" && o.deps.Selector != nil {
		if id, _, err := o.deps.Selector.Select(models.Criteria{UseCase: req.UseCase}); err == nil {
			req.Model = id
		}
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = models.SystemPrompt(req.UseCase)
	}

	// Step 5: tool finding. Failures mean no tools, not a failed request.
	if o.deps.Finder != nil && o.deps.Tools != nil && o.deps.Tools.Count() > 0 {
		req.RelevantTools = o.deps.Finder.FindTools(ctx, req.Prompt, o.deps.Tools.Infos())
	}

	// Step 6: agent classification.
	var matches []analyzer.AgentMatch
	if o.analyzer != nil {
		matches = o.analyzer.AnalyzeRequest(ctx, req.Prompt, o.factory.Descriptions())
	}

	// Step 7: no matches, handle directly.
	if len(matches) == 0 {
		direct := NewBaseAgent("orchestrator", o.deps)
		resp := direct.ProcessRequest(ctx, req)
		o.trackAgent(req.RequestID, "orchestrator", 1.0, resp)
		return resp
	}

	// Step 8: parallel fan-out over the top agents.
	if len(matches) > o.maxParallel {
		matches = matches[:o.maxParallel]
	}
	results := o.fanOut(ctx, req, matches)

	// Step 9: aggregation over confidence-ordered results.
	return o.aggregator.Aggregate(ctx, results, req.Prompt)
}

// fanOut invokes the matched agents concurrently and returns their
// results ordered by confidence descending, not by arrival.
func (o *Orchestrator) fanOut(ctx context.Context, req *Request, matches []analyzer.AgentMatch) []agentResult {
	results := make([]agentResult, len(matches))

	g, gctx := errgroup.WithContext(ctx)
	for i, match := range matches {
		g.Go(func() error {
			agentReq := req.Clone()
			// Per-agent model choice beats the request-level selection.
			if cfg, err := o.deps.Store.Agent(match.AgentID); err == nil && cfg.DefaultModel != "" {
				agentReq.Model = cfg.DefaultModel
			}
			// Each concurrent agent works on its own conversation copy.
			deps := o.deps
			if deps.Conversation != nil {
				deps.Conversation = deps.Conversation.Clone()
			}

			var resp *Response
			a, err := o.factoryCreate(match.AgentID, deps)
			if err != nil {
				resp = errorResponse(err.Error())
			} else {
				start := time.Now()
				resp = a.ProcessRequest(gctx, agentReq)
				o.trackAgentTimed(req.RequestID, match.AgentID, match.Confidence, resp, time.Since(start))
			}
			resp.Confidence = match.Confidence
			results[i] = agentResult{AgentID: match.AgentID, Confidence: match.Confidence, Response: resp}
			return nil
		})
	}
	_ = g.Wait()

	// Matches arrive sorted, but re-sort so aggregation order never
	// depends on scheduling.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Confidence > results[j].Confidence })

	// Error responses reach aggregation too; their status rides along in
	// the merge prompt and a lone failure keeps its diagnostic.
	return results
}

func (o *Orchestrator) factoryCreate(id string, deps Deps) (Agent, error) {
	f := NewFactory(o.factory.registry, deps)
	return f.Create(id)
}

func (o *Orchestrator) trackAgent(requestID, agentID string, confidence float64, resp *Response) {
	o.trackAgentTimed(requestID, agentID, confidence, resp, 0)
}

func (o *Orchestrator) trackAgentTimed(requestID, agentID string, confidence float64, resp *Response, duration time.Duration) {
	if o.deps.Metrics == nil || requestID == "" {
		return
	}
	o.deps.Metrics.TrackAgentUsage(requestID, agentID, confidence, duration,
		resp != nil && resp.Status != StatusError, nil)
}

func validUseCase(uc config.UseCase) bool {
	switch uc {
	case config.UseCaseChat, config.UseCaseCoding, config.UseCaseSolidityCoding,
		config.UseCaseTranslation, config.UseCaseSummarization, config.UseCaseDataAnalysis,
		config.UseCaseWebAnalysis, config.UseCaseContentGeneration,
		config.UseCaseImageGeneration, config.UseCaseToolSelection:
		return true
	}
	return false
}

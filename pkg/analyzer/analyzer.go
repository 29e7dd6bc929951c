// Package analyzer classifies a request against the registered agents and
// tools using a small model. Analyzer failures never fail the request; the
// caller gets an empty result and proceeds.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/llms"
	"github.com/0x00000002/multi-ai/pkg/protocol"
)

// DefaultConfidenceThreshold drops agents the model is unsure about.
const DefaultConfidenceThreshold = 0.6

// AgentMatch pairs an agent id with the model's confidence that it should
// handle the request.
type AgentMatch struct {
	AgentID    string
	Confidence float64
}

// pairRe recovers ["name", 0.x] pairs when the reply is not valid JSON.
var pairRe = regexp.MustCompile(`"([a-zA-Z0-9_\-]+)"\s*,\s*(0?\.\d+|1\.0|1|0)`)

// Option configures an Analyzer.
type Option func(*Analyzer)

func WithThreshold(t float64) Option {
	return func(a *Analyzer) { a.threshold = t }
}

// WithPromptTemplate overrides the built-in classification prompt. The
// template must contain %s twice: agent menu, then the request.
func WithPromptTemplate(tpl string) Option {
	return func(a *Analyzer) { a.template = tpl }
}

// Analyzer asks a model which agents or tools fit a request.
type Analyzer struct {
	provider  llms.Provider
	model     string
	threshold float64
	template  string
}

const defaultTemplate = `You route user requests to specialized agents.

Available agents:
%s
Reply with a JSON array of [agent_id, confidence] pairs, confidence between
0 and 1, covering only agents that could help. Example:
[["coding_assistant", 0.9], ["listener", 0.3]]

User request: %s`

func New(provider llms.Provider, model string, opts ...Option) *Analyzer {
	a := &Analyzer{
		provider:  provider,
		model:     model,
		threshold: DefaultConfidenceThreshold,
		template:  defaultTemplate,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeRequest returns the matching agents sorted by confidence
// descending. Ties keep the model's original order. Every returned
// confidence is at or above the threshold.
func (a *Analyzer) AnalyzeRequest(ctx context.Context, request string, agents map[string]string) []AgentMatch {
	if len(agents) == 0 {
		return nil
	}

	var menu strings.Builder
	for _, id := range sortedKeys(agents) {
		menu.WriteString(fmt.Sprintf("- %s: %s\n", id, agents[id]))
	}

	prompt := fmt.Sprintf(a.template, menu.String(), request)
	reply, err := a.provider.Request(ctx, []protocol.Message{protocol.NewUserMessage(prompt)},
		&llms.RequestOptions{Model: a.model})
	if err != nil {
		slog.Warn("Request analysis failed, orchestrator will handle directly", "error", err)
		return nil
	}

	matches, perr := parseAgentPairs(reply.Content)
	if perr != nil {
		slog.Warn("Could not parse classification reply, orchestrator will handle directly", "error", perr)
		return nil
	}

	var out []AgentMatch
	for _, m := range matches {
		if _, known := agents[m.AgentID]; !known {
			slog.Warn("Analyzer returned an unknown agent", "agent", m.AgentID)
			continue
		}
		if m.Confidence >= a.threshold {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// AnalyzeTools returns tool names the model considers relevant, filtered to
// the known set.
func (a *Analyzer) AnalyzeTools(ctx context.Context, request string, tools map[string]string) []string {
	if len(tools) == 0 {
		return nil
	}

	var menu strings.Builder
	for _, name := range sortedKeys(tools) {
		menu.WriteString(fmt.Sprintf("- %s: %s\n", name, tools[name]))
	}

	prompt := fmt.Sprintf(`You pick the tools needed for a user request.

Available tools:
%s
Reply with a JSON array of tool names, e.g. ["tool_a"]. Reply [] for none.

User request: %s`, menu.String(), request)

	reply, err := a.provider.Request(ctx, []protocol.Message{protocol.NewUserMessage(prompt)},
		&llms.RequestOptions{Model: a.model})
	if err != nil {
		slog.Warn("Tool analysis failed, proceeding without tools", "error", err)
		return nil
	}

	var names []string
	trimmed := strings.TrimSpace(reply.Content)
	if start := strings.IndexByte(trimmed, '['); start >= 0 {
		if end := strings.LastIndexByte(trimmed, ']'); end > start {
			json.Unmarshal([]byte(trimmed[start:end+1]), &names)
		}
	}

	var out []string
	for _, name := range names {
		if _, known := tools[name]; known {
			out = append(out, name)
		}
	}
	return out
}

// parseAgentPairs reads a JSON array of [id, confidence] pairs, falling
// back to regex extraction when the reply is not clean JSON. A reply that
// yields nothing and is not an empty array is a parse failure.
func parseAgentPairs(content string) ([]AgentMatch, error) {
	trimmed := strings.TrimSpace(content)

	if start := strings.IndexByte(trimmed, '['); start >= 0 {
		if end := strings.LastIndexByte(trimmed, ']'); end > start {
			if strings.TrimSpace(trimmed[start:end+1]) == "[]" {
				return nil, nil
			}
			var pairs [][2]interface{}
			if err := json.Unmarshal([]byte(trimmed[start:end+1]), &pairs); err == nil {
				var out []AgentMatch
				for _, p := range pairs {
					id, okID := p[0].(string)
					conf, okConf := p[1].(float64)
					if okID && okConf {
						out = append(out, AgentMatch{AgentID: id, Confidence: conf})
					}
				}
				if len(out) > 0 {
					return out, nil
				}
			}
		}
	}

	var out []AgentMatch
	for _, m := range pairRe.FindAllStringSubmatch(trimmed, -1) {
		conf, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		out = append(out, AgentMatch{AgentID: m[1], Confidence: conf})
	}
	if len(out) == 0 {
		return nil, aierrors.Newf(aierrors.KindResponseParseFailed,
			"classification reply is not a [id, confidence] array: %.80s", trimmed)
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package metrics tracks per-request usage of agents, tools and models,
// persisting a JSON snapshot after every mutation.
package metrics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestRecord is the lifecycle record of one orchestrated request.
type RequestRecord struct {
	RequestID  string                 `json:"request_id"`
	Prompt     string                 `json:"prompt,omitempty"`
	StartTS    time.Time              `json:"start_ts"`
	EndTS      *time.Time             `json:"end_ts,omitempty"`
	DurationMS int64                  `json:"duration_ms,omitempty"`
	Success    *bool                  `json:"success,omitempty"`
	Error      string                 `json:"error,omitempty"`
	AgentsUsed []string               `json:"agents_used,omitempty"`
	ToolsUsed  []string               `json:"tools_used,omitempty"`
	ModelsUsed []string               `json:"models_used,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// UsageEvent is one agent, tool or model invocation inside a request.
type UsageEvent struct {
	RequestID  string                 `json:"request_id"`
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	Confidence float64                `json:"confidence,omitempty"`
	DurationMS int64                  `json:"duration_ms,omitempty"`
	TokensIn   int                    `json:"tokens_in,omitempty"`
	TokensOut  int                    `json:"tokens_out,omitempty"`
	Success    bool                   `json:"success"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type snapshot struct {
	Requests   map[string]*RequestRecord `json:"requests"`
	AgentUsage []UsageEvent              `json:"agent_usage"`
	ToolUsage  []UsageEvent              `json:"tool_usage"`
	ModelUsage []UsageEvent              `json:"model_usage"`
}

// Service records metrics under a single lock and persists after each
// mutation. A process-wide default is installed with SetDefault; tests
// construct their own instances.
type Service struct {
	mu   sync.Mutex
	path string
	data snapshot
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a metrics service persisting to path. An empty path
// disables persistence. An existing file at path is loaded so counters
// survive restarts.
func NewService(path string, opts ...Option) *Service {
	s := &Service{
		path: path,
		data: snapshot{Requests: make(map[string]*RequestRecord)},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			if err := json.Unmarshal(raw, &s.data); err != nil {
				slog.Warn("Metrics file is unreadable, starting fresh", "path", path, "error", err)
				s.data = snapshot{Requests: make(map[string]*RequestRecord)}
			}
			if s.data.Requests == nil {
				s.data.Requests = make(map[string]*RequestRecord)
			}
		}
	}
	return s
}

var (
	defaultMu      sync.RWMutex
	defaultService *Service
)

// SetDefault installs the process-wide service.
func SetDefault(s *Service) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultService = s
}

// Default returns the process-wide service, creating a non-persistent one
// on first use.
func Default() *Service {
	defaultMu.RLock()
	s := defaultService
	defaultMu.RUnlock()
	if s != nil {
		return s
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultService == nil {
		defaultService = NewService("")
	}
	return defaultService
}

// StartRequestTracking opens a request record, generating an id when none
// is given, and returns the id.
func (s *Service) StartRequestTracking(requestID, prompt string, metadata map[string]interface{}) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requestID == "" {
		requestID = uuid.NewString()
	}
	s.data.Requests[requestID] = &RequestRecord{
		RequestID: requestID,
		Prompt:    prompt,
		StartTS:   s.now(),
		Metadata:  metadata,
	}
	s.persistLocked()
	return requestID
}

// EndRequestTracking closes a request record, computing its duration.
func (s *Service) EndRequestTracking(requestID string, success bool, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.data.Requests[requestID]
	if !ok {
		return
	}
	end := s.now()
	record.EndTS = &end
	record.DurationMS = end.Sub(record.StartTS).Milliseconds()
	record.Success = &success
	record.Error = errMsg
	s.persistLocked()
}

func (s *Service) TrackAgentUsage(requestID, agentID string, confidence float64, duration time.Duration, success bool, metadata map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.AgentUsage = append(s.data.AgentUsage, UsageEvent{
		RequestID:  requestID,
		ID:         agentID,
		Timestamp:  s.now(),
		Confidence: confidence,
		DurationMS: duration.Milliseconds(),
		Success:    success,
		Metadata:   metadata,
	})
	if record, ok := s.data.Requests[requestID]; ok {
		record.AgentsUsed = appendUnique(record.AgentsUsed, agentID)
	}
	s.persistLocked()
}

func (s *Service) TrackToolUsage(requestID, toolID string, duration time.Duration, success bool, metadata map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.ToolUsage = append(s.data.ToolUsage, UsageEvent{
		RequestID:  requestID,
		ID:         toolID,
		Timestamp:  s.now(),
		DurationMS: duration.Milliseconds(),
		Success:    success,
		Metadata:   metadata,
	})
	if record, ok := s.data.Requests[requestID]; ok {
		record.ToolsUsed = appendUnique(record.ToolsUsed, toolID)
	}
	s.persistLocked()
}

func (s *Service) TrackModelUsage(requestID, modelID string, tokensIn, tokensOut int, duration time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.ModelUsage = append(s.data.ModelUsage, UsageEvent{
		RequestID:  requestID,
		ID:         modelID,
		Timestamp:  s.now(),
		DurationMS: duration.Milliseconds(),
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		Success:    success,
	})
	if record, ok := s.data.Requests[requestID]; ok {
		record.ModelsUsed = appendUnique(record.ModelsUsed, modelID)
	}
	s.persistLocked()
}

// Request returns a copy of a request record.
func (s *Service) Request(requestID string) (RequestRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.data.Requests[requestID]
	if !ok {
		return RequestRecord{}, false
	}
	return *record, true
}

// UsageTotals aggregates one id's usage over all time and over a period.
type UsageTotals struct {
	ID            string    `json:"id"`
	TotalCalls    int       `json:"total_calls"`
	TotalFailures int       `json:"total_failures"`
	AvgDurationMS float64   `json:"avg_duration_ms"`
	LastUsed      time.Time `json:"last_used"`

	// Token totals are populated for model usage only.
	TokensIn  int `json:"tokens_in,omitempty"`
	TokensOut int `json:"tokens_out,omitempty"`

	// PeriodRequests counts the requests whose start falls in the queried
	// window and that used this id.
	PeriodRequests int `json:"period_requests"`
}

// TotalSuccesses is the complement of TotalFailures.
func (t UsageTotals) TotalSuccesses() int {
	return t.TotalCalls - t.TotalFailures
}

// GetAgentMetrics aggregates agent usage. With a non-zero window, period
// totals count request records whose StartTS falls inside it. An empty
// agentID aggregates every agent.
func (s *Service) GetAgentMetrics(agentID string, start, end time.Time) map[string]UsageTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregateLocked(s.data.AgentUsage, agentID, start, end, func(r *RequestRecord) []string {
		return r.AgentsUsed
	})
}

// GetToolMetrics aggregates tool usage the same way.
func (s *Service) GetToolMetrics(toolID string, start, end time.Time) map[string]UsageTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregateLocked(s.data.ToolUsage, toolID, start, end, func(r *RequestRecord) []string {
		return r.ToolsUsed
	})
}

// GetModelMetrics aggregates model usage, including token totals.
func (s *Service) GetModelMetrics(modelID string, start, end time.Time) map[string]UsageTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregateLocked(s.data.ModelUsage, modelID, start, end, func(r *RequestRecord) []string {
		return r.ModelsUsed
	})
}

func (s *Service) aggregateLocked(events []UsageEvent, filterID string, start, end time.Time, usedIn func(*RequestRecord) []string) map[string]UsageTotals {
	out := make(map[string]UsageTotals)
	durationSums := make(map[string]int64)
	for _, ev := range events {
		if filterID != "" && ev.ID != filterID {
			continue
		}
		totals := out[ev.ID]
		totals.ID = ev.ID
		totals.TotalCalls++
		if !ev.Success {
			totals.TotalFailures++
		}
		if ev.Timestamp.After(totals.LastUsed) {
			totals.LastUsed = ev.Timestamp
		}
		totals.TokensIn += ev.TokensIn
		totals.TokensOut += ev.TokensOut
		durationSums[ev.ID] += ev.DurationMS
		out[ev.ID] = totals
	}
	for id, totals := range out {
		totals.AvgDurationMS = float64(durationSums[id]) / float64(totals.TotalCalls)
		out[id] = totals
	}

	windowed := !start.IsZero() || !end.IsZero()
	for _, record := range s.data.Requests {
		if windowed {
			if !start.IsZero() && record.StartTS.Before(start) {
				continue
			}
			if !end.IsZero() && record.StartTS.After(end) {
				continue
			}
		}
		for _, id := range usedIn(record) {
			if filterID != "" && id != filterID {
				continue
			}
			totals := out[id]
			totals.ID = id
			totals.PeriodRequests++
			out[id] = totals
		}
	}
	return out
}

// persistLocked writes the snapshot via a temp file and atomic rename.
// Callers hold the lock.
func (s *Service) persistLocked() {
	if s.path == "" {
		return
	}

	data, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		slog.Error("Failed to serialize metrics", "error", err)
		return
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".metrics-*.json")
	if err != nil {
		slog.Error("Failed to persist metrics", "error", err)
		return
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		slog.Error("Failed to persist metrics", "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		slog.Error("Failed to persist metrics", "error", err)
		return
	}
	if err := os.Rename(name, s.path); err != nil {
		os.Remove(name)
		slog.Error("Failed to persist metrics", "error", fmt.Errorf("rename: %w", err))
	}
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

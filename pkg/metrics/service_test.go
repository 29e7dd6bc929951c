package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRequestLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewService("", WithClock(func() time.Time { return now }))

	id := s.StartRequestTracking("", "write a poem", nil)
	if id == "" {
		t.Fatal("generated request id is empty")
	}

	now = now.Add(250 * time.Millisecond)
	s.EndRequestTracking(id, true, "")

	record, ok := s.Request(id)
	if !ok {
		t.Fatal("request record missing")
	}
	if record.EndTS == nil || record.EndTS.Before(record.StartTS) {
		t.Errorf("end %v before start %v", record.EndTS, record.StartTS)
	}
	if record.DurationMS != 250 {
		t.Errorf("duration = %d ms, want 250", record.DurationMS)
	}
	if record.Success == nil || !*record.Success {
		t.Error("success not recorded")
	}
}

func TestExplicitRequestIDKept(t *testing.T) {
	s := NewService("")
	if got := s.StartRequestTracking("req-7", "", nil); got != "req-7" {
		t.Errorf("id = %q, want req-7", got)
	}
}

func TestUsageTrackingFillsRequestRecord(t *testing.T) {
	s := NewService("")
	id := s.StartRequestTracking("", "prompt", nil)

	s.TrackAgentUsage(id, "coding_assistant", 0.9, 120*time.Millisecond, true, nil)
	s.TrackAgentUsage(id, "coding_assistant", 0.9, 80*time.Millisecond, true, nil)
	s.TrackToolUsage(id, "add_numbers", 5*time.Millisecond, false, nil)
	s.TrackModelUsage(id, "gpt-4o", 100, 50, 900*time.Millisecond, true)

	record, _ := s.Request(id)
	if len(record.AgentsUsed) != 1 || record.AgentsUsed[0] != "coding_assistant" {
		t.Errorf("AgentsUsed = %v", record.AgentsUsed)
	}
	if len(record.ToolsUsed) != 1 || record.ToolsUsed[0] != "add_numbers" {
		t.Errorf("ToolsUsed = %v", record.ToolsUsed)
	}
	if len(record.ModelsUsed) != 1 {
		t.Errorf("ModelsUsed = %v", record.ModelsUsed)
	}
}

func TestAgentMetricsPeriodTotals(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewService("", WithClock(func() time.Time { return now }))

	early := s.StartRequestTracking("", "early", nil)
	s.TrackAgentUsage(early, "listener", 0.8, 0, true, nil)

	now = now.Add(48 * time.Hour)
	late := s.StartRequestTracking("", "late", nil)
	s.TrackAgentUsage(late, "listener", 0.8, 0, false, nil)

	all := s.GetAgentMetrics("listener", time.Time{}, time.Time{})
	if all["listener"].TotalCalls != 2 || all["listener"].TotalFailures != 1 {
		t.Errorf("totals = %+v", all["listener"])
	}
	// Period totals count requests whose start falls in the window.
	if all["listener"].PeriodRequests != 2 {
		t.Errorf("unwindowed period = %d, want 2", all["listener"].PeriodRequests)
	}

	windowStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windowed := s.GetAgentMetrics("listener", windowStart, time.Time{})
	if windowed["listener"].PeriodRequests != 1 {
		t.Errorf("windowed period = %d, want 1", windowed["listener"].PeriodRequests)
	}
}

func TestToolMetrics(t *testing.T) {
	s := NewService("")
	id := s.StartRequestTracking("", "", nil)
	s.TrackToolUsage(id, "web_search", 0, true, nil)
	s.TrackToolUsage(id, "web_search", 0, true, nil)

	got := s.GetToolMetrics("", time.Time{}, time.Time{})
	if got["web_search"].TotalCalls != 2 {
		t.Errorf("totals = %+v", got["web_search"])
	}
}

func TestModelMetricsRollingCounters(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewService("", WithClock(func() time.Time { return now }))

	id := s.StartRequestTracking("", "", nil)
	s.TrackModelUsage(id, "gpt-4o", 100, 40, 200*time.Millisecond, true)

	now = now.Add(time.Minute)
	s.TrackModelUsage(id, "gpt-4o", 50, 10, 400*time.Millisecond, false)

	got := s.GetModelMetrics("gpt-4o", time.Time{}, time.Time{})["gpt-4o"]
	if got.TotalCalls != 2 || got.TotalFailures != 1 || got.TotalSuccesses() != 1 {
		t.Errorf("counters = %+v", got)
	}
	if got.TokensIn != 150 || got.TokensOut != 50 {
		t.Errorf("token totals = in %d out %d", got.TokensIn, got.TokensOut)
	}
	if got.AvgDurationMS != 300 {
		t.Errorf("avg duration = %v ms, want 300", got.AvgDurationMS)
	}
	if !got.LastUsed.Equal(now) {
		t.Errorf("last used = %v, want %v", got.LastUsed, now)
	}
	if got.PeriodRequests != 1 {
		t.Errorf("period requests = %d, want 1", got.PeriodRequests)
	}
}

func TestAgentMetricsDurationAndLastUsed(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewService("", WithClock(func() time.Time { return now }))

	id := s.StartRequestTracking("", "", nil)
	s.TrackAgentUsage(id, "listener", 0.8, 100*time.Millisecond, true, nil)
	now = now.Add(time.Hour)
	s.TrackAgentUsage(id, "listener", 0.8, 300*time.Millisecond, true, nil)

	got := s.GetAgentMetrics("listener", time.Time{}, time.Time{})["listener"]
	if got.AvgDurationMS != 200 {
		t.Errorf("avg duration = %v ms, want 200", got.AvgDurationMS)
	}
	if !got.LastUsed.Equal(now) {
		t.Errorf("last used = %v, want %v", got.LastUsed, now)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")

	s := NewService(path)
	id := s.StartRequestTracking("req-1", "hello", nil)
	s.TrackAgentUsage(id, "listener", 0.7, 0, true, nil)
	s.EndRequestTracking(id, true, "")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("metrics file is not JSON: %v", err)
	}
	for _, key := range []string{"requests", "agent_usage", "tool_usage", "model_usage"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("snapshot missing top-level key %q", key)
		}
	}

	// A new service over the same file resumes the counters.
	reloaded := NewService(path)
	record, ok := reloaded.Request("req-1")
	if !ok || record.Prompt != "hello" {
		t.Errorf("reloaded record = %+v, %v", record, ok)
	}
}

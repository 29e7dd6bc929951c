package tools

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
)

func newTestExecutor(t *testing.T, reg *ToolRegistry, opts ...ExecutorOption) *Executor {
	t.Helper()
	opts = append(opts, WithSleepFunc(func(time.Duration) {}))
	e, err := NewExecutor(reg, opts...)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	return e
}

func TestExecuteUnknownTool(t *testing.T) {
	e := newTestExecutor(t, NewToolRegistry())
	result, err := e.Execute(context.Background(), "nope", nil)
	if !aierrors.IsKind(err, aierrors.KindToolNotFound) {
		t.Fatalf("error = %v, want tool_not_found", err)
	}
	if result.Success {
		t.Error("result must not be successful")
	}
}

func TestExecuteValidatesArguments(t *testing.T) {
	reg := NewToolRegistry()
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"city"},
		"properties": map[string]interface{}{
			"city": map[string]interface{}{"type": "string"},
		},
	}
	tool := NewFuncTool("weather", "weather lookup", schema,
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "sunny", nil
		})
	if err := reg.RegisterTool(tool); err != nil {
		t.Fatal(err)
	}
	e := newTestExecutor(t, reg)

	_, err := e.Execute(context.Background(), "weather", map[string]interface{}{"town": "Paris"})
	if !aierrors.IsKind(err, aierrors.KindToolInvalidArguments) {
		t.Fatalf("error = %v, want tool_invalid_arguments", err)
	}

	result, err := e.Execute(context.Background(), "weather", map[string]interface{}{"city": "Paris"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success || result.Content != "sunny" {
		t.Errorf("result = %+v", result)
	}
}

func TestExecuteCachesIdenticalCalls(t *testing.T) {
	var calls atomic.Int32
	reg := NewToolRegistry()
	tool := NewFuncTool("counter", "counts calls", nil,
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			calls.Add(1)
			return "ok", nil
		})
	if err := reg.RegisterTool(tool); err != nil {
		t.Fatal(err)
	}
	e := newTestExecutor(t, reg)

	args := map[string]interface{}{"b": 2, "a": 1}
	for i := 0; i < 3; i++ {
		if _, err := e.Execute(context.Background(), "counter", args); err != nil {
			t.Fatal(err)
		}
	}
	// Same arguments in a different map order still hit the cache.
	if _, err := e.Execute(context.Background(), "counter", map[string]interface{}{"a": 1, "b": 2}); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("tool ran %d times, want 1", got)
	}

	e.ClearCache()
	if _, err := e.Execute(context.Background(), "counter", args); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("tool ran %d times after ClearCache, want 2", got)
	}
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	reg := NewToolRegistry()
	tool := NewFuncTool("flaky", "fails twice", nil,
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			if calls.Add(1) <= 2 {
				return "", aierrors.New(aierrors.KindToolTimeout, "transient")
			}
			return "ok", nil
		})
	if err := reg.RegisterTool(tool); err != nil {
		t.Fatal(err)
	}
	e := newTestExecutor(t, reg)

	result, err := e.Execute(context.Background(), "flaky", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Errorf("result = %+v", result)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("tool ran %d times, want 3", got)
	}
}

func TestExecuteDoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	reg := NewToolRegistry()
	tool := NewFuncTool("broken", "always fails", nil,
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			calls.Add(1)
			return "", aierrors.New(aierrors.KindToolExecutionFailed, "permanent")
		})
	if err := reg.RegisterTool(tool); err != nil {
		t.Fatal(err)
	}
	e := newTestExecutor(t, reg)

	if _, err := e.Execute(context.Background(), "broken", nil); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("tool ran %d times, want 1", got)
	}
}

func TestExecuteTimeout(t *testing.T) {
	reg := NewToolRegistry()
	tool := NewFuncTool("slow", "hangs", nil,
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			<-ctx.Done()
			time.Sleep(time.Second)
			return "", ctx.Err()
		})
	if err := reg.RegisterTool(tool); err != nil {
		t.Fatal(err)
	}
	e := newTestExecutor(t, reg, WithTimeout(20*time.Millisecond), WithMaxRetries(0))

	result, err := e.Execute(context.Background(), "slow", nil)
	if !aierrors.IsKind(err, aierrors.KindToolTimeout) {
		t.Fatalf("error = %v, want tool_timeout", err)
	}
	if !strings.Contains(result.Error, "timeout") {
		t.Errorf("result error = %q, want a timeout mention", result.Error)
	}
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	reg := NewToolRegistry()
	tool := NewFuncTool("bomb", "panics", nil,
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			panic("boom")
		})
	if err := reg.RegisterTool(tool); err != nil {
		t.Fatal(err)
	}
	e := newTestExecutor(t, reg, WithMaxRetries(0))

	result, err := e.Execute(context.Background(), "bomb", nil)
	if !aierrors.IsKind(err, aierrors.KindToolExecutionFailed) {
		t.Fatalf("error = %v, want tool_execution_failed", err)
	}
	if !strings.Contains(result.Error, "panic") {
		t.Errorf("result error = %q", result.Error)
	}
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/observability"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

const (
	defaultToolTimeout    = 30 * time.Second
	defaultToolRetries    = 3
	defaultCacheSize      = 256
	defaultMaxConcurrency = 8
	maxRetryBackoff       = 10 * time.Second
)

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

func WithMaxRetries(n int) ExecutorOption {
	return func(e *Executor) { e.maxRetries = n }
}

func WithCacheSize(n int) ExecutorOption {
	return func(e *Executor) { e.cacheSize = n }
}

func WithMaxConcurrency(n int64) ExecutorOption {
	return func(e *Executor) { e.maxConcurrency = n }
}

// WithSleepFunc replaces the retry backoff sleep, for tests.
func WithSleepFunc(sleep func(time.Duration)) ExecutorOption {
	return func(e *Executor) { e.sleep = sleep }
}

// Executor runs tools with argument validation, a per-call timeout,
// bounded retries for transient failures, panic recovery, a result cache
// and a concurrency cap.
type Executor struct {
	registry       *ToolRegistry
	timeout        time.Duration
	maxRetries     int
	cacheSize      int
	maxConcurrency int64
	sleep          func(time.Duration)

	cache *lru.Cache[string, ToolResult]
	sem   *semaphore.Weighted
}

func NewExecutor(registry *ToolRegistry, opts ...ExecutorOption) (*Executor, error) {
	e := &Executor{
		registry:       registry,
		timeout:        defaultToolTimeout,
		maxRetries:     defaultToolRetries,
		cacheSize:      defaultCacheSize,
		maxConcurrency: defaultMaxConcurrency,
		sleep:          time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}

	cache, err := lru.New[string, ToolResult](e.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool result cache: %w", err)
	}
	e.cache = cache
	e.sem = semaphore.NewWeighted(e.maxConcurrency)
	return e, nil
}

// Execute runs a named tool. Results of successful runs are cached by tool
// name and canonical argument JSON; identical calls hit the cache without
// re-running the tool.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error) {
	tool, ok := e.registry.Get(name)
	if !ok {
		return failure(name, "tool not found"),
			aierrors.Newf(aierrors.KindToolNotFound, "tool %q is not registered", name)
	}

	if err := e.validateArgs(tool, args); err != nil {
		return failure(name, "invalid_arguments: "+err.Error()),
			aierrors.Wrap(aierrors.KindToolInvalidArguments,
				fmt.Sprintf("invalid arguments for tool %q", name), err)
	}

	key, cacheable := cacheKey(name, args)
	if cacheable {
		if cached, ok := e.cache.Get(key); ok {
			slog.Debug("Tool cache hit", "tool", name)
			return cached, nil
		}
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return failure(name, "execution cancelled"),
			aierrors.Wrap(aierrors.KindToolExecutionFailed,
				fmt.Sprintf("tool %q was cancelled while waiting for a slot", name), err)
	}
	defer e.sem.Release(1)

	result, err := e.executeWithRetries(ctx, tool, name, args)
	if err == nil && result.Success && cacheable {
		e.cache.Add(key, result)
	}
	return result, err
}

// ClearCache drops all cached tool results.
func (e *Executor) ClearCache() {
	e.cache.Purge()
}

func (e *Executor) executeWithRetries(ctx context.Context, tool Tool, name string, args map[string]interface{}) (ToolResult, error) {
	var result ToolResult
	var err error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Min(math.Pow(2, float64(attempt)), maxRetryBackoff.Seconds())) * time.Second
			slog.Debug("Retrying tool", "tool", name, "attempt", attempt, "backoff", backoff)
			e.sleep(backoff)
		}

		result, err = e.executeOnce(ctx, tool, name, args)
		if err == nil || !aierrors.Transient(err) {
			return result, err
		}
	}
	return result, err
}

func (e *Executor) executeOnce(ctx context.Context, tool Tool, name string, args map[string]interface{}) (result ToolResult, err error) {
	tracer := observability.GetTracer("tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution)
	defer span.End()
	span.SetAttributes(attribute.String(observability.AttrToolName, name))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	// The tool runs in its own goroutine so a hang respects the timeout
	// and a panic is contained.
	type outcome struct {
		result ToolResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{
					result: failure(name, fmt.Sprintf("panic: %v", r)),
					err:    aierrors.Newf(aierrors.KindToolExecutionFailed, "tool %q panicked: %v", name, r),
				}
			}
		}()
		res, execErr := tool.Execute(ctx, args)
		done <- outcome{result: res, err: execErr}
	}()

	select {
	case out := <-done:
		result, err = out.result, out.err
	case <-ctx.Done():
		err = aierrors.Newf(aierrors.KindToolTimeout, "tool %q timeout after %s", name, e.timeout)
		result = failure(name, fmt.Sprintf("timeout after %s", e.timeout))
	}

	result.ToolName = name
	result.ExecutionTime = time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordToolExecution(ctx, name, result.ExecutionTime, err)
	}
	return result, err
}

func (e *Executor) validateArgs(tool Tool, args map[string]interface{}) error {
	info := tool.GetInfo()
	if len(info.Parameters) == 0 {
		return nil
	}

	schemaJSON, err := json.Marshal(info.Parameters)
	if err != nil {
		return fmt.Errorf("unusable parameter schema: %w", err)
	}
	schema, err := jsonschema.CompileString(info.Name+".json", string(schemaJSON))
	if err != nil {
		return fmt.Errorf("unusable parameter schema: %w", err)
	}

	// Round-trip the arguments so numbers validate as JSON numbers.
	argJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("arguments are not serializable: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(argJSON, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

// cacheKey builds a deterministic key from the tool name and arguments.
// encoding/json sorts map keys, so equal argument maps share a key.
func cacheKey(name string, args map[string]interface{}) (string, bool) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", false
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('\x00')
	b.Write(data)
	return b.String(), true
}

func failure(name, message string) ToolResult {
	return ToolResult{Success: false, Error: message, ToolName: name}
}

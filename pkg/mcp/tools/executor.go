// Package tools provides the retrying, format-normalizing facade callers
// use to invoke a tool by name.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcpwire/mcpwire/pkg/log"
	"github.com/mcpwire/mcpwire/pkg/mcp"
	"github.com/mcpwire/mcpwire/pkg/mcp/faults"
	"github.com/mcpwire/mcpwire/pkg/mcp/normalize"
)

const (
	// maxAttempts bounds raw transport attempts per Execute call.
	maxAttempts = 3
	// maxBackoff clamps the exponential pause between attempts.
	maxBackoff = 10 * time.Second
)

// Executor retries transient failures with exponential backoff and
// normalizes successful payloads. Execute never returns an error; callers
// branch on the result's Success flag.
type Executor struct {
	client  Client
	logger  *slog.Logger
	metrics *ExecutionMetrics

	// sleep is swapped out by tests so the backoff schedule can be
	// asserted without real timers.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor over the given client.
func NewExecutor(client Client) *Executor {
	return &Executor{
		client:  client,
		logger:  log.WithComponent("executor"),
		metrics: &ExecutionMetrics{},
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type executeOptions struct {
	server  string
	format  normalize.Format
	timeout time.Duration
}

// ExecuteOption tunes a single Execute call.
type ExecuteOption func(*executeOptions)

// WithServer scopes tool resolution to one server.
func WithServer(name string) ExecuteOption {
	return func(o *executeOptions) { o.server = name }
}

// WithFormat selects the normalization mode for successful payloads.
// The default is normalize.FormatJSON.
func WithFormat(format normalize.Format) ExecuteOption {
	return func(o *executeOptions) { o.format = format }
}

// WithTimeout overrides the owning server's configured timeout.
func WithTimeout(d time.Duration) ExecuteOption {
	return func(o *executeOptions) { o.timeout = d }
}

// Execute resolves a tool by name and invokes it with bounded retry.
//
// Resolution failures return immediately with no transport call. Failed
// attempts are classified; only transient failures are retried, sleeping
// min(2^(k-1), 10) seconds between attempt k and k+1. The payload of a
// successful result is replaced with its normalized form.
func (e *Executor) Execute(ctx context.Context, toolName string, arguments map[string]any, opts ...ExecuteOption) *mcp.ToolInvocationResult {
	o := executeOptions{format: normalize.FormatJSON}
	for _, opt := range opts {
		opt(&o)
	}

	invocationID := uuid.NewString()
	logger := e.logger.With("tool", toolName, "invocation", invocationID)

	if _, ok := e.client.GetTool(toolName, o.server); !ok {
		res := &mcp.ToolInvocationResult{
			ToolName: toolName,
			Success:  false,
			Error:    fmt.Sprintf("Tool '%s' not found", toolName),
		}
		e.finish(logger, res, invocationID, 1)
		return res
	}

	req := mcp.ToolInvocationRequest{
		ToolName:   toolName,
		Arguments:  arguments,
		ServerName: o.server,
		Timeout:    o.timeout,
	}

	var res *mcp.ToolInvocationResult
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt

		var faulted bool
		res, faulted = e.attempt(ctx, req)
		if res.Success {
			break
		}

		// A raised fault is always retried while attempts remain; a clean
		// failure result only when classified transient.
		retryable := faulted || faults.IsRetryable(faults.ClassifyMessage(res.Error))
		if !retryable {
			logger.Debug("failure is not retryable", "error", res.Error, "attempt", attempt)
			e.finish(logger, res, invocationID, attempts)
			return res
		}
		if attempt == maxAttempts {
			res.Error = fmt.Sprintf("failed after %d attempts: %s", maxAttempts, res.Error)
			break
		}

		delay := backoffDelay(attempt)
		logger.Debug("retrying after transient failure", "error", res.Error, "attempt", attempt, "backoff", delay)
		if err := e.sleep(ctx, delay); err != nil {
			res.Error = fmt.Sprintf("retry aborted: %v (last error: %s)", err, res.Error)
			break
		}
	}

	if res.Success && res.Result != nil {
		if normalized, err := normalize.Normalize(res.Result, o.format); err == nil {
			res.Result = normalized
		} else {
			// Keep the raw payload rather than failing a successful call.
			logger.Warn("payload normalization failed", "format", string(o.format), "error", err)
		}
	}

	e.finish(logger, res, invocationID, attempts)
	return res
}

// attempt runs one raw transport call, converting a panic into a failed
// result so no fault ever escapes the executor.
func (e *Executor) attempt(ctx context.Context, req mcp.ToolInvocationRequest) (res *mcp.ToolInvocationResult, faulted bool) {
	defer func() {
		if r := recover(); r != nil {
			faulted = true
			res = &mcp.ToolInvocationResult{
				ToolName: req.ToolName,
				Success:  false,
				Error:    fmt.Sprintf("unexpected fault: %v", r),
			}
		}
	}()
	return e.client.ExecuteTool(ctx, req), false
}

func (e *Executor) finish(logger *slog.Logger, res *mcp.ToolInvocationResult, invocationID string, attempts int) {
	if res.Metadata == nil {
		res.Metadata = make(map[string]any)
	}
	res.Metadata["invocation_id"] = invocationID
	res.Metadata["attempts"] = attempts
	e.metrics.Record(res, attempts)

	if res.Success {
		logger.Debug("tool execution succeeded", "attempts", attempts, "duration", res.Duration)
	} else {
		logger.Debug("tool execution failed", "attempts", attempts, "error", res.Error)
	}
}

// backoffDelay returns min(2^(attempt-1), 10) seconds.
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<(attempt-1)) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// Metrics returns the executor's aggregate metrics.
func (e *Executor) Metrics() map[string]any {
	return e.metrics.Snapshot()
}

// ExecutionMetrics tracks executor-level counters, separate from the
// client's per-call statistics.
type ExecutionMetrics struct {
	mu              sync.Mutex
	totalExecutions int64
	successful      int64
	failed          int64
	totalRetries    int64
	avgDuration     time.Duration
}

// Record folds one finished execution into the counters.
func (m *ExecutionMetrics) Record(res *mcp.ToolInvocationResult, attempts int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalExecutions++
	if res.Success {
		m.successful++
	} else {
		m.failed++
	}
	if attempts > 1 {
		m.totalRetries += int64(attempts - 1)
	}
	m.avgDuration += (res.Duration - m.avgDuration) / time.Duration(m.totalExecutions)
}

// Snapshot returns the current counters.
func (m *ExecutionMetrics) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	successRate := float64(0)
	if m.totalExecutions > 0 {
		successRate = float64(m.successful) / float64(m.totalExecutions)
	}
	return map[string]any{
		"total_executions": m.totalExecutions,
		"successful":       m.successful,
		"failed":           m.failed,
		"success_rate":     successRate,
		"total_retries":    m.totalRetries,
		"avg_duration":     m.avgDuration,
	}
}

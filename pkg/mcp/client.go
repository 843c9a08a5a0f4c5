package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcpwire/mcpwire/pkg/log"
)

// DefaultTimeout bounds blocking protocol operations when a config does
// not say otherwise.
const DefaultTimeout = 30 * time.Second

// defaultRetryPause is the fixed pause between handshake attempts.
const defaultRetryPause = time.Second

// Client owns server registrations, live connections and discovered tool
// inventories, and tracks aggregate statistics. Server lifecycle mutations
// are serialized per server name; cross-server operations share no lock
// beyond the registry map itself.
type Client struct {
	mu      sync.RWMutex
	servers map[string]*serverState
	order   []string

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	retryPause time.Duration
	logger     *slog.Logger

	statsMu         sync.Mutex
	totalCalls      int64
	successfulCalls int64
	failedCalls     int64
	avgExecTime     time.Duration
}

type serverState struct {
	config      ServerConfig
	status      ConnectionStatus
	connectedAt time.Time
	lastError   string
	tools       []ToolDescriptor
	transport   transport
}

// NewClient creates an empty client. The caller that composes the system
// owns it; there is no process-wide instance.
func NewClient() *Client {
	return &Client{
		servers:    make(map[string]*serverState),
		locks:      make(map[string]*sync.Mutex),
		retryPause: defaultRetryPause,
		logger:     log.WithComponent("client"),
	}
}

// serverLock returns the mutex serializing lifecycle mutations for one
// server name.
func (c *Client) serverLock(name string) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	l, ok := c.locks[name]
	if !ok {
		l = &sync.Mutex{}
		c.locks[name] = l
	}
	return l
}

// Connect attempts the handshake up to the configured number of attempts
// with a fixed pause in between. On the first success it registers the
// server and immediately runs discovery; a discovery failure is logged but
// does not undo the connection. Exhausting every attempt records an error
// status and returns a ConnectionError.
func (c *Client) Connect(ctx context.Context, cfg ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	lock := c.serverLock(cfg.Name)
	lock.Lock()
	defer lock.Unlock()

	c.setState(cfg, StatusConnecting, nil, "")

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		tp, err := newTransport(cfg)
		if err == nil {
			err = tp.handshake(ctx)
			if err != nil {
				_ = tp.close()
			}
		}
		if err == nil {
			c.setState(cfg, StatusConnected, tp, "")
			c.logger.Info("connected to server",
				"server", cfg.Name, "transport", string(cfg.kind()), "attempt", attempt)
			if _, derr := c.DiscoverTools(ctx, cfg.Name); derr != nil {
				c.logger.Warn("tool discovery failed after connect", "server", cfg.Name, "error", derr)
			}
			return nil
		}

		lastErr = err
		c.logger.Warn("handshake attempt failed",
			"server", cfg.Name, "attempt", attempt, "of", attempts, "error", err)

		if attempt < attempts {
			select {
			case <-time.After(c.retryPause):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = attempts
			}
		}
	}

	c.setState(cfg, StatusError, nil, lastErr.Error())
	return &ConnectionError{Server: cfg.Name, Attempts: attempts, Cause: lastErr}
}

// setState registers or replaces the connection state for cfg.Name. Any
// previously held transport is closed.
func (c *Client) setState(cfg ServerConfig, status ConnectionStatus, tp transport, lastError string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, exists := c.servers[cfg.Name]
	if exists && prev.transport != nil && prev.transport != tp {
		_ = prev.transport.close()
	}
	if !exists {
		c.order = append(c.order, cfg.Name)
	}

	state := &serverState{config: cfg, status: status, transport: tp, lastError: lastError}
	if status == StatusConnected {
		state.connectedAt = time.Now()
	}
	c.servers[cfg.Name] = state
}

// DiscoverTools asks a connected server for its tool inventory and
// replaces (not accumulates) the cached descriptors.
func (c *Client) DiscoverTools(ctx context.Context, serverName string) ([]ToolDescriptor, error) {
	c.mu.RLock()
	state, ok := c.servers[serverName]
	var tp transport
	if ok {
		tp = state.transport
	}
	c.mu.RUnlock()

	if !ok {
		return nil, &ToolError{Server: serverName, Op: "discovery", Cause: ErrServerNotFound}
	}
	if tp == nil {
		return nil, &ToolError{Server: serverName, Op: "discovery", Cause: ErrNotConnected}
	}

	tools, err := tp.discover(ctx)
	if err != nil {
		return nil, &ToolError{Server: serverName, Op: "discovery", Cause: err}
	}

	c.mu.Lock()
	if state, ok := c.servers[serverName]; ok {
		state.tools = tools
	}
	c.mu.Unlock()

	c.logger.Debug("discovered tools", "server", serverName, "count", len(tools))
	return append([]ToolDescriptor(nil), tools...), nil
}

// ListTools returns one server's inventory, or the union across all
// servers in registration order when serverName is empty.
func (c *Client) ListTools(serverName string) []ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if serverName != "" {
		if state, ok := c.servers[serverName]; ok {
			return append([]ToolDescriptor(nil), state.tools...)
		}
		return nil
	}

	var all []ToolDescriptor
	for _, name := range c.order {
		all = append(all, c.servers[name].tools...)
	}
	return all
}

// GetTool returns the first tool matching name, optionally scoped to one
// server; otherwise servers are searched in registration order.
func (c *Client) GetTool(name, serverName string) (ToolDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	search := c.order
	if serverName != "" {
		search = []string{serverName}
	}
	for _, sn := range search {
		state, ok := c.servers[sn]
		if !ok {
			continue
		}
		for _, tool := range state.tools {
			if tool.Name == name {
				return tool, true
			}
		}
	}
	return ToolDescriptor{}, false
}

// ExecuteTool resolves and invokes a tool. It never returns an error;
// every failure mode becomes a failed ToolInvocationResult, and aggregate
// statistics are updated regardless of outcome.
func (c *Client) ExecuteTool(ctx context.Context, req ToolInvocationRequest) *ToolInvocationResult {
	start := time.Now()
	fail := func(msg string) *ToolInvocationResult {
		res := &ToolInvocationResult{ToolName: req.ToolName, Success: false, Error: msg, Duration: time.Since(start)}
		c.recordCall(res)
		return res
	}

	if err := req.Validate(); err != nil {
		return fail(err.Error())
	}

	tool, ok := c.GetTool(req.ToolName, req.ServerName)
	if !ok {
		return fail(fmt.Sprintf("Tool '%s' not found", req.ToolName))
	}

	c.mu.RLock()
	state, exists := c.servers[tool.ServerName]
	var tp transport
	var cfgTimeout time.Duration
	var status ConnectionStatus
	if exists {
		tp = state.transport
		cfgTimeout = state.config.Timeout
		status = state.status
	}
	c.mu.RUnlock()

	if !exists || tp == nil || status != StatusConnected {
		return fail(fmt.Sprintf("server '%s' is not connected", tool.ServerName))
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = cfgTimeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	payload, err := tp.call(ctx, tool.Name, req.Arguments, timeout)
	if err != nil {
		c.logger.Debug("tool call failed", "server", tool.ServerName, "tool", tool.Name, "error", err)
		return fail(err.Error())
	}

	res := &ToolInvocationResult{
		ToolName: req.ToolName,
		Success:  true,
		Result:   payload,
		Duration: time.Since(start),
		Metadata: req.Metadata,
	}
	c.recordCall(res)
	return res
}

// recordCall folds one completed call into the aggregate counters,
// recomputing the running mean execution time.
func (c *Client) recordCall(res *ToolInvocationResult) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	c.totalCalls++
	if res.Success {
		c.successfulCalls++
	} else {
		c.failedCalls++
	}
	c.avgExecTime += (res.Duration - c.avgExecTime) / time.Duration(c.totalCalls)
}

// Disconnect tears down one server: transport teardown, then removal of
// the registration, connection state and tool inventory.
func (c *Client) Disconnect(serverName string) error {
	lock := c.serverLock(serverName)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	state, ok := c.servers[serverName]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", serverName, ErrServerNotFound)
	}
	tp := state.transport
	delete(c.servers, serverName)
	for i, name := range c.order {
		if name == serverName {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if tp != nil {
		if err := tp.close(); err != nil {
			c.logger.Warn("transport teardown reported error", "server", serverName, "error", err)
			return err
		}
	}
	c.logger.Info("disconnected from server", "server", serverName)
	return nil
}

// DisconnectAll disconnects every registered server. A failure on one
// server never prevents disconnecting the rest.
func (c *Client) DisconnectAll() error {
	c.mu.RLock()
	names := append([]string(nil), c.order...)
	c.mu.RUnlock()

	var errs []error
	for _, name := range names {
		if err := c.Disconnect(name); err != nil && !errors.Is(err, ErrServerNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status returns the connection status for one server.
func (c *Client) Status(serverName string) ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if state, ok := c.servers[serverName]; ok {
		return state.status
	}
	return StatusDisconnected
}

// Connections returns a snapshot of every registered connection.
func (c *Client) Connections() map[string]ConnectionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make(map[string]ConnectionInfo, len(c.servers))
	for name, state := range c.servers {
		infos[name] = ConnectionInfo{
			Config:      state.config,
			Status:      state.status,
			ConnectedAt: state.connectedAt,
			LastError:   state.lastError,
			ToolCount:   len(state.tools),
		}
	}
	return infos
}

// ServerNames returns the registered server names in registration order.
func (c *Client) ServerNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Stats returns a snapshot of the aggregate statistics.
func (c *Client) Stats() ClientStatistics {
	c.mu.RLock()
	stats := ClientStatistics{
		TotalServers:  len(c.servers),
		ToolsByServer: make(map[string]int, len(c.servers)),
	}
	for name, state := range c.servers {
		if state.status == StatusConnected {
			stats.ConnectedServers++
		}
		if len(state.tools) > 0 {
			stats.ToolsByServer[name] = len(state.tools)
			stats.TotalTools += len(state.tools)
		}
	}
	c.mu.RUnlock()

	c.statsMu.Lock()
	stats.TotalCalls = c.totalCalls
	stats.SuccessfulCalls = c.successfulCalls
	stats.FailedCalls = c.failedCalls
	stats.AverageExecutionTime = c.avgExecTime
	c.statsMu.Unlock()

	return stats
}

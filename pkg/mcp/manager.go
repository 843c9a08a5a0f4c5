package mcp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcpwire/mcpwire/pkg/log"
)

// ManagerOptions configures connection supervision.
type ManagerOptions struct {
	// AutoReconnect starts one background supervisor per successfully
	// connected server.
	AutoReconnect bool
	// ReconnectInterval is the pause between supervisor health checks.
	ReconnectInterval time.Duration
	// MaxReconnectAttempts is the consecutive-failure budget after which
	// a supervisor abandons its server.
	MaxReconnectAttempts int
}

func (o ManagerOptions) normalized() ManagerOptions {
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = 30 * time.Second
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = 5
	}
	return o
}

// HealthReport summarizes the manager's view of the fleet.
type HealthReport struct {
	Status           string                      `json:"status"`
	TotalServers     int                         `json:"total_servers"`
	ConnectedServers int                         `json:"connected_servers"`
	TotalTools       int                         `json:"total_tools"`
	Connections      map[string]ConnectionStatus `json:"connections"`
	AutoReconnect    bool                        `json:"auto_reconnect"`
}

// ConnectionManager orchestrates concurrent connection of many servers
// and supervises them afterward with auto-reconnect.
type ConnectionManager struct {
	client *Client
	opts   ManagerOptions
	logger *slog.Logger

	mu          sync.Mutex
	supervisors map[string]*supervisor
}

type supervisor struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConnectionManager wraps a Client with supervision. The manager does
// not own the client; composition stays explicit.
func NewConnectionManager(client *Client, opts ManagerOptions) *ConnectionManager {
	return &ConnectionManager{
		client:      client,
		opts:        opts.normalized(),
		logger:      log.WithComponent("manager"),
		supervisors: make(map[string]*supervisor),
	}
}

// ConnectAll starts one concurrent connection attempt per config and
// waits for all of them to settle. A failing server is recorded as false
// without cancelling or failing its siblings. With auto-reconnect on,
// every server that connected gets a dedicated supervisor.
func (m *ConnectionManager) ConnectAll(ctx context.Context, configs []ServerConfig) map[string]bool {
	results := make(map[string]bool, len(configs))
	var resMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, cfg := range configs {
		cfg := cfg
		g.Go(func() error {
			err := m.client.Connect(gctx, cfg)
			if err != nil {
				m.logger.Warn("server failed to connect", "server", cfg.Name, "error", err)
			}
			resMu.Lock()
			results[cfg.Name] = err == nil
			resMu.Unlock()
			// Connection faults are per-server results, never group failures.
			return nil
		})
	}
	_ = g.Wait()

	if m.opts.AutoReconnect {
		for _, cfg := range configs {
			if results[cfg.Name] {
				m.startSupervisor(cfg)
			}
		}
	}
	return results
}

// startSupervisor launches the background reconnect loop for one server,
// replacing any previous supervisor for the same name.
func (m *ConnectionManager) startSupervisor(cfg ServerConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.supervisors[cfg.Name]; ok {
		prev.cancel()
		<-prev.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	sup := &supervisor{cancel: cancel, done: make(chan struct{})}
	m.supervisors[cfg.Name] = sup

	go m.supervise(ctx, cfg, sup.done)
}

// supervise periodically checks one server and recovers it when it is no
// longer connected. Consecutive failures up to the configured budget end
// the supervisor permanently; supervisors are fully independent.
func (m *ConnectionManager) supervise(ctx context.Context, cfg ServerConfig, done chan<- struct{}) {
	defer close(done)
	logger := m.logger.With("server", cfg.Name)
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.opts.ReconnectInterval):
		}

		if m.client.Status(cfg.Name) == StatusConnected {
			continue
		}

		logger.Info("server lost, attempting reconnect", "failures", failures)
		_ = m.client.Disconnect(cfg.Name)
		if err := m.client.Connect(ctx, cfg); err != nil {
			failures++
			logger.Warn("reconnect failed", "failures", failures, "max", m.opts.MaxReconnectAttempts, "error", err)
			if failures >= m.opts.MaxReconnectAttempts {
				logger.Error("abandoning server after repeated reconnect failures", "failures", failures)
				return
			}
			continue
		}

		failures = 0
		logger.Info("server reconnected")
	}
}

// ConnectionStatus returns the status of every registered server.
func (m *ConnectionManager) ConnectionStatus() map[string]ConnectionStatus {
	conns := m.client.Connections()
	statuses := make(map[string]ConnectionStatus, len(conns))
	for name, info := range conns {
		statuses[name] = info.Status
	}
	return statuses
}

// HealthyServers returns the names of servers that are currently connected.
func (m *ConnectionManager) HealthyServers() []string {
	var healthy []string
	for _, name := range m.client.ServerNames() {
		if m.client.Status(name) == StatusConnected {
			healthy = append(healthy, name)
		}
	}
	return healthy
}

// AllTools returns the union of every connected server's inventory.
func (m *ConnectionManager) AllTools() []ToolDescriptor {
	return m.client.ListTools("")
}

// ToolsByServer returns one server's inventory.
func (m *ConnectionManager) ToolsByServer(serverName string) []ToolDescriptor {
	return m.client.ListTools(serverName)
}

// RefreshTools re-runs discovery for one server, or for every healthy
// server when serverName is empty, and returns the summed tool count.
// Per-server discovery failures are logged and tolerated; they never
// abort the batch.
func (m *ConnectionManager) RefreshTools(ctx context.Context, serverName string) int {
	names := []string{serverName}
	if serverName == "" {
		names = m.HealthyServers()
	}

	counts := make([]int, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			tools, err := m.client.DiscoverTools(gctx, name)
			if err != nil {
				m.logger.Warn("tool refresh failed", "server", name, "error", err)
				return nil
			}
			counts[i] = len(tools)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// HealthCheck reports healthy iff at least one server is connected.
func (m *ConnectionManager) HealthCheck() HealthReport {
	stats := m.client.Stats()
	report := HealthReport{
		Status:           "unhealthy",
		TotalServers:     stats.TotalServers,
		ConnectedServers: stats.ConnectedServers,
		TotalTools:       stats.TotalTools,
		Connections:      m.ConnectionStatus(),
		AutoReconnect:    m.opts.AutoReconnect,
	}
	if stats.ConnectedServers > 0 {
		report.Status = "healthy"
	}
	return report
}

// DisconnectAll cancels every supervisor, waits for them to exit, then
// disconnects every server.
func (m *ConnectionManager) DisconnectAll() error {
	m.mu.Lock()
	sups := make([]*supervisor, 0, len(m.supervisors))
	for name, sup := range m.supervisors {
		sups = append(sups, sup)
		delete(m.supervisors, name)
	}
	m.mu.Unlock()

	for _, sup := range sups {
		sup.cancel()
		<-sup.done
	}
	return m.client.DisconnectAll()
}

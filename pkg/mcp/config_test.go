package mcp

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, DefaultTimeout, cfg.DefaultTimeout)
	assert.True(t, cfg.AutoReconnect)
	assert.Equal(t, 30*time.Second, cfg.ReconnectInterval)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
}

func TestAutoConnectServers(t *testing.T) {
	cfg := Config{Servers: []ServerConfig{
		{Name: "on", Enabled: true, AutoConnect: true},
		{Name: "manual", Enabled: true, AutoConnect: false},
		{Name: "off", Enabled: false, AutoConnect: true},
	}}

	servers := cfg.AutoConnectServers()
	require.Len(t, servers, 1)
	assert.Equal(t, "on", servers[0].Name)
}

func TestSimpleServerConfigDefaults(t *testing.T) {
	simple := SimpleServerConfig{Command: "npx", Args: []string{"-y", "server-filesystem"}}
	cfg := simple.ToServerConfig("files")

	assert.Equal(t, "files", cfg.Name)
	assert.Equal(t, TransportStdio, cfg.Transport)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.True(t, cfg.AutoConnect)
	assert.True(t, cfg.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestSimpleServerConfigInfersHTTP(t *testing.T) {
	simple := SimpleServerConfig{URL: "http://localhost:8080/mcp"}
	cfg := simple.ToServerConfig("web")

	assert.Equal(t, TransportHTTP, cfg.Transport)
	require.NoError(t, cfg.Validate())
}

func TestServerListRoundTrip(t *testing.T) {
	list := &ServerListFile{MCPServers: map[string]SimpleServerConfig{
		"files": {Command: "npx", Args: []string{"-y", "server-filesystem"}, TimeoutSeconds: 15},
		"web":   {URL: "http://localhost:8080", Headers: map[string]string{"X-Key": "abc"}},
	}}

	for _, ext := range []string{".json", ".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mcpServers"+ext)
			require.NoError(t, SaveServerList(path, list))

			loaded, err := LoadServerList(path)
			require.NoError(t, err)
			require.Len(t, loaded.MCPServers, 2)
			assert.Equal(t, "npx", loaded.MCPServers["files"].Command)
			assert.Equal(t, 15, loaded.MCPServers["files"].TimeoutSeconds)
			assert.Equal(t, "abc", loaded.MCPServers["web"].Headers["X-Key"])
		})
	}
}

func TestLoadServerListMissingFile(t *testing.T) {
	list, err := LoadServerList(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, list.MCPServers)
}

func TestAddAndRemoveConfiguredServers(t *testing.T) {
	opts := &ServerFileOptions{Path: filepath.Join(t.TempDir(), "mcpServers.json")}

	result, err := AddStdioServer("files", "npx", []string{"-y", "server-filesystem"}, opts)
	require.NoError(t, err)
	assert.Equal(t, "files", result.ServerName)
	assert.False(t, result.Overwritten)

	result, err = AddHTTPServer("web", "http://localhost:8080", map[string]string{"X-Key": "abc"}, opts)
	require.NoError(t, err)
	assert.False(t, result.Overwritten)

	// Re-adding overwrites in place.
	result, err = AddStdioServer("files", "uvx", nil, opts)
	require.NoError(t, err)
	assert.True(t, result.Overwritten)

	servers, err := ListConfiguredServers(opts)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "uvx", servers["files"].Command)

	require.NoError(t, RemoveConfiguredServer("web", opts))
	servers, err = ListConfiguredServers(opts)
	require.NoError(t, err)
	require.Len(t, servers, 1)

	err = RemoveConfiguredServer("web", opts)
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func TestAddServerValidation(t *testing.T) {
	opts := &ServerFileOptions{Path: filepath.Join(t.TempDir(), "mcpServers.json")}

	_, err := AddStdioServer("", "npx", nil, opts)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = AddStdioServer("files", "", nil, opts)
	require.ErrorAs(t, err, &verr)

	_, err = AddHTTPServer("web", "", nil, opts)
	require.ErrorAs(t, err, &verr)
}

func TestServerConfigsSortedByName(t *testing.T) {
	servers := map[string]SimpleServerConfig{
		"zeta":  {Command: "z"},
		"alpha": {Command: "a"},
		"mid":   {Command: "m"},
	}
	configs := ServerConfigs(servers)
	require.Len(t, configs, 3)
	assert.Equal(t, "alpha", configs[0].Name)
	assert.Equal(t, "mid", configs[1].Name)
	assert.Equal(t, "zeta", configs[2].Name)
}

package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the client/manager section of the application configuration.
type Config struct {
	Enabled              bool           `toml:"enabled" json:"enabled" mapstructure:"enabled"`
	DefaultTimeout       time.Duration  `toml:"default_timeout" json:"default_timeout" mapstructure:"default_timeout"`
	AutoReconnect        bool           `toml:"auto_reconnect" json:"auto_reconnect" mapstructure:"auto_reconnect"`
	ReconnectInterval    time.Duration  `toml:"reconnect_interval" json:"reconnect_interval" mapstructure:"reconnect_interval"`
	MaxReconnectAttempts int            `toml:"max_reconnect_attempts" json:"max_reconnect_attempts" mapstructure:"max_reconnect_attempts"`
	Servers              []ServerConfig `toml:"servers" json:"servers" mapstructure:"servers"`
}

// DefaultConfig returns the default client/manager configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:              false,
		DefaultTimeout:       DefaultTimeout,
		AutoReconnect:        true,
		ReconnectInterval:    30 * time.Second,
		MaxReconnectAttempts: 5,
		Servers:              []ServerConfig{},
	}
}

// ManagerOptions derives supervision settings from the config.
func (c *Config) ManagerOptions() ManagerOptions {
	return ManagerOptions{
		AutoReconnect:        c.AutoReconnect,
		ReconnectInterval:    c.ReconnectInterval,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
	}
}

// AutoConnectServers returns the configs the caller should hand to
// ConnectAll: enabled servers flagged for auto-connect.
func (c *Config) AutoConnectServers() []ServerConfig {
	var out []ServerConfig
	for _, sc := range c.Servers {
		if sc.Enabled && sc.AutoConnect {
			out = append(out, sc)
		}
	}
	return out
}

// SimpleServerConfig is the storage shape used in server-list files
// (mcpServers.json and friends). Durations are plain seconds there.
type SimpleServerConfig struct {
	Transport      string            `json:"transport,omitempty" yaml:"transport,omitempty" toml:"transport,omitempty"`
	Command        string            `json:"command,omitempty" yaml:"command,omitempty" toml:"command,omitempty"`
	Args           []string          `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
	URL            string            `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`
	Env            map[string]string `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
	WorkingDir     string            `json:"working_dir,omitempty" yaml:"working_dir,omitempty" toml:"working_dir,omitempty"`
	Description    string            `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	TimeoutSeconds int               `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	RetryAttempts  int               `json:"retry_attempts,omitempty" yaml:"retry_attempts,omitempty" toml:"retry_attempts,omitempty"`
	AutoConnect    *bool             `json:"auto_connect,omitempty" yaml:"auto_connect,omitempty" toml:"auto_connect,omitempty"`
	Enabled        *bool             `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty" yaml:"metadata,omitempty" toml:"metadata,omitempty"`
}

// ServerListFile is the on-disk shape keyed by server name.
type ServerListFile struct {
	MCPServers map[string]SimpleServerConfig `json:"mcpServers" yaml:"mcpServers" toml:"mcpServers"`
}

// ServerFileOptions points file helpers at a specific server-list file.
type ServerFileOptions struct {
	// Path overrides auto-detection (./mcpServers.json, then
	// ~/.mcpwire/mcpServers.json).
	Path string
}

// AddServerResult reports what a file mutation did.
type AddServerResult struct {
	ServerName  string
	Config      ServerConfig
	ConfigPath  string
	Overwritten bool
}

// ToServerConfig expands the storage shape into a validated-shape config.
func (s SimpleServerConfig) ToServerConfig(name string) ServerConfig {
	transport := TransportKind(s.Transport)
	if transport == "" {
		if s.URL != "" {
			transport = TransportHTTP
		} else {
			transport = TransportStdio
		}
	}
	timeout := time.Duration(s.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := s.RetryAttempts
	if retries <= 0 {
		retries = 3
	}
	cfg := ServerConfig{
		Name:          name,
		Description:   s.Description,
		Transport:     transport,
		Command:       s.Command,
		Args:          s.Args,
		URL:           s.URL,
		WorkingDir:    s.WorkingDir,
		Env:           s.Env,
		Headers:       s.Headers,
		Timeout:       timeout,
		RetryAttempts: retries,
		AutoConnect:   s.AutoConnect == nil || *s.AutoConnect,
		Enabled:       s.Enabled == nil || *s.Enabled,
		Metadata:      s.Metadata,
	}
	if cfg.Description == "" {
		cfg.Description = fmt.Sprintf("MCP server: %s", name)
	}
	return cfg
}

// ToSimple converts a config back to its storage shape.
func (c ServerConfig) ToSimple() SimpleServerConfig {
	return SimpleServerConfig{
		Transport:      string(c.kind()),
		Command:        c.Command,
		Args:           c.Args,
		URL:            c.URL,
		Headers:        c.Headers,
		Env:            c.Env,
		WorkingDir:     c.WorkingDir,
		Description:    c.Description,
		TimeoutSeconds: int(c.Timeout / time.Second),
		RetryAttempts:  c.RetryAttempts,
	}
}

// LoadServerList reads a server-list file, decoding by extension
// (.json, .yaml/.yml, .toml). A missing file yields an empty list.
func LoadServerList(path string) (*ServerListFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ServerListFile{MCPServers: make(map[string]SimpleServerConfig)}, nil
		}
		return nil, fmt.Errorf("failed to read server list: %w", err)
	}

	var list ServerListFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &list)
	case ".toml":
		err = toml.Unmarshal(data, &list)
	default:
		err = json.Unmarshal(data, &list)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse server list %s: %w", path, err)
	}
	if list.MCPServers == nil {
		list.MCPServers = make(map[string]SimpleServerConfig)
	}
	return &list, nil
}

// SaveServerList writes a server-list file, encoding by extension.
func SaveServerList(path string, list *ServerListFile) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(list)
	case ".toml":
		data, err = toml.Marshal(list)
	default:
		data, err = json.MarshalIndent(list, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode server list: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write server list: %w", err)
	}
	return nil
}

// AddStdioServer persists a stdio-type server to the server-list file.
func AddStdioServer(name, command string, args []string, opts *ServerFileOptions) (*AddServerResult, error) {
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if command == "" {
		return nil, &ValidationError{Field: "command", Reason: "required for stdio servers"}
	}
	cfg := ServerConfig{
		Name:          name,
		Transport:     TransportStdio,
		Command:       command,
		Args:          args,
		Timeout:       DefaultTimeout,
		RetryAttempts: 3,
		AutoConnect:   true,
		Enabled:       true,
	}
	return addServerToFile(cfg, opts)
}

// AddHTTPServer persists an HTTP-type server to the server-list file.
func AddHTTPServer(name, url string, headers map[string]string, opts *ServerFileOptions) (*AddServerResult, error) {
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if url == "" {
		return nil, &ValidationError{Field: "url", Reason: "required for http servers"}
	}
	cfg := ServerConfig{
		Name:          name,
		Transport:     TransportHTTP,
		URL:           url,
		Headers:       headers,
		Timeout:       DefaultTimeout,
		RetryAttempts: 3,
		AutoConnect:   true,
		Enabled:       true,
	}
	return addServerToFile(cfg, opts)
}

// RemoveConfiguredServer deletes a server from the server-list file.
func RemoveConfiguredServer(name string, opts *ServerFileOptions) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	path := resolveServerListPath(opts)
	list, err := LoadServerList(path)
	if err != nil {
		return err
	}
	if _, exists := list.MCPServers[name]; !exists {
		return fmt.Errorf("%s: %w", name, ErrServerNotFound)
	}
	delete(list.MCPServers, name)
	return SaveServerList(path, list)
}

// ListConfiguredServers returns every server in the server-list file.
func ListConfiguredServers(opts *ServerFileOptions) (map[string]SimpleServerConfig, error) {
	list, err := LoadServerList(resolveServerListPath(opts))
	if err != nil {
		return nil, err
	}
	return list.MCPServers, nil
}

// ServerConfigs expands a server-list map into configs, sorted by name
// for deterministic iteration.
func ServerConfigs(servers map[string]SimpleServerConfig) []ServerConfig {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	configs := make([]ServerConfig, 0, len(names))
	for _, name := range names {
		configs = append(configs, servers[name].ToServerConfig(name))
	}
	return configs
}

func addServerToFile(cfg ServerConfig, opts *ServerFileOptions) (*AddServerResult, error) {
	path := resolveServerListPath(opts)
	list, err := LoadServerList(path)
	if err != nil {
		return nil, err
	}

	_, overwritten := list.MCPServers[cfg.Name]
	list.MCPServers[cfg.Name] = cfg.ToSimple()

	if err := SaveServerList(path, list); err != nil {
		return nil, err
	}
	return &AddServerResult{
		ServerName:  cfg.Name,
		Config:      cfg,
		ConfigPath:  path,
		Overwritten: overwritten,
	}, nil
}

func resolveServerListPath(opts *ServerFileOptions) string {
	if opts != nil && opts.Path != "" {
		return opts.Path
	}
	local := "./mcpServers.json"
	if _, err := os.Stat(local); err == nil {
		return local
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mcpwire", "mcpServers.json")
}

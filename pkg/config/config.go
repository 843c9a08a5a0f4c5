// Package config loads the application configuration from mcpwire.toml,
// environment variables, and the server-list file.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mcpwire/mcpwire/pkg/mcp"
)

type Config struct {
	Home string     `mapstructure:"home"`
	Log  LogConfig  `mapstructure:"log"`
	MCP  mcp.Config `mapstructure:"mcp"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Debug bool   `mapstructure:"debug"`
}

// Load reads configuration in order of precedence: the explicit path,
// ./mcpwire.toml, then <home>/mcpwire.toml. Missing files fall back to
// defaults; environment variables use the MCPWIRE_ prefix.
func Load(configPath string) (*Config, error) {
	config := &Config{}

	home := os.Getenv("MCPWIRE_HOME")
	if home == "" {
		home = "~/.mcpwire"
	}
	home = expandHomePath(home)

	if configPath != "" {
		absPath, _ := filepath.Abs(configPath)
		viper.SetConfigFile(absPath)
		home = filepath.Dir(absPath)
	} else {
		if _, err := os.Stat("mcpwire.toml"); err == nil {
			abs, _ := filepath.Abs("mcpwire.toml")
			viper.SetConfigFile(abs)
			home = filepath.Dir(abs)
		} else {
			viper.SetConfigFile(filepath.Join(home, "mcpwire.toml"))
		}
	}

	setDefaults()
	bindEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		// No default config file is fine, defaults apply.
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Home == "" {
		config.Home = home
	}
	config.Home = expandHomePath(config.Home)

	if config.MCP.DefaultTimeout == 0 {
		defaults := mcp.DefaultConfig()
		config.MCP.DefaultTimeout = defaults.DefaultTimeout
		config.MCP.ReconnectInterval = defaults.ReconnectInterval
		config.MCP.MaxReconnectAttempts = defaults.MaxReconnectAttempts
	}

	if err := config.loadServerList(); err != nil {
		log.Printf("Warning: failed to load server list: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadServerList merges servers from the server-list file into the MCP
// section. Entries declared inline in mcpwire.toml win on name clash.
func (c *Config) loadServerList() error {
	list, err := mcp.LoadServerList(c.ServerListPath())
	if err != nil {
		return err
	}
	if len(list.MCPServers) == 0 {
		return nil
	}

	inline := make(map[string]bool, len(c.MCP.Servers))
	for _, sc := range c.MCP.Servers {
		inline[sc.Name] = true
	}
	for _, sc := range mcp.ServerConfigs(list.MCPServers) {
		if !inline[sc.Name] {
			c.MCP.Servers = append(c.MCP.Servers, sc)
		}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.debug", false)

	defaults := mcp.DefaultConfig()
	viper.SetDefault("mcp.enabled", defaults.Enabled)
	viper.SetDefault("mcp.default_timeout", defaults.DefaultTimeout)
	viper.SetDefault("mcp.auto_reconnect", defaults.AutoReconnect)
	viper.SetDefault("mcp.reconnect_interval", defaults.ReconnectInterval)
	viper.SetDefault("mcp.max_reconnect_attempts", defaults.MaxReconnectAttempts)
}

func bindEnvVars() {
	viper.SetEnvPrefix("MCPWIRE")
	viper.AutomaticEnv()

	if err := viper.BindEnv("home", "MCPWIRE_HOME"); err != nil {
		log.Printf("Warning: failed to bind home env var: %v", err)
	}
	if err := viper.BindEnv("log.level", "MCPWIRE_LOG_LEVEL"); err != nil {
		log.Printf("Warning: failed to bind log.level env var: %v", err)
	}
	if err := viper.BindEnv("log.debug", "MCPWIRE_LOG_DEBUG"); err != nil {
		log.Printf("Warning: failed to bind log.debug env var: %v", err)
	}
	if err := viper.BindEnv("mcp.enabled", "MCPWIRE_MCP_ENABLED"); err != nil {
		log.Printf("Warning: failed to bind mcp.enabled env var: %v", err)
	}
	if err := viper.BindEnv("mcp.default_timeout", "MCPWIRE_MCP_DEFAULT_TIMEOUT"); err != nil {
		log.Printf("Warning: failed to bind mcp.default_timeout env var: %v", err)
	}
	if err := viper.BindEnv("mcp.auto_reconnect", "MCPWIRE_MCP_AUTO_RECONNECT"); err != nil {
		log.Printf("Warning: failed to bind mcp.auto_reconnect env var: %v", err)
	}
	if err := viper.BindEnv("mcp.reconnect_interval", "MCPWIRE_MCP_RECONNECT_INTERVAL"); err != nil {
		log.Printf("Warning: failed to bind mcp.reconnect_interval env var: %v", err)
	}
	if err := viper.BindEnv("mcp.max_reconnect_attempts", "MCPWIRE_MCP_MAX_RECONNECT_ATTEMPTS"); err != nil {
		log.Printf("Warning: failed to bind mcp.max_reconnect_attempts env var: %v", err)
	}
}

// ServerListPath returns the path to the server-list file under Home.
func (c *Config) ServerListPath() string {
	return filepath.Join(c.Home, "mcpServers.json")
}

func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (supported: debug, info, warn, error)", c.Log.Level)
	}

	if c.MCP.DefaultTimeout < 0 {
		return fmt.Errorf("default_timeout must be non-negative: %v", c.MCP.DefaultTimeout)
	}
	if c.MCP.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max_reconnect_attempts must be non-negative: %d", c.MCP.MaxReconnectAttempts)
	}

	for i := range c.MCP.Servers {
		if err := c.MCP.Servers[i].Validate(); err != nil {
			return fmt.Errorf("server %q: %w", c.MCP.Servers[i].Name, err)
		}
	}
	return nil
}

func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

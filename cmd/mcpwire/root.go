package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpwire/mcpwire/pkg/config"
	mcplog "github.com/mcpwire/mcpwire/pkg/log"
)

var (
	cfgFile string
	debug   bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mcpwire",
	Short: "mcpwire - tool-server client for the Model Context Protocol",
	Long: `mcpwire connects to MCP tool servers over stdio subprocesses or HTTP,
discovers the tools they expose, and invokes them with retry and
timeout handling.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if debug || cfg.Log.Debug {
			mcplog.SetDebug(true)
		} else {
			mcplog.SetLevelName(cfg.Log.Level)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version for the CLI.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mcpwire version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path (default: ./mcpwire.toml or ~/.mcpwire/mcpwire.toml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(serversCmd)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	mcplog "github.com/mcpwire/mcpwire/pkg/log"
	"github.com/mcpwire/mcpwire/pkg/mcp"
	"github.com/mcpwire/mcpwire/pkg/mcp/normalize"
	"github.com/mcpwire/mcpwire/pkg/mcp/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List and call tools on connected servers",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools exposed by configured servers",
	RunE:  runToolsList,
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <tool-name> [json-arguments]",
	Short: "Call a tool with JSON arguments",
	Long: `Call a tool with JSON arguments.

Examples:
  mcpwire tools call read_file '{"path": "./README.md"}'
  mcpwire tools call query --server db '{"sql": "SELECT 1"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runToolsCall,
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsCallCmd)

	toolsListCmd.Flags().StringP("server", "s", "", "Only show tools from this server")
	toolsListCmd.Flags().BoolP("json", "j", false, "Output in JSON format")

	toolsCallCmd.Flags().StringP("server", "s", "", "Call the tool on this server")
	toolsCallCmd.Flags().StringP("timeout", "t", "", "Call timeout (e.g. 30s)")
	toolsCallCmd.Flags().StringP("format", "f", "json", "Result format: json, text, binary, raw, auto")
	toolsCallCmd.Flags().BoolP("json", "j", false, "Output the full invocation result in JSON format")
}

func connectConfigured(ctx context.Context) (*mcp.Client, *mcp.ConnectionManager, error) {
	client := mcp.NewClient()
	manager := mcp.NewConnectionManager(client, mcp.ManagerOptions{AutoReconnect: false})

	servers := cfg.MCP.AutoConnectServers()
	if len(servers) == 0 {
		return nil, nil, fmt.Errorf("no enabled servers configured (see %s)", cfg.ServerListPath())
	}

	results := manager.ConnectAll(ctx, servers)
	connected := 0
	for name, ok := range results {
		if ok {
			connected++
		} else {
			mcplog.Warnf("failed to connect to %s", name)
		}
	}
	if connected == 0 {
		_ = manager.DisconnectAll()
		return nil, nil, fmt.Errorf("no servers could be connected")
	}
	return client, manager, nil
}

func runToolsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, manager, err := connectConfigured(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = manager.DisconnectAll() }()

	serverFilter, _ := cmd.Flags().GetString("server")
	descriptors := client.ListTools(serverFilter)

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return printJSON(descriptors)
	}

	if len(descriptors) == 0 {
		fmt.Println("No tools available.")
		return nil
	}
	fmt.Printf("Available tools (%d):\n\n", len(descriptors))
	for _, d := range descriptors {
		fmt.Printf("  %-30s [%s]  %s\n", d.Name, d.ServerName, d.Description)
	}
	return nil
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	toolName := args[0]
	arguments := map[string]any{}
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &arguments); err != nil {
			return fmt.Errorf("invalid JSON arguments: %w", err)
		}
	}

	client, manager, err := connectConfigured(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = manager.DisconnectAll() }()

	serverName, _ := cmd.Flags().GetString("server")
	formatName, _ := cmd.Flags().GetString("format")

	opts := []tools.ExecuteOption{
		tools.WithServer(serverName),
		tools.WithFormat(normalize.Format(formatName)),
	}
	if timeoutStr, _ := cmd.Flags().GetString("timeout"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		opts = append(opts, tools.WithTimeout(timeout))
	}

	executor := tools.NewExecutor(client)
	result := executor.Execute(ctx, toolName, arguments, opts...)

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return printJSON(result)
	}

	if !result.Success {
		return fmt.Errorf("tool call failed: %s", result.Error)
	}
	fmt.Printf("Tool %s completed in %v\n", toolName, result.Duration)
	return printJSON(result.Result)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

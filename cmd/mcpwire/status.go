package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpwire/mcpwire/pkg/mcp"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection status for configured servers",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolP("json", "j", false, "Output in JSON format")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client := mcp.NewClient()
	manager := mcp.NewConnectionManager(client, cfg.MCP.ManagerOptions())
	defer func() { _ = manager.DisconnectAll() }()

	servers := cfg.MCP.AutoConnectServers()
	if len(servers) == 0 {
		fmt.Println("No enabled servers configured.")
		fmt.Printf("Add one with: mcpwire servers add <name> --command <cmd> (see %s)\n", cfg.ServerListPath())
		return nil
	}

	results := manager.ConnectAll(ctx, servers)
	report := manager.HealthCheck()

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return printJSON(report)
	}

	fmt.Printf("Servers: %d configured, %d connected, %d tools\n\n",
		report.TotalServers, report.ConnectedServers, report.TotalTools)
	infos := client.Connections()
	for _, name := range client.ServerNames() {
		info := infos[name]
		marker := "✗"
		if results[name] && info.Status == mcp.StatusConnected {
			marker = "✓"
		}
		fmt.Printf("  %s %-20s %-12s tools=%d", marker, name, info.Status, info.ToolCount)
		if info.LastError != "" {
			fmt.Printf("  (%s)", info.LastError)
		}
		fmt.Println()
	}
	return nil
}

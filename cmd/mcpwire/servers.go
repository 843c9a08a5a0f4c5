package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcpwire/mcpwire/pkg/mcp"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Manage the server-list file",
	Long: `Manage servers in the server-list file (mcpServers.json by default;
.yaml and .toml files work too when named with --file).`,
}

var serversAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a server to the server-list file",
	Long: `Add a server to the server-list file.

Examples:
  mcpwire servers add files --command npx --args "-y,@modelcontextprotocol/server-filesystem,/tmp"
  mcpwire servers add search --url http://localhost:8080/mcp --header "Authorization=Bearer tok"`,
	Args: cobra.ExactArgs(1),
	RunE: runServersAdd,
}

var serversRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a server from the server-list file",
	Args:  cobra.ExactArgs(1),
	RunE:  runServersRemove,
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List servers in the server-list file",
	RunE:  runServersList,
}

func init() {
	serversCmd.AddCommand(serversAddCmd)
	serversCmd.AddCommand(serversRemoveCmd)
	serversCmd.AddCommand(serversListCmd)

	serversCmd.PersistentFlags().String("file", "", "server-list file path (default: ./mcpServers.json or ~/.mcpwire/mcpServers.json)")

	serversAddCmd.Flags().String("command", "", "executable for a stdio server")
	serversAddCmd.Flags().StringSlice("args", nil, "arguments for a stdio server")
	serversAddCmd.Flags().String("url", "", "endpoint for an HTTP server")
	serversAddCmd.Flags().StringSlice("header", nil, "HTTP header as key=value (repeatable)")
}

func serverFileOptions(cmd *cobra.Command) *mcp.ServerFileOptions {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return nil
	}
	return &mcp.ServerFileOptions{Path: path}
}

func runServersAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	command, _ := cmd.Flags().GetString("command")
	url, _ := cmd.Flags().GetString("url")

	if command == "" && url == "" {
		return fmt.Errorf("either --command (stdio) or --url (http) is required")
	}
	if command != "" && url != "" {
		return fmt.Errorf("--command and --url are mutually exclusive")
	}

	opts := serverFileOptions(cmd)

	var (
		result *mcp.AddServerResult
		err    error
	)
	if command != "" {
		cmdArgs, _ := cmd.Flags().GetStringSlice("args")
		result, err = mcp.AddStdioServer(name, command, cmdArgs, opts)
	} else {
		rawHeaders, _ := cmd.Flags().GetStringSlice("header")
		headers, perr := parseHeaders(rawHeaders)
		if perr != nil {
			return perr
		}
		result, err = mcp.AddHTTPServer(name, url, headers, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to add server: %w", err)
	}

	verb := "Added"
	if result.Overwritten {
		verb = "Updated"
	}
	fmt.Printf("%s server %q in %s\n", verb, result.ServerName, result.ConfigPath)
	return nil
}

func runServersRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := mcp.RemoveConfiguredServer(name, serverFileOptions(cmd)); err != nil {
		return fmt.Errorf("failed to remove server: %w", err)
	}
	fmt.Printf("Removed server %q\n", name)
	return nil
}

func runServersList(cmd *cobra.Command, args []string) error {
	servers, err := mcp.ListConfiguredServers(serverFileOptions(cmd))
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		fmt.Println("No servers configured.")
		return nil
	}

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Configured servers (%d):\n\n", len(names))
	for _, name := range names {
		sc := servers[name].ToServerConfig(name)
		switch sc.Transport {
		case mcp.TransportHTTP:
			fmt.Printf("  %-20s http   %s\n", name, sc.URL)
		default:
			fmt.Printf("  %-20s stdio  %s %s\n", name, sc.Command, strings.Join(sc.Args, " "))
		}
	}
	return nil
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, found := strings.Cut(h, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid header %q, expected key=value", h)
		}
		headers[key] = value
	}
	return headers, nil
}

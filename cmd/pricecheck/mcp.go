package main

import (
	pcmcp "github.com/hyperengineering/pricecheck/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for agent integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio, exposing the
price collection workflow as tools.

Configuration example:

  {
    "mcpServers": {
      "pricecheck": {
        "command": "pricecheck",
        "args": ["mcp"],
        "env": {
          "PRICECHECK_PROFILE": "lisbon",
          "PRICECHECK_BACKEND_URL": "https://backend.example/odata"
        }
      }
    }
  }

Environment variables:
  PRICECHECK_PROFILE      Profile to use (default: "default")
  PRICECHECK_DB_PATH      Path to local database (overrides profile)
  PRICECHECK_BACKEND_URL  Backend URL (optional, enables sync)
  PRICECHECK_API_KEY      Backend API key
  PRICECHECK_USERNAME     Backend user for basic auth
  PRICECHECK_PASSWORD     Backend password for basic auth`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// The client persists for the server lifetime
	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	return pcmcp.NewServer(client).Run()
}

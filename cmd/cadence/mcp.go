package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/cadence/internal/cli"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the station as an MCP server",
	Long:  `Runs the scheduler in the background and serves its control surface as MCP tools over stdio or SSE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.MCPOptions{RunOptions: runOptions(cmd)}
		opts.Headless = true
		opts.Simulate, _ = cmd.Flags().GetBool("simulate")
		opts.RedisAddr, _ = cmd.Flags().GetString("redis")
		opts.Transport, _ = cmd.Flags().GetString("transport")
		opts.Port, _ = cmd.Flags().GetInt("port")
		return cli.ServeMCP(opts)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().Int("port", 8080, "Port for the sse transport")
	mcpCmd.Flags().Bool("simulate", false, "Use simulated instruments")
	mcpCmd.Flags().String("redis", "", "Store telemetry in the Redis server at this address")
}

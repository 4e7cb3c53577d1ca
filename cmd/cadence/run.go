package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/cadence/internal/cli"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [procedure]",
	Short: "Run the station scheduler",
	Long: `Starts the scheduler with the initial procedure (from the configuration, or the argument).
Type a procedure name and press enter to switch to it; 'stop' returns the scheduler to idle.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd)
		if len(args) > 0 {
			opts.Procedure = args[0]
		}
		opts.HTTPAddr, _ = cmd.Flags().GetString("http")
		opts.RedisAddr, _ = cmd.Flags().GetString("redis")
		opts.Simulate, _ = cmd.Flags().GetBool("simulate")
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		return cli.Execute(opts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("http", "", "Serve the operator API on this address (e.g. :8080)")
	runCmd.Flags().String("redis", "", "Store telemetry in the Redis server at this address")
	runCmd.Flags().Bool("simulate", false, "Use simulated instruments")
	runCmd.Flags().Bool("headless", false, "Run without console output or input")

	rootCmd.RunE = runCmd.RunE
	rootCmd.Args = runCmd.Args
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Cadence is a resumable procedure scheduler for cryogenic stations",
	Long: `Cadence runs station procedures one step at a time, records telemetry at every step
and lets the operator switch procedures between any two steps.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Station configuration file (YAML)")
	rootCmd.PersistentFlags().String("procedures", "", "Directory with YAML and Starlark procedures")
	rootCmd.PersistentFlags().Bool("test-mode", false, "Shorten the built-in procedures for bench runs")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// runOptions collects the persistent flags.
func runOptions(cmd *cobra.Command) cli.RunOptions {
	flags := cmd.Flags()
	opts := cli.RunOptions{}
	opts.ConfigPath, _ = flags.GetString("config")
	opts.ProceduresDir, _ = flags.GetString("procedures")
	opts.TestMode, _ = flags.GetBool("test-mode")
	opts.Debug, _ = flags.GetBool("debug")
	return opts
}

// loadEngine builds an engine for inspection commands. The station is always simulated.
func loadEngine(cmd *cobra.Command) (*cadence.Engine, error) {
	opts := runOptions(cmd)
	opts.Simulate = true
	cfg, err := cli.LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	engineOpts := []cadence.Option{cadence.WithTestMode(cfg.TestMode)}
	if cfg.ProceduresDir != "" {
		engineOpts = append(engineOpts, cadence.WithProceduresDir(cfg.ProceduresDir))
	}
	return cadence.New(engineOpts...)
}

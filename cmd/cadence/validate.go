package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check procedures for consistency",
	Long:  `Compiles every procedure and checks that each declared exit names a registered procedure.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := loadEngine(cmd)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if err := eng.Registry().Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d procedures are valid! ✅\n", len(eng.Registry().Names()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

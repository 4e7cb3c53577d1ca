package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered procedures and their exits",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := loadEngine(cmd)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROCEDURE\tSTEPS\tEXITS")
		for _, st := range eng.Registry().States() {
			steps := "-"
			if n := st.StepCount(); n > 0 {
				steps = fmt.Sprint(n)
			}
			exits := strings.Join(st.Exits(), ", ")
			if exits == "" {
				exits = "(idle)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Name(), steps, exits)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

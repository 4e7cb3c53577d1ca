package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/cadence/internal/presentation/tui"
)

var showCmd = &cobra.Command{
	Use:   "show <procedure>",
	Short: "Print the source of a procedure",
	Long:  `Prints the source of a procedure. With --line, the line is marked the way progress shows it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := loadEngine(cmd)
		if err != nil {
			return err
		}
		st, err := eng.Registry().Get(args[0])
		if err != nil {
			return err
		}

		source := st.Source()
		if cmd.Flags().Changed("line") {
			line, _ := cmd.Flags().GetInt("line")
			source = st.Highlight(line)
		}

		if plain, _ := cmd.Flags().GetBool("plain"); plain {
			fmt.Fprintln(cmd.OutOrStdout(), source)
			return nil
		}
		render := tui.NewRenderer(0)
		out, err := render(tui.SourceMarkdown(st.Name(), st.File(), source))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Int("line", -1, "Mark this 0-based source line")
	showCmd.Flags().Bool("plain", false, "Print without terminal styling")
}

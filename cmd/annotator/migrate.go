package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the store to the latest schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(a.applied) == 0 {
				fmt.Fprintln(out, "schema up to date")
				return nil
			}
			rows := make([][]string, 0, len(a.applied))
			for _, step := range a.applied {
				rows = append(rows, []string{step.From, step.To, fmt.Sprint(step.Flushes), fmt.Sprint(step.Written)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"From", "To", "Batches", "Writes"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meshboot/cmd/meshboot/ui"
)

func statusCmd(configPath *string, debug *bool) *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the bootstrap phase, mesh address, and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHost(*configPath, *debug)
			if err != nil {
				return err
			}

			phase, err := h.store.Phase()
			if err != nil {
				return err
			}
			addr, err := h.store.ReadAddress()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", ui.Label("phase:"), phase)
			fmt.Fprintf(out, "%s %s\n", ui.Label("mesh address:"), addr)

			journal := h.openJournal()
			if journal == nil {
				return nil
			}
			defer journal.Close()

			recent, err := journal.Recent(runs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "journal: %v\n", err)
				return nil
			}
			if len(recent) == 0 {
				return nil
			}
			fmt.Fprintf(out, "%s\n", ui.Label("recent runs:"))
			for _, r := range recent {
				fmt.Fprintf(out, "  %s %s %s %s\n", r.StartedAt, r.Phase, r.Outcome, r.Detail)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 5, "How many journal entries to show")
	return cmd
}

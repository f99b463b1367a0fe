package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meshboot/cmd/meshboot/ui"
	"meshboot/config"
	"meshboot/internal/logging"
)

func main() {
	var (
		configPath string
		debug      bool
	)

	root := &cobra.Command{
		Use:           "meshboot",
		Short:         "Two-phase host bootstrap for mesh network nodes",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.Configure()
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the bootstrap configuration")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(phase1Cmd(&configPath, &debug))
	root.AddCommand(phase2Cmd(&configPath, &debug))
	root.AddCommand(reconcileCmd(&configPath, &debug))
	root.AddCommand(statusCmd(&configPath, &debug))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

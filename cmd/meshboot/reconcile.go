package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"meshboot/internal/netconf"
)

// reconcileCmd re-converges networks and firewall rules on an already
// bootstrapped host. Deployment tooling runs this after engine restarts
// wiped the DOCKER-USER chain.
func reconcileCmd(configPath *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Re-converge Docker networks and mesh firewall rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h, err := loadHost(*configPath, *debug)
			if err != nil {
				return err
			}
			networks, err := h.dockerNetworks()
			if err != nil {
				return err
			}
			if err := networks.WaitReady(ctx); err != nil {
				return err
			}

			specs := netconf.DefaultNetworks()
			for _, spec := range specs {
				bridge, err := networks.EnsureNetwork(ctx, spec)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "network %s on %s\n", spec.Name, bridge)
			}

			rec := &netconf.Reconciler{Rules: netconf.HostRules()}
			rec.Reconcile(specs)

			return netconf.WriteDescription(h.store.NetworksPath(), specs)
		},
	}
}

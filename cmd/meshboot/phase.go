package main

import (
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"meshboot/internal/account"
	"meshboot/internal/bootstrap"
	"meshboot/internal/dnssync"
	"meshboot/internal/firewall"
	"meshboot/internal/meshjoin"
	"meshboot/internal/netconf"
)

func phase1Cmd(configPath *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "phase1",
		Short: "Prepare the host and checkpoint for reboot",
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
			journal := h.openJournal()
			defer journal.Close()

			p1 := &bootstrap.Phase1{
				Config:   h.cfg,
				Networks: netconf.DefaultNetworks(),
				Packages: h.apt,
				Services: h.sysd,
				Network:  networks,
				Rules:    &netconf.Reconciler{Rules: netconf.HostRules()},
				Accounts: account.Provisioner{Run: h.runner},
				State:    h.store,
				Journal:  journal,
				Notify:   report,
			}
			return p1.Run(ctx)
		},
	}
}

func phase2Cmd(configPath *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "phase2",
		Short: "Activate networks, join the mesh, and finalize the firewall",
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
			journal := h.openJournal()
			defer journal.Close()

			specs := netconf.DefaultNetworks()
			meshCLI := meshjoin.CLI{Run: h.runner}

			p2 := &bootstrap.Phase2{
				Config:   h.cfg,
				Networks: specs,
				Packages: h.apt,
				Services: h.sysd,
				Network:  networks,
				Rules:    &netconf.Reconciler{Rules: netconf.HostRules()},
				Mesh: &meshjoin.Connector{
					Client:   meshCLI,
					AuthKey:  h.authKey(),
					Hostname: h.cfg.Hostname,
					Routes:   subnets(specs),
				},
				Socket:     meshCLI,
				Firewall:   firewall.New(h.runner),
				State:      h.store,
				Journal:    journal,
				ClockCheck: bootstrap.CheckClock,
				Notify:     report,
			}
			if h.cfg.DNS.Enabled() {
				p2.DNS = &dnssync.Reconciler{
					Client: dnssync.NewClient(h.cfg.DNS.Email, h.cfg.DNS.Token),
					TTL:    h.cfg.DNS.TTL,
				}
			}
			return p2.Run(ctx)
		},
	}
}

func subnets(specs []netconf.NetworkSpec) []netip.Prefix {
	out := make([]netip.Prefix, len(specs))
	for i, s := range specs {
		out[i] = s.Subnet
	}
	return out
}

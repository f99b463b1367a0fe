// Package firewall sets the host firewall policy: default deny inbound,
// allow outbound, SSH always reachable, and the mesh interface trusted
// once it exists.
package firewall

import (
	"context"
	"fmt"
	"log/slog"

	"meshboot/internal/execx"
)

// Firewall drives ufw. LinkExists is injected so tests (and non-linux
// builds) do not need netlink.
type Firewall struct {
	Run        execx.Runner
	LinkExists func(name string) bool
}

func New(run execx.Runner) *Firewall {
	return &Firewall{Run: run, LinkExists: linkExists}
}

func (f *Firewall) ufw(ctx context.Context, args ...string) error {
	if _, err := f.Run.Run(ctx, "ufw", args...); err != nil {
		return fmt.Errorf("ufw %v: %w", args, err)
	}
	return nil
}

// Baseline applies the default-deny policy before anything listens.
// SSH is allowed first so a failure later in phase2 cannot lock the
// orchestrator out.
func (f *Firewall) Baseline(ctx context.Context) error {
	steps := [][]string{
		{"default", "deny", "incoming"},
		{"default", "allow", "outgoing"},
		{"allow", "OpenSSH"},
	}
	for _, s := range steps {
		if err := f.ufw(ctx, s...); err != nil {
			return err
		}
	}
	return nil
}

// Finalize trusts the mesh interface and turns the policy on. A missing
// mesh link is logged and skipped — the join may have failed, and a node
// without its overlay still needs its firewall enabled.
func (f *Firewall) Finalize(ctx context.Context, meshIface string) error {
	if f.LinkExists != nil && f.LinkExists(meshIface) {
		if err := f.ufw(ctx, "allow", "in", "on", meshIface); err != nil {
			return err
		}
	} else {
		slog.Warn("mesh interface absent; firewall will not trust it", "iface", meshIface)
	}
	return f.ufw(ctx, "--force", "enable")
}

package bootstrap

import (
	"context"
	"net/netip"

	"meshboot/internal/account"
	"meshboot/internal/meshjoin"
	"meshboot/internal/netconf"
)

// The executors depend on narrow interfaces so tests can inject fakes;
// the cmd layer wires the real implementations.

type PackageManager interface {
	Install(ctx context.Context, pkgs ...string) error
	Remove(ctx context.Context, pkg string) error
}

type ServiceManager interface {
	Enable(ctx context.Context, unit string) error
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
	InstallPhase2Unit(ctx context.Context, execStart string) error
}

type NetworkManager interface {
	WaitReady(ctx context.Context) error
	EnsureNetwork(ctx context.Context, spec netconf.NetworkSpec) (string, error)
	RecreateNetwork(ctx context.Context, spec netconf.NetworkSpec) (string, error)
}

type RuleReconciler interface {
	Reconcile(specs []netconf.NetworkSpec)
}

type AccountProvisioner interface {
	Ensure(ctx context.Context, spec account.Spec) error
}

type MeshConnector interface {
	Connect(ctx context.Context) meshjoin.Result
}

// MeshSocket answers when the mesh daemon's control socket is up.
type MeshSocket interface {
	PingSocket(ctx context.Context) error
}

type DNSEnsurer interface {
	Ensure(ctx context.Context, fqdn string, addr netip.Addr) error
}

type FirewallManager interface {
	Baseline(ctx context.Context) error
	Finalize(ctx context.Context, meshIface string) error
}

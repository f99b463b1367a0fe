package bootstrap

import (
	"context"
	"net/netip"
	"strings"

	"meshboot/internal/account"
	"meshboot/internal/meshjoin"
	"meshboot/internal/netconf"
)

// fakeHost implements every executor port and records the calls in
// order, so tests can assert both behavior and sequencing.
type fakeHost struct {
	calls []string

	installErr error
	startErr   map[string]error
	ensureErr  error
	joinResult meshjoin.Result
	dnsErr     error
}

func (f *fakeHost) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeHost) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeHost) Install(_ context.Context, pkgs ...string) error {
	f.record("install " + strings.Join(pkgs, " "))
	return f.installErr
}

func (f *fakeHost) Remove(_ context.Context, pkg string) error {
	f.record("remove " + pkg)
	return nil
}

func (f *fakeHost) Enable(_ context.Context, unit string) error {
	f.record("enable " + unit)
	return nil
}

func (f *fakeHost) Start(_ context.Context, unit string) error {
	f.record("start " + unit)
	return f.startErr[unit]
}

func (f *fakeHost) Stop(_ context.Context, unit string) error {
	f.record("stop " + unit)
	return nil
}

func (f *fakeHost) Restart(_ context.Context, unit string) error {
	f.record("restart " + unit)
	return nil
}

func (f *fakeHost) InstallPhase2Unit(_ context.Context, execStart string) error {
	f.record("install-unit " + execStart)
	return nil
}

func (f *fakeHost) WaitReady(context.Context) error {
	f.record("wait-ready")
	return nil
}

func (f *fakeHost) EnsureNetwork(_ context.Context, spec netconf.NetworkSpec) (string, error) {
	f.record("ensure-network " + spec.Name)
	return "br-" + spec.Name, f.ensureErr
}

func (f *fakeHost) RecreateNetwork(_ context.Context, spec netconf.NetworkSpec) (string, error) {
	f.record("recreate-network " + spec.Name)
	return "br-" + spec.Name, nil
}

func (f *fakeHost) Reconcile(specs []netconf.NetworkSpec) {
	f.record("reconcile-rules")
}

func (f *fakeHost) Ensure(_ context.Context, spec account.Spec) error {
	f.record("account " + spec.Username)
	return nil
}

func (f *fakeHost) Connect(context.Context) meshjoin.Result {
	f.record("mesh-connect")
	return f.joinResult
}

func (f *fakeHost) PingSocket(context.Context) error {
	f.record("ping-socket")
	return nil
}

func (f *fakeHost) EnsureRecord(_ context.Context, fqdn string, addr netip.Addr) error {
	f.record("dns " + fqdn + " " + addr.String())
	return f.dnsErr
}

func (f *fakeHost) Baseline(context.Context) error {
	f.record("fw-baseline")
	return nil
}

func (f *fakeHost) Finalize(_ context.Context, iface string) error {
	f.record("fw-finalize " + iface)
	return nil
}

// dnsRecorder adapts fakeHost's EnsureRecord to the DNSEnsurer port,
// which collides with the account port's Ensure method name.
type dnsRecorder struct{ host *fakeHost }

func (d dnsRecorder) Ensure(ctx context.Context, fqdn string, addr netip.Addr) error {
	return d.host.EnsureRecord(ctx, fqdn, addr)
}

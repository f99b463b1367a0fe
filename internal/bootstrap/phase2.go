package bootstrap

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"meshboot/config"
	"meshboot/internal/bootstate"
	"meshboot/internal/check"
	"meshboot/internal/meshjoin"
	"meshboot/internal/netconf"
)

const (
	defaultSocketAttempts = 15
	defaultSocketInterval = 2 * time.Second

	sshDropIn = "60-meshboot.conf"
)

// Phase2 runs once at the boot after phase1, from the continuation unit:
// firewall baseline, deterministic network recreation, mesh join, DNS,
// and firewall finalization, ending with the completion checkpoint. The
// unit may fire again on later boots; the checkpoint makes that a no-op.
type Phase2 struct {
	Config   config.Config
	Networks []netconf.NetworkSpec

	Packages PackageManager
	Services ServiceManager
	Network  NetworkManager
	Rules    RuleReconciler
	Mesh     MeshConnector
	Socket   MeshSocket
	DNS      DNSEnsurer
	Firewall FirewallManager
	State    bootstate.Store
	Journal  *bootstate.Journal

	// ClockCheck runs before anything network-facing. Nil skips it.
	ClockCheck func()

	SocketAttempts int
	SocketInterval time.Duration
	SSHConfigDir   string

	Notify Notify
}

// Run executes phase2. Mesh join and DNS failures degrade; everything the
// host needs to stay reachable and serve containers is fatal.
func (p *Phase2) Run(ctx context.Context) (err error) {
	check.Assert(p.Packages != nil, "Phase2: Packages must not be nil")
	check.Assert(p.Services != nil, "Phase2: Services must not be nil")
	check.Assert(p.Network != nil, "Phase2: Network must not be nil")
	check.Assert(p.Mesh != nil, "Phase2: Mesh must not be nil")
	check.Assert(p.Firewall != nil, "Phase2: Firewall must not be nil")

	cur, err := p.State.Phase()
	if err != nil {
		return err
	}
	switch {
	case cur == bootstate.Phase2Complete:
		emit(p.Notify, StatusOK, "phase2", "already complete, nothing to do")
		return nil
	case cur < bootstate.Phase2Pending:
		err := fmt.Errorf("phase2 requires the phase1 checkpoint, status is %s", cur)
		emit(p.Notify, StatusFail, "phase2", err.Error())
		return err
	}

	if err := p.Config.CheckPlaceholders(); err != nil {
		emit(p.Notify, StatusFail, "config", err.Error())
		return err
	}

	address := bootstate.AddressPending
	if p.Journal != nil {
		id, jerr := p.Journal.Begin("phase2")
		if jerr != nil {
			emit(p.Notify, StatusWarn, "journal", jerr.Error())
		} else {
			defer func() {
				outcome := "ok"
				detail := "address=" + address
				if up, ok := bootUptime(); ok {
					detail += " uptime=" + up.String()
				}
				if err != nil {
					outcome, detail = "failed", err.Error()
				}
				if ferr := p.Journal.Finish(id, outcome, detail); ferr != nil {
					emit(p.Notify, StatusWarn, "journal", ferr.Error())
				}
			}()
		}
	}

	if p.ClockCheck != nil {
		p.ClockCheck()
	}

	if err := p.convergePackages(ctx); err != nil {
		return err
	}
	if err := p.Firewall.Baseline(ctx); err != nil {
		emit(p.Notify, StatusFail, "firewall", err.Error())
		return fmt.Errorf("firewall baseline: %w", err)
	}
	emit(p.Notify, StatusOK, "firewall", "default deny incoming, OpenSSH allowed")

	if err := p.activateNetworks(ctx); err != nil {
		return err
	}

	address = p.joinMesh(ctx)
	if werr := p.State.WriteAddress(address); werr != nil {
		emit(p.Notify, StatusWarn, "mesh", werr.Error())
	}

	p.reconcileDNS(ctx, address)

	if err := p.Firewall.Finalize(ctx, p.Config.MeshInterface); err != nil {
		emit(p.Notify, StatusFail, "firewall", err.Error())
		return fmt.Errorf("firewall finalize: %w", err)
	}
	emit(p.Notify, StatusOK, "firewall", "enabled, mesh interface trusted")

	if err := p.applySSHPolicy(ctx); err != nil {
		return err
	}

	if err := p.State.MarkComplete(); err != nil {
		emit(p.Notify, StatusFail, "checkpoint", err.Error())
		return err
	}
	emit(p.Notify, StatusOK, "phase2", "bootstrap complete, mesh address "+address)
	return nil
}

// convergePackages removes the known-conflicting packages first, then
// installs the phase2 set. iptables-persistent restores stale rules over
// the ones Docker and ufw program, so it has to go before ufw arrives.
func (p *Phase2) convergePackages(ctx context.Context) error {
	for _, pkg := range p.Config.Packages.Conflict {
		if err := p.Packages.Remove(ctx, pkg); err != nil {
			emit(p.Notify, StatusWarn, "packages", fmt.Sprintf("remove %s: %v", pkg, err))
		}
	}
	if err := p.Packages.Install(ctx, p.Config.Packages.Phase2...); err != nil {
		emit(p.Notify, StatusFail, "packages", err.Error())
		return fmt.Errorf("install phase2 packages: %w", err)
	}
	emit(p.Notify, StatusOK, "packages", "phase2 packages converged")
	return nil
}

// activateNetworks recreates every network from scratch. The reboot wiped
// the engine's runtime state; recreating rather than patching guarantees
// the bridges match the declared layout regardless of what survived.
func (p *Phase2) activateNetworks(ctx context.Context) error {
	if err := p.Services.Start(ctx, "docker"); err != nil {
		emit(p.Notify, StatusFail, "docker", err.Error())
		return fmt.Errorf("start docker: %w", err)
	}
	if err := p.Network.WaitReady(ctx); err != nil {
		emit(p.Notify, StatusFail, "docker", err.Error())
		return err
	}
	for _, spec := range p.Networks {
		if _, err := p.Network.RecreateNetwork(ctx, spec); err != nil {
			emit(p.Notify, StatusFail, "networks", err.Error())
			return fmt.Errorf("recreate network %s: %w", spec.Name, err)
		}
	}
	if p.Rules != nil {
		p.Rules.Reconcile(p.Networks)
	}
	if err := netconf.WriteDescription(p.State.NetworksPath(), p.Networks); err != nil {
		emit(p.Notify, StatusWarn, "networks", err.Error())
	}
	emit(p.Notify, StatusOK, "networks", fmt.Sprintf("%d networks recreated, mesh rules programmed", len(p.Networks)))
	return nil
}

// joinMesh starts the daemon, waits for its socket, and drives the staged
// join. Every failure here degrades to a pending address; the host stays
// bootstrapped and reachable over plain SSH.
func (p *Phase2) joinMesh(ctx context.Context) string {
	if err := p.Services.Start(ctx, "tailscaled"); err != nil {
		emit(p.Notify, StatusWarn, "mesh", fmt.Sprintf("start tailscaled: %v", err))
		return bootstate.AddressPending
	}
	if p.Socket != nil {
		if err := p.waitSocket(ctx); err != nil {
			emit(p.Notify, StatusWarn, "mesh", fmt.Sprintf("daemon socket not answering: %v", err))
		}
	}

	res := p.Mesh.Connect(ctx)
	switch {
	case res.State == meshjoin.StateFailed:
		emit(p.Notify, StatusWarn, "mesh", "join failed, continuing without mesh")
		return bootstate.AddressPending
	case res.Pending():
		emit(p.Notify, StatusWarn, "mesh", "joined but no address assigned yet")
		return bootstate.AddressPending
	default:
		mode := "basic"
		if res.WithRoutes {
			mode = "with routes"
		}
		emit(p.Notify, StatusOK, "mesh", fmt.Sprintf("joined %s, address %s", mode, res.Addr))
		return res.Addr.String()
	}
}

func (p *Phase2) waitSocket(ctx context.Context) error {
	attempts := p.SocketAttempts
	if attempts <= 0 {
		attempts = defaultSocketAttempts
	}
	interval := p.SocketInterval
	if interval <= 0 {
		interval = defaultSocketInterval
	}
	op := func() error { return p.Socket.PingSocket(ctx) }
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)),
		ctx,
	)
	return backoff.Retry(op, b)
}

// reconcileDNS publishes the A record. Skipped entirely while the address
// is pending: publishing a placeholder would poison the record.
func (p *Phase2) reconcileDNS(ctx context.Context, address string) {
	if p.DNS == nil || !p.Config.DNS.Enabled() {
		return
	}
	if address == bootstate.AddressPending {
		emit(p.Notify, StatusWarn, "dns", "address pending, record left untouched")
		return
	}
	addr, err := parseAddr(address)
	if err != nil {
		emit(p.Notify, StatusWarn, "dns", err.Error())
		return
	}
	if err := p.DNS.Ensure(ctx, p.Config.DNS.FQDN, addr); err != nil {
		emit(p.Notify, StatusWarn, "dns", err.Error())
		return
	}
	emit(p.Notify, StatusOK, "dns", p.Config.DNS.FQDN+" -> "+address)
}

func parseAddr(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse mesh address %q: %w", s, err)
	}
	return addr, nil
}

// applySSHPolicy writes the sshd drop-in and reloads sshd. Password
// authentication stays off unless the config opts in.
func (p *Phase2) applySSHPolicy(ctx context.Context) error {
	dir := p.SSHConfigDir
	if dir == "" {
		dir = "/etc/ssh/sshd_config.d"
	}
	policy := "no"
	if p.Config.SSH.AllowPassword {
		policy = "yes"
	}
	content := "PasswordAuthentication " + policy + "\n"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		emit(p.Notify, StatusFail, "ssh", err.Error())
		return fmt.Errorf("create sshd config directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, sshDropIn), []byte(content), 0o644); err != nil {
		emit(p.Notify, StatusFail, "ssh", err.Error())
		return fmt.Errorf("write sshd drop-in: %w", err)
	}
	if err := p.Services.Restart(ctx, "ssh"); err != nil {
		emit(p.Notify, StatusWarn, "ssh", fmt.Sprintf("restart ssh: %v", err))
		return nil
	}
	emit(p.Notify, StatusOK, "ssh", "password authentication "+policy)
	return nil
}

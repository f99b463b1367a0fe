package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"meshboot/config"
	"meshboot/internal/account"
	"meshboot/internal/bootstate"
	"meshboot/internal/check"
	"meshboot/internal/netconf"
)

// DefaultExecStart is what the phase2 continuation unit invokes at the
// next boot.
const DefaultExecStart = "/usr/local/bin/meshboot phase2"

// Phase1 prepares the host before the reboot: packages, Docker networks
// while the engine is briefly up, service accounts, the mesh credential,
// and the continuation unit. It ends by checkpointing "reboot required";
// the actual reboot belongs to the orchestrator.
type Phase1 struct {
	Config   config.Config
	Networks []netconf.NetworkSpec

	Packages PackageManager
	Services ServiceManager
	Network  NetworkManager
	Rules    RuleReconciler
	Accounts AccountProvisioner
	State    bootstate.Store
	Journal  *bootstate.Journal

	ExecStart string
	Notify    Notify
}

// Run executes phase1. Re-running after the checkpoint is a no-op, so the
// orchestrator can blindly re-trigger an interrupted provisioning.
func (p *Phase1) Run(ctx context.Context) (err error) {
	check.Assert(p.Packages != nil, "Phase1: Packages must not be nil")
	check.Assert(p.Services != nil, "Phase1: Services must not be nil")
	check.Assert(p.Network != nil, "Phase1: Network must not be nil")

	if err := p.Config.CheckPlaceholders(); err != nil {
		emit(p.Notify, StatusFail, "config", err.Error())
		return err
	}

	cur, err := p.State.Phase()
	if err != nil {
		return err
	}
	if cur >= bootstate.Phase2Pending {
		emit(p.Notify, StatusOK, "phase1", "already checkpointed, nothing to do")
		return nil
	}

	if p.Journal != nil {
		id, jerr := p.Journal.Begin("phase1")
		if jerr != nil {
			emit(p.Notify, StatusWarn, "journal", jerr.Error())
		} else {
			defer func() {
				outcome, detail := "ok", "reboot required"
				if err != nil {
					outcome, detail = "failed", err.Error()
				}
				if ferr := p.Journal.Finish(id, outcome, detail); ferr != nil {
					emit(p.Notify, StatusWarn, "journal", ferr.Error())
				}
			}()
		}
	}

	if err := p.installPackages(ctx); err != nil {
		return err
	}
	if err := p.enableServices(ctx); err != nil {
		return err
	}
	if err := p.prepareNetworks(ctx); err != nil {
		return err
	}
	if err := p.provisionAccounts(ctx); err != nil {
		return err
	}
	if err := p.writeCredential(); err != nil {
		return err
	}
	if err := p.installContinuation(ctx); err != nil {
		return err
	}

	if err := p.State.MarkRebootRequired(); err != nil {
		emit(p.Notify, StatusFail, "checkpoint", err.Error())
		return err
	}
	emit(p.Notify, StatusOK, "phase1", "checkpointed, host must reboot")
	return nil
}

func (p *Phase1) installPackages(ctx context.Context) error {
	if err := p.Packages.Install(ctx, p.Config.Packages.Base...); err != nil {
		emit(p.Notify, StatusFail, "packages", err.Error())
		return fmt.Errorf("install base packages: %w", err)
	}
	emit(p.Notify, StatusOK, "packages", "base packages installed")
	return nil
}

// enableServices arms docker and tailscaled for the next boot without
// starting tailscaled now: the mesh join must happen post-reboot, under
// the final kernel and firewall.
func (p *Phase1) enableServices(ctx context.Context) error {
	for _, unit := range []string{"docker", "tailscaled"} {
		if err := p.Services.Enable(ctx, unit); err != nil {
			emit(p.Notify, StatusFail, "services", err.Error())
			return fmt.Errorf("enable %s: %w", unit, err)
		}
	}
	emit(p.Notify, StatusOK, "services", "docker and tailscaled enabled")
	return nil
}

// prepareNetworks starts the engine just long enough to create the
// networks and program the chains, then stops it again so the reboot
// comes up from a clean engine state.
func (p *Phase1) prepareNetworks(ctx context.Context) error {
	if err := p.Services.Start(ctx, "docker"); err != nil {
		emit(p.Notify, StatusFail, "docker", err.Error())
		return fmt.Errorf("start docker: %w", err)
	}
	if err := p.Network.WaitReady(ctx); err != nil {
		emit(p.Notify, StatusFail, "docker", err.Error())
		return err
	}
	for _, spec := range p.Networks {
		if _, err := p.Network.EnsureNetwork(ctx, spec); err != nil {
			emit(p.Notify, StatusFail, "networks", err.Error())
			return fmt.Errorf("ensure network %s: %w", spec.Name, err)
		}
	}
	if p.Rules != nil {
		p.Rules.Reconcile(p.Networks)
	}
	if err := netconf.WriteDescription(p.State.NetworksPath(), p.Networks); err != nil {
		emit(p.Notify, StatusWarn, "networks", err.Error())
	}
	if err := p.Services.Stop(ctx, "docker"); err != nil {
		emit(p.Notify, StatusWarn, "docker", err.Error())
	}
	emit(p.Notify, StatusOK, "networks", fmt.Sprintf("%d networks created", len(p.Networks)))
	return nil
}

func (p *Phase1) provisionAccounts(ctx context.Context) error {
	if p.Accounts == nil || len(p.Config.Accounts) == 0 {
		return nil
	}
	for _, a := range p.Config.Accounts {
		spec := account.Spec{
			Username:       a.Username,
			Groups:         a.Groups,
			AuthorizedKeys: a.AuthorizedKeys,
		}
		if err := p.Accounts.Ensure(ctx, spec); err != nil {
			emit(p.Notify, StatusFail, "accounts", err.Error())
			return err
		}
	}
	emit(p.Notify, StatusOK, "accounts", fmt.Sprintf("%d accounts provisioned", len(p.Config.Accounts)))
	return nil
}

// writeCredential persists the mesh auth key across the reboot. Mode 0600:
// the key authorizes joining the mesh.
func (p *Phase1) writeCredential() error {
	path := p.Config.CredentialFile
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		emit(p.Notify, StatusFail, "credential", err.Error())
		return fmt.Errorf("create credential directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(p.Config.AuthKey+"\n"), 0o600); err != nil {
		emit(p.Notify, StatusFail, "credential", err.Error())
		return fmt.Errorf("write credential: %w", err)
	}
	emit(p.Notify, StatusOK, "credential", path)
	return nil
}

func (p *Phase1) installContinuation(ctx context.Context) error {
	execStart := p.ExecStart
	if execStart == "" {
		execStart = DefaultExecStart
	}
	if err := p.Services.InstallPhase2Unit(ctx, execStart); err != nil {
		emit(p.Notify, StatusFail, "continuation", err.Error())
		return err
	}
	emit(p.Notify, StatusOK, "continuation", "phase2 unit installed and enabled")
	return nil
}

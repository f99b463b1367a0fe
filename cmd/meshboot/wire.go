package main

import (
	"log/slog"
	"os"
	"strings"

	"meshboot/cmd/meshboot/ui"
	"meshboot/config"
	"meshboot/internal/bootstate"
	"meshboot/internal/bootstrap"
	"meshboot/internal/execx"
	"meshboot/internal/logging"
	"meshboot/internal/netconf"
	"meshboot/internal/pkgmgr"
	"meshboot/internal/systemd"
)

// host bundles the real implementations every subcommand wires from.
type host struct {
	cfg    config.Config
	store  bootstate.Store
	runner execx.Runner
	apt    *pkgmgr.Apt
	sysd   *systemd.Systemd
}

func loadHost(configPath string, debug bool) (*host, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if !debug {
		if err := logging.Configure(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	runner := execx.Host{}
	return &host{
		cfg:    cfg,
		store:  bootstate.Store{Dir: cfg.StateDir},
		runner: runner,
		apt:    &pkgmgr.Apt{Run: runner},
		sysd:   &systemd.Systemd{Run: runner},
	}, nil
}

func (h *host) dockerNetworks() (*netconf.Networks, error) {
	cli, err := netconf.NewDockerClient()
	if err != nil {
		return nil, err
	}
	return netconf.NewNetworks(cli), nil
}

// openJournal returns nil when the journal cannot be opened; the run
// proceeds without audit records rather than failing the bootstrap.
func (h *host) openJournal() *bootstate.Journal {
	j, err := bootstate.OpenJournal(h.store.JournalPath())
	if err != nil {
		slog.Warn("run journal unavailable", "err", err)
		return nil
	}
	return j
}

// authKey prefers the loaded configuration and falls back to the
// credential persisted by phase1; post-reboot runs have no environment.
func (h *host) authKey() string {
	if h.cfg.AuthKey != "" {
		return h.cfg.AuthKey
	}
	data, err := os.ReadFile(h.cfg.CredentialFile)
	if err != nil {
		slog.Warn("mesh credential unavailable", "path", h.cfg.CredentialFile, "err", err)
		return ""
	}
	return strings.TrimSpace(string(data))
}

func report(e bootstrap.Event) {
	ui.Step(string(e.Status), e.Step, e.Detail)
}

// Package systemd drives the init system: generic unit control plus the
// phase2 continuation unit that spans the bootstrap reboot.
package systemd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"meshboot/internal/execx"
)

// Phase2Unit is the continuation unit name. Its presence and enablement,
// together with the status marker, checkpoint the bootstrap across reboot.
const Phase2Unit = "meshboot-phase2.service"

const defaultUnitDir = "/etc/systemd/system"

// Systemd wraps systemctl. UnitDir is overridable for tests.
type Systemd struct {
	Run     execx.Runner
	UnitDir string
}

func (s Systemd) unitDir() string {
	if s.UnitDir != "" {
		return s.UnitDir
	}
	return defaultUnitDir
}

func (s Systemd) ctl(ctx context.Context, args ...string) error {
	_, err := s.Run.Run(ctx, "systemctl", args...)
	return err
}

func (s Systemd) Enable(ctx context.Context, unit string) error {
	return s.ctl(ctx, "enable", unit)
}

func (s Systemd) Disable(ctx context.Context, unit string) error {
	return s.ctl(ctx, "disable", unit)
}

func (s Systemd) Start(ctx context.Context, unit string) error {
	return s.ctl(ctx, "start", unit)
}

func (s Systemd) Stop(ctx context.Context, unit string) error {
	return s.ctl(ctx, "stop", unit)
}

func (s Systemd) Restart(ctx context.Context, unit string) error {
	return s.ctl(ctx, "restart", unit)
}

func (s Systemd) DaemonReload(ctx context.Context) error {
	return s.ctl(ctx, "daemon-reload")
}

// IsEnabled reports whether the unit is enabled. Errors read as false:
// systemctl exits non-zero for disabled and unknown units alike.
func (s Systemd) IsEnabled(ctx context.Context, unit string) bool {
	return s.ctl(ctx, "is-enabled", "--quiet", unit) == nil
}

// InstallPhase2Unit writes and enables the one-shot continuation unit.
// The unit depends only on network-online readiness — nothing it needs is
// up yet at next boot; the phase2 executor brings everything else up
// itself. RemainAfterExit keeps the unit "active" after the single run so
// the init system never re-fires it within one boot.
func (s Systemd) InstallPhase2Unit(ctx context.Context, execStart string) error {
	unit := fmt.Sprintf(`[Unit]
Description=meshboot phase2 (post-reboot network and mesh activation)
Wants=network-online.target
After=network-online.target

[Service]
Type=oneshot
RemainAfterExit=yes
ExecStart=%s

[Install]
WantedBy=multi-user.target
`, execStart)

	path := filepath.Join(s.unitDir(), Phase2Unit)
	if err := os.MkdirAll(s.unitDir(), 0o755); err != nil {
		return fmt.Errorf("create unit directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(unit), 0o644); err != nil {
		return fmt.Errorf("write continuation unit: %w", err)
	}
	if err := s.DaemonReload(ctx); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	if err := s.Enable(ctx, Phase2Unit); err != nil {
		return fmt.Errorf("enable continuation unit: %w", err)
	}
	return nil
}

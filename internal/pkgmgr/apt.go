// Package pkgmgr installs OS packages through apt with bounded retry.
// Freshly imaged hosts frequently race cloud-init or unattended-upgrades
// for the dpkg lock, so install attempts clear stale locks between tries
// and degrade to a per-package best-effort pass rather than aborting the
// bootstrap over a single optional package.
package pkgmgr

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"meshboot/internal/execx"
)

const (
	installAttempts = 3
	attemptDelay    = 5 * time.Second
)

var lockFiles = []string{
	"/var/lib/apt/lists/lock",
	"/var/cache/apt/archives/lock",
	"/var/lib/dpkg/lock",
	"/var/lib/dpkg/lock-frontend",
}

var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

type Apt struct {
	Run execx.Runner
}

// Install installs all packages in one transaction, retrying up to three
// times with lock clearing in between. If every attempt fails it degrades
// to a per-package loop that continues past individual failures; only the
// count of casualties is reported, never an error — missing optional
// packages surface later at their point of use.
func (a Apt) Install(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}

	attempt := 0
	op := func() error {
		if attempt > 0 {
			a.clearLocks(ctx)
		}
		attempt++
		err := a.install(ctx, pkgs...)
		if err != nil {
			slog.Warn("package install attempt failed", "attempt", attempt, "err", err)
		}
		return err
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(attemptDelay), installAttempts-1),
		ctx,
	)
	if err := backoff.Retry(op, b); err == nil {
		return nil
	}

	slog.Warn("degrading to per-package install", "packages", len(pkgs))
	failed := 0
	for _, p := range pkgs {
		if err := a.install(ctx, p); err != nil {
			failed++
			slog.Warn("package skipped", "package", p, "err", err)
		}
	}
	if failed > 0 {
		slog.Warn("bootstrap continuing without some packages", "failed", failed, "total", len(pkgs))
	}
	return nil
}

// Remove uninstalls a package. Absence is a no-op for apt, so errors here
// mean something genuinely broke; the caller decides whether that is fatal.
func (a Apt) Remove(ctx context.Context, pkg string) error {
	_, err := a.Run.RunEnv(ctx, aptEnv, "apt-get", "remove", "-y", pkg)
	return err
}

func (a Apt) install(ctx context.Context, pkgs ...string) error {
	args := append([]string{"install", "-y", "--no-install-recommends"}, pkgs...)
	_, err := a.Run.RunEnv(ctx, aptEnv, "apt-get", args...)
	return err
}

func (a Apt) clearLocks(ctx context.Context) {
	args := append([]string{"-f"}, lockFiles...)
	if _, err := a.Run.Run(ctx, "rm", args...); err != nil {
		slog.Warn("clear apt locks", "err", err)
	}
}

// Package bootstrap contains the two phase executors. Phase1 prepares the
// host and checkpoints "reboot required"; Phase2 runs once at next boot
// from the continuation unit and activates networks, mesh, and firewall.
// Both are sequential, and every step is an idempotent reconciliation so
// a killed run is safe to re-trigger.
package bootstrap

import "log/slog"

// Status tags a progress event.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Event is one tagged progress line. The CLI renders these as the
// inspectable trace of the unattended run.
type Event struct {
	Step   string
	Status Status
	Detail string
}

// Notify receives progress events. May be nil.
type Notify func(Event)

func emit(n Notify, status Status, step, detail string) {
	if n != nil {
		n(Event{Step: step, Status: status, Detail: detail})
	}
	switch status {
	case StatusWarn:
		slog.Warn(step, "detail", detail)
	case StatusFail:
		slog.Error(step, "detail", detail)
	default:
		slog.Info(step, "detail", detail)
	}
}

// Package bootstate persists bootstrap progress across the reboot boundary.
// The status marker plus the enabled continuation unit substitute for
// in-memory state: phase2 reads them at boot and resumes idempotently.
package bootstate

import "errors"

// Phase is the bootstrap lifecycle position. Transitions are monotonic;
// re-running a completed phase is refused rather than replayed.
type Phase uint8

const (
	Phase1Pending Phase = iota
	Phase1Complete
	Phase2Pending
	Phase2Complete
)

func (p Phase) String() string {
	switch p {
	case Phase1Pending:
		return "phase1-pending"
	case Phase1Complete:
		return "phase1-complete"
	case Phase2Pending:
		return "phase2-pending"
	case Phase2Complete:
		return "phase2-complete"
	default:
		return "unknown"
	}
}

// ErrPhaseRegressed means a caller tried to move the bootstrap backwards,
// e.g. running phase1 on a host that already finished phase2.
var ErrPhaseRegressed = errors.New("bootstrap phase would regress")

package bootstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel values in the status marker. The orchestrator greps for
// StatusRebootRequired to decide when to reboot the host, so the literal
// is a contract.
const (
	StatusRebootRequired = "reboot-required"
	StatusComplete       = "bootstrap-complete"
)

// AddressPending is written to the address artifact when mesh address
// resolution exhausted its poll budget. It is a valid terminal value.
const AddressPending = "pending"

// Store reads and writes the marker files under the state directory.
type Store struct {
	Dir string
}

func (s Store) statusPath() string  { return filepath.Join(s.Dir, "status") }
func (s Store) addressPath() string { return filepath.Join(s.Dir, "mesh-address") }

// NetworksPath is where the network-description artifact lives.
func (s Store) NetworksPath() string { return filepath.Join(s.Dir, "networks.yaml") }

// JournalPath is where the run journal lives.
func (s Store) JournalPath() string { return filepath.Join(s.Dir, "journal.db") }

// Phase derives the current phase from the status marker. A missing
// marker means the host has never run phase1.
func (s Store) Phase() (Phase, error) {
	data, err := os.ReadFile(s.statusPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Phase1Pending, nil
		}
		return 0, fmt.Errorf("read status marker: %w", err)
	}
	switch strings.TrimSpace(string(data)) {
	case StatusRebootRequired:
		return Phase2Pending, nil
	case StatusComplete:
		return Phase2Complete, nil
	default:
		return 0, fmt.Errorf("unrecognized status marker %q", strings.TrimSpace(string(data)))
	}
}

// MarkRebootRequired checkpoints the end of phase1.
func (s Store) MarkRebootRequired() error {
	return s.advance(Phase2Pending, StatusRebootRequired)
}

// MarkComplete checkpoints the end of phase2.
func (s Store) MarkComplete() error {
	return s.advance(Phase2Complete, StatusComplete)
}

func (s Store) advance(next Phase, sentinel string) error {
	cur, err := s.Phase()
	if err != nil {
		return err
	}
	if cur > next {
		return fmt.Errorf("%w: %s -> %s", ErrPhaseRegressed, cur, next)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(s.statusPath(), []byte(sentinel+"\n"), 0o644); err != nil {
		return fmt.Errorf("write status marker: %w", err)
	}
	return nil
}

// WriteAddress records the resolved mesh address, or AddressPending.
func (s Store) WriteAddress(addr string) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(s.addressPath(), []byte(addr+"\n"), 0o644); err != nil {
		return fmt.Errorf("write address artifact: %w", err)
	}
	return nil
}

// ReadAddress returns the recorded mesh address. Missing file reads as
// AddressPending: phase2 has not resolved anything yet.
func (s Store) ReadAddress() (string, error) {
	data, err := os.ReadFile(s.addressPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return AddressPending, nil
		}
		return "", fmt.Errorf("read address artifact: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

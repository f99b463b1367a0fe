package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"meshboot/config"
	"meshboot/internal/bootstate"
	"meshboot/internal/netconf"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Hostname = "node1"
	cfg.AuthKey = "tskey-test"
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.CredentialFile = filepath.Join(dir, "authkey")
	return cfg
}

func newPhase1(cfg config.Config, host *fakeHost) *Phase1 {
	return &Phase1{
		Config:   cfg,
		Networks: netconf.DefaultNetworks(),
		Packages: host,
		Services: host,
		Network:  host,
		Rules:    host,
		Accounts: host,
		State:    bootstate.Store{Dir: cfg.StateDir},
	}
}

func TestPhase1_CheckpointsRebootRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Accounts = []config.Account{{Username: "deploy", Groups: []string{"docker"}}}
	host := &fakeHost{}
	p1 := newPhase1(cfg, host)

	if err := p1.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	store := bootstate.Store{Dir: cfg.StateDir}
	phase, err := store.Phase()
	if err != nil {
		t.Fatalf("Phase: %v", err)
	}
	if phase != bootstate.Phase2Pending {
		t.Errorf("phase = %s, want phase2 pending", phase)
	}

	data, err := os.ReadFile(filepath.Join(cfg.StateDir, "status"))
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if got := string(data); got != bootstate.StatusRebootRequired+"\n" {
		t.Errorf("status marker = %q, want %q", got, bootstate.StatusRebootRequired)
	}

	if n := host.count("install-unit"); n != 1 {
		t.Errorf("continuation unit installed %d times", n)
	}
	if n := host.count("account deploy"); n != 1 {
		t.Errorf("account provisioned %d times", n)
	}
}

func TestPhase1_CredentialFileModeAndContent(t *testing.T) {
	cfg := testConfig(t)
	host := &fakeHost{}

	if err := newPhase1(cfg, host).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	info, err := os.Stat(cfg.CredentialFile)
	if err != nil {
		t.Fatalf("stat credential: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("credential mode = %v, want 0600", info.Mode().Perm())
	}
	data, _ := os.ReadFile(cfg.CredentialFile)
	if string(data) != "tskey-test\n" {
		t.Errorf("credential content = %q", data)
	}
}

func TestPhase1_EngineUpOnlyForNetworkCreation(t *testing.T) {
	cfg := testConfig(t)
	host := &fakeHost{}

	if err := newPhase1(cfg, host).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var startIdx, stopIdx, netIdx = -1, -1, -1
	for i, c := range host.calls {
		switch c {
		case "start docker":
			startIdx = i
		case "stop docker":
			stopIdx = i
		case "ensure-network proxy":
			netIdx = i
		}
	}
	if startIdx == -1 || stopIdx == -1 || netIdx == -1 {
		t.Fatalf("calls = %v", host.calls)
	}
	if !(startIdx < netIdx && netIdx < stopIdx) {
		t.Errorf("network creation not bracketed by docker start/stop: %v", host.calls)
	}
	if n := host.count("ensure-network"); n != 3 {
		t.Errorf("ensured %d networks, want 3", n)
	}
}

func TestPhase1_RerunAfterCheckpointIsNoop(t *testing.T) {
	cfg := testConfig(t)
	host := &fakeHost{}
	p1 := newPhase1(cfg, host)

	if err := p1.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first := len(host.calls)

	if err := p1.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(host.calls) != first {
		t.Errorf("re-run touched the host: %v", host.calls[first:])
	}
}

func TestPhase1_PlaceholderConfigAbortsBeforeAnyAction(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuthKey = "__TAILSCALE_AUTH_KEY__"
	host := &fakeHost{}

	err := newPhase1(cfg, host).Run(context.Background())
	if !errors.Is(err, config.ErrPlaceholder) {
		t.Fatalf("err = %v, want ErrPlaceholder", err)
	}
	if len(host.calls) != 0 {
		t.Errorf("host touched despite placeholder: %v", host.calls)
	}
	if _, serr := os.Stat(filepath.Join(cfg.StateDir, "status")); !errors.Is(serr, os.ErrNotExist) {
		t.Error("status marker written despite placeholder")
	}
}

func TestPhase1_PackageFailureLeavesNoCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	host := &fakeHost{installErr: errors.New("dpkg database corrupt")}

	if err := newPhase1(cfg, host).Run(context.Background()); err == nil {
		t.Fatal("Run succeeded despite package failure")
	}
	store := bootstate.Store{Dir: cfg.StateDir}
	phase, err := store.Phase()
	if err != nil {
		t.Fatalf("Phase: %v", err)
	}
	if phase != bootstate.Phase1Pending {
		t.Errorf("phase = %s, want phase1 pending", phase)
	}
}

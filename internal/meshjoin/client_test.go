package meshjoin

import (
	"context"
	"net/netip"
	"strings"
	"testing"
)

type fakeRunner struct {
	calls  [][]string
	output []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.output, f.err
}

func (f *fakeRunner) RunEnv(ctx context.Context, _ []string, name string, args ...string) ([]byte, error) {
	return f.Run(ctx, name, args...)
}

func TestCLI_JoinArgs(t *testing.T) {
	run := &fakeRunner{}
	cli := CLI{Run: run}

	err := cli.Join(context.Background(), JoinOptions{
		AuthKey:      "tskey-abc",
		Hostname:     "node1",
		AcceptRoutes: true,
		AdvertiseRoutes: []netip.Prefix{
			netip.MustParsePrefix("172.28.1.0/24"),
			netip.MustParsePrefix("172.28.2.0/24"),
		},
	})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	line := strings.Join(run.calls[0], " ")
	for _, want := range []string{
		"tailscale up",
		"--hostname node1",
		"--accept-routes",
		"--advertise-routes=172.28.1.0/24,172.28.2.0/24",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("command %q missing %q", line, want)
		}
	}
}

func TestCLI_StatusParsesRunningState(t *testing.T) {
	run := &fakeRunner{output: []byte(`{
		"BackendState": "Running",
		"Self": {"TailscaleIPs": ["fd7a:115c:a1e0::1", "100.64.0.7"]}
	}`)}
	cli := CLI{Run: run}

	st, err := cli.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.LoggedIn {
		t.Error("LoggedIn = false for Running backend")
	}
	if st.Addr != netip.MustParseAddr("100.64.0.7") {
		t.Errorf("addr = %s, want the IPv4", st.Addr)
	}
}

func TestCLI_StatusNeedsLogin(t *testing.T) {
	run := &fakeRunner{output: []byte(`{"BackendState": "NeedsLogin", "Self": {"TailscaleIPs": []}}`)}
	cli := CLI{Run: run}

	st, err := cli.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.LoggedIn || st.Addr.IsValid() {
		t.Errorf("status = %+v, want logged out with no address", st)
	}
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StateDir != "/var/lib/meshboot" {
		t.Errorf("StateDir = %q", cfg.StateDir)
	}
	if cfg.MeshInterface != "tailscale0" {
		t.Errorf("MeshInterface = %q", cfg.MeshInterface)
	}
	if cfg.DNS.TTL != 120 {
		t.Errorf("DNS.TTL = %d", cfg.DNS.TTL)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
hostname: node1
auth_key: tskey-file
accounts:
  - username: deploy
    groups: [docker]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MESHBOOT_AUTH_KEY", "tskey-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hostname != "node1" {
		t.Errorf("Hostname = %q", cfg.Hostname)
	}
	if cfg.AuthKey != "tskey-env" {
		t.Errorf("AuthKey = %q, want env override", cfg.AuthKey)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0].Username != "deploy" {
		t.Errorf("Accounts = %+v", cfg.Accounts)
	}
}

func TestCheckPlaceholders(t *testing.T) {
	cases := []struct {
		name  string
		value string
		bad   bool
	}{
		{"real key", "tskey-auth-abc123", false},
		{"dunder", "__TAILSCALE_AUTH_KEY__", true},
		{"template", "{{ .AuthKey }}", true},
		{"change me", "CHANGE_ME", true},
		{"changeme lower", "changeme", true},
		{"replace me", "REPLACE_ME", true},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.Hostname = "node1"
		cfg.AuthKey = tc.value

		err := cfg.CheckPlaceholders()
		if tc.bad {
			if !errors.Is(err, ErrPlaceholder) {
				t.Errorf("%s: err = %v, want ErrPlaceholder", tc.name, err)
			}
		} else if err != nil {
			t.Errorf("%s: unexpected err %v", tc.name, err)
		}
	}
}

func TestCheckPlaceholders_CoversDNSAndAccounts(t *testing.T) {
	cfg := Default()
	cfg.Hostname = "node1"
	cfg.AuthKey = "tskey-real"
	cfg.DNS = DNS{Email: "ops@example.com", Token: "__DNS_TOKEN__", FQDN: "ats.example.com"}
	if !errors.Is(cfg.CheckPlaceholders(), ErrPlaceholder) {
		t.Error("placeholder DNS token accepted")
	}

	cfg.DNS.Token = "real-token"
	cfg.Accounts = []Account{{Username: "deploy", AuthorizedKeys: []string{"__SSH_PUBLIC_KEY__"}}}
	if !errors.Is(cfg.CheckPlaceholders(), ErrPlaceholder) {
		t.Error("placeholder authorized key accepted")
	}
}

func TestCheckPlaceholders_ChecksEveryAuthorizedKey(t *testing.T) {
	cfg := Default()
	cfg.Hostname = "node1"
	cfg.AuthKey = "tskey-real"
	cfg.Accounts = []Account{{
		Username: "deploy",
		AuthorizedKeys: []string{
			"__SSH_PUBLIC_KEY__",
			"ssh-ed25519 AAAA deploy@ci",
		},
	}}
	// A real key after the placeholder must not shadow it.
	if !errors.Is(cfg.CheckPlaceholders(), ErrPlaceholder) {
		t.Error("placeholder in first of several authorized keys accepted")
	}

	cfg.Accounts[0].AuthorizedKeys = []string{
		"ssh-ed25519 AAAA deploy@ci",
		"{{ .DeployKey }}",
	}
	if !errors.Is(cfg.CheckPlaceholders(), ErrPlaceholder) {
		t.Error("placeholder in last authorized key accepted")
	}

	cfg.Accounts[0].AuthorizedKeys = []string{
		"ssh-ed25519 AAAA deploy@ci",
		"ssh-ed25519 BBBB deploy@laptop",
	}
	if err := cfg.CheckPlaceholders(); err != nil {
		t.Errorf("real keys rejected: %v", err)
	}
}

func TestDNS_Enabled(t *testing.T) {
	d := DNS{}
	if d.Enabled() {
		t.Error("empty DNS enabled")
	}
	d = DNS{Email: "a@b.c", Token: "t", FQDN: "ats.example.com"}
	if !d.Enabled() {
		t.Error("complete DNS disabled")
	}
}

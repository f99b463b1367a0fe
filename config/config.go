// Package config holds the bootstrap configuration. Values arrive two
// ways, mirroring how the CI orchestrator substitutes them before
// invoking the binary over SSH: a yaml file (default
// /etc/meshboot/config.yaml) and MESHBOOT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the orchestrator writes the rendered config.
const DefaultPath = "/etc/meshboot/config.yaml"

// ErrPlaceholder means a caller-substituted value still contains a
// template placeholder. Running with an unexpanded template would join
// the wrong mesh or create garbage DNS, so this aborts immediately.
var ErrPlaceholder = errors.New("unexpanded placeholder in configuration")

// Account declares one OS service account to provision in phase1.
type Account struct {
	Username       string   `yaml:"username"`
	Groups         []string `yaml:"groups"`
	AuthorizedKeys []string `yaml:"authorized_keys"`
}

// DNS configures the optional public A record. Empty credentials disable
// DNS reconciliation entirely.
type DNS struct {
	Email string `yaml:"email" env:"MESHBOOT_DNS_EMAIL"`
	Token string `yaml:"token" env:"MESHBOOT_DNS_TOKEN"`
	FQDN  string `yaml:"fqdn" env:"MESHBOOT_DNS_FQDN"`
	TTL   int    `yaml:"ttl" env:"MESHBOOT_DNS_TTL"`
}

// Enabled reports whether DNS reconciliation should run at all.
func (d DNS) Enabled() bool {
	return d.Email != "" && d.Token != "" && d.FQDN != ""
}

// SSH holds the post-bootstrap sshd policy. Password authentication is
// off by default: key-based access is provisioned in phase1, and the
// legacy re-enable behavior is preserved only behind this flag.
type SSH struct {
	AllowPassword bool `yaml:"allow_password" env:"MESHBOOT_SSH_ALLOW_PASSWORD"`
}

// Packages lists what the phases install and remove.
type Packages struct {
	Base     []string `yaml:"base"`
	Phase2   []string `yaml:"phase2"`
	Conflict []string `yaml:"conflict"`
}

// Config is the full bootstrap configuration.
type Config struct {
	Hostname       string    `yaml:"hostname" env:"MESHBOOT_HOSTNAME"`
	AuthKey        string    `yaml:"auth_key" env:"MESHBOOT_AUTH_KEY"`
	StateDir       string    `yaml:"state_dir" env:"MESHBOOT_STATE_DIR"`
	CredentialFile string    `yaml:"credential_file" env:"MESHBOOT_CREDENTIAL_FILE"`
	MeshInterface  string    `yaml:"mesh_interface" env:"MESHBOOT_MESH_INTERFACE"`
	LogLevel       string    `yaml:"log_level" env:"MESHBOOT_LOG_LEVEL"`
	Packages       Packages  `yaml:"packages"`
	Accounts       []Account `yaml:"accounts"`
	DNS            DNS       `yaml:"dns"`
	SSH            SSH       `yaml:"ssh"`
}

// Default returns the built-in configuration. The package lists encode
// the deployment's base dependencies and the known ufw/iptables-persistent
// conflict resolved in phase2.
func Default() Config {
	return Config{
		StateDir:       "/var/lib/meshboot",
		CredentialFile: "/etc/meshboot/authkey",
		MeshInterface:  "tailscale0",
		LogLevel:       "info",
		Packages: Packages{
			Base:     []string{"docker.io", "curl", "ca-certificates", "tailscale"},
			Phase2:   []string{"ufw", "jq"},
			Conflict: []string{"iptables-persistent"},
		},
		DNS: DNS{TTL: 120},
	}
}

// Load reads the config file and applies environment overrides. A
// missing file is not an error — everything can come from the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// placeholderForms are the template literals the orchestrator uses.
// Seeing any of them means the template was deployed unexpanded.
var placeholderForms = []string{"CHANGE_ME", "CHANGEME", "REPLACE_ME", "TODO"}

func isPlaceholder(v string) bool {
	if strings.HasPrefix(v, "__") && strings.HasSuffix(v, "__") && len(v) > 4 {
		return true
	}
	if strings.Contains(v, "{{") || strings.Contains(v, "}}") {
		return true
	}
	for _, form := range placeholderForms {
		if strings.EqualFold(v, form) {
			return true
		}
	}
	return false
}

// CheckPlaceholders validates every caller-substituted value. It is the
// guard both executors run before touching any host state. Every value is
// checked individually; repeated fields (authorized keys) must not shadow
// one another.
func (c Config) CheckPlaceholders() error {
	type field struct {
		name  string
		value string
	}
	fields := []field{
		{"hostname", c.Hostname},
		{"auth_key", c.AuthKey},
		{"dns.email", c.DNS.Email},
		{"dns.token", c.DNS.Token},
		{"dns.fqdn", c.DNS.FQDN},
	}
	for _, a := range c.Accounts {
		fields = append(fields, field{"accounts." + a.Username, a.Username})
		for i, k := range a.AuthorizedKeys {
			fields = append(fields, field{fmt.Sprintf("accounts.%s.key[%d]", a.Username, i), k})
		}
	}
	for _, f := range fields {
		if f.value != "" && isPlaceholder(f.value) {
			return fmt.Errorf("%w: %s = %q", ErrPlaceholder, f.name, f.value)
		}
	}
	return nil
}

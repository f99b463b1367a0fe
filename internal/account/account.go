// Package account provisions OS service accounts idempotently: an
// account that already exists is left alone, group membership and
// authorized keys are converged on every run.
package account

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"meshboot/internal/execx"
)

// Spec declares one service account.
type Spec struct {
	Username       string
	Groups         []string
	AuthorizedKeys []string
}

// Provisioner creates accounts and installs SSH keys. Lookup and HomeRoot
// are overridable for tests.
type Provisioner struct {
	Run      execx.Runner
	Lookup   func(username string) (*user.User, error)
	HomeRoot string
}

func (p Provisioner) lookup(username string) (*user.User, error) {
	if p.Lookup != nil {
		return p.Lookup(username)
	}
	return user.Lookup(username)
}

func (p Provisioner) homeRoot() string {
	if p.HomeRoot != "" {
		return p.HomeRoot
	}
	return "/home"
}

// Ensure converges the account to the spec. "Already exists" is not an
// error; the account is never recreated or its password touched.
func (p Provisioner) Ensure(ctx context.Context, spec Spec) error {
	if spec.Username == "" {
		return fmt.Errorf("account: empty username")
	}

	home := filepath.Join(p.homeRoot(), spec.Username)
	existing, err := p.lookup(spec.Username)
	switch {
	case err == nil:
		if existing.HomeDir != "" {
			home = existing.HomeDir
		}
	case isUnknownUser(err):
		if _, err := p.Run.Run(ctx, "useradd", "--create-home", "--shell", "/bin/bash", spec.Username); err != nil {
			return fmt.Errorf("create account %q: %w", spec.Username, err)
		}
	default:
		return fmt.Errorf("look up account %q: %w", spec.Username, err)
	}

	for _, g := range spec.Groups {
		if _, err := p.Run.Run(ctx, "usermod", "-aG", g, spec.Username); err != nil {
			return fmt.Errorf("add %q to group %q: %w", spec.Username, g, err)
		}
	}

	if len(spec.AuthorizedKeys) > 0 {
		if err := p.installKeys(ctx, spec, home); err != nil {
			return err
		}
	}
	return nil
}

func (p Provisioner) installKeys(ctx context.Context, spec Spec, home string) error {
	sshDir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", sshDir, err)
	}
	keys := strings.Join(spec.AuthorizedKeys, "\n") + "\n"
	path := filepath.Join(sshDir, "authorized_keys")
	if err := os.WriteFile(path, []byte(keys), 0o600); err != nil {
		return fmt.Errorf("write authorized_keys: %w", err)
	}
	owner := spec.Username + ":" + spec.Username
	if _, err := p.Run.Run(ctx, "chown", "-R", owner, sshDir); err != nil {
		return fmt.Errorf("chown %s: %w", sshDir, err)
	}
	return nil
}

func isUnknownUser(err error) bool {
	var unknown user.UnknownUserError
	return errors.As(err, &unknown)
}

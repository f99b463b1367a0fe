// Package meshjoin joins the host to the private mesh overlay through the
// mesh vendor's CLI, with a staged fallback state machine: a full join
// advertising the Docker subnets, then a basic join without routes, then
// a recorded failure that the bootstrap survives.
package meshjoin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"

	"meshboot/internal/execx"
)

// JoinOptions is one registration attempt against the mesh control plane.
type JoinOptions struct {
	AuthKey         string
	Hostname        string
	AcceptRoutes    bool
	AdvertiseRoutes []netip.Prefix
}

// Status is the daemon's view of the connection.
type Status struct {
	LoggedIn bool
	Addr     netip.Addr
}

// Client talks to the local mesh daemon.
type Client interface {
	Join(ctx context.Context, opts JoinOptions) error
	AdvertiseRoutes(ctx context.Context, routes []netip.Prefix) error
	Status(ctx context.Context) (Status, error)
}

// CLI drives the tailscale binary over the daemon's control socket.
type CLI struct {
	Run execx.Runner
	Bin string
}

func (c CLI) bin() string {
	if c.Bin != "" {
		return c.Bin
	}
	return "tailscale"
}

func (c CLI) Join(ctx context.Context, opts JoinOptions) error {
	args := []string{"up", "--reset", "--hostname", opts.Hostname, "--auth-key", opts.AuthKey}
	if opts.AcceptRoutes {
		args = append(args, "--accept-routes")
	}
	if len(opts.AdvertiseRoutes) > 0 {
		args = append(args, "--advertise-routes="+joinPrefixes(opts.AdvertiseRoutes))
	}
	if _, err := c.Run.Run(ctx, c.bin(), args...); err != nil {
		return fmt.Errorf("mesh join: %w", err)
	}
	return nil
}

func (c CLI) AdvertiseRoutes(ctx context.Context, routes []netip.Prefix) error {
	if _, err := c.Run.Run(ctx, c.bin(), "set", "--advertise-routes="+joinPrefixes(routes)); err != nil {
		return fmt.Errorf("advertise routes: %w", err)
	}
	return nil
}

// Status parses `status --json`. Only the backend state and the assigned
// IPv4 matter to the bootstrap.
func (c CLI) Status(ctx context.Context) (Status, error) {
	out, err := c.Run.Run(ctx, c.bin(), "status", "--json")
	if err != nil {
		return Status{}, fmt.Errorf("mesh status: %w", err)
	}

	var parsed struct {
		BackendState string `json:"BackendState"`
		Self         struct {
			TailscaleIPs []string `json:"TailscaleIPs"`
		} `json:"Self"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Status{}, fmt.Errorf("parse mesh status: %w", err)
	}

	st := Status{LoggedIn: parsed.BackendState == "Running"}
	for _, raw := range parsed.Self.TailscaleIPs {
		addr, err := netip.ParseAddr(raw)
		if err == nil && addr.Is4() {
			st.Addr = addr
			break
		}
	}
	return st, nil
}

// PingSocket reports whether the daemon's control socket answers yet.
func (c CLI) PingSocket(ctx context.Context) error {
	if _, err := c.Run.Run(ctx, c.bin(), "status", "--json"); err != nil {
		return fmt.Errorf("mesh daemon socket: %w", err)
	}
	return nil
}

func joinPrefixes(prefixes []netip.Prefix) string {
	parts := make([]string, len(prefixes))
	for i, p := range prefixes {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

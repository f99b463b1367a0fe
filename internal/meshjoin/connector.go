package meshjoin

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/cenkalti/backoff/v4"

	"meshboot/internal/check"
)

// State is the connector's position in the join state machine.
type State uint8

const (
	StateDisconnected State = iota
	StateConnectingFull
	StateConnectingBasic
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnectingFull:
		return "connecting-full"
	case StateConnectingBasic:
		return "connecting-basic"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of a Connect run. Addr is the zero value
// when address resolution exhausted its poll budget; that is a valid
// terminal outcome, not an error.
type Result struct {
	State      State
	WithRoutes bool
	Addr       netip.Addr
}

// Pending reports whether the mesh accepted the node but never assigned
// an address within the poll budget.
func (r Result) Pending() bool {
	return r.State == StateConnected && !r.Addr.IsValid()
}

const (
	defaultJoinTimeout  = 300 * time.Second
	defaultSettleDelay  = 5 * time.Second
	defaultPollAttempts = 30
	defaultPollInterval = 2 * time.Second
)

// Connector drives the staged join. Registration against the mesh control
// plane is asynchronous and environment-dependent, so a single strategy is
// not reliable for unattended provisioning: the full join (route
// advertisement included) falls back to a basic join, and a basic join is
// upgraded afterwards with one best-effort route-advertisement call.
type Connector struct {
	Client   Client
	AuthKey  string
	Hostname string
	Routes   []netip.Prefix

	JoinTimeout  time.Duration
	SettleDelay  time.Duration
	PollAttempts int
	PollInterval time.Duration
}

// strategy is one row of the fallback table, tried in order.
type strategy struct {
	state  State
	routes bool
}

var strategies = []strategy{
	{StateConnectingFull, true},
	{StateConnectingBasic, false},
}

// Connect walks the strategy table until a join sticks, optionally
// upgrades a routeless join, then polls for the assigned address.
// A fully failed join returns StateFailed; the caller treats that as
// degraded, not fatal.
func (c *Connector) Connect(ctx context.Context) Result {
	check.Assert(c.Client != nil, "Connector: Client must not be nil")

	joined := false
	withRoutes := false
	for _, st := range strategies {
		slog.Info("mesh join", "state", st.state)
		if err := c.attempt(ctx, st.routes); err != nil {
			slog.Warn("mesh join attempt failed", "state", st.state, "err", err)
			continue
		}
		joined = true
		withRoutes = st.routes
		break
	}
	if !joined {
		slog.Warn("mesh join exhausted all strategies")
		return Result{State: StateFailed}
	}

	if !withRoutes && len(c.Routes) > 0 {
		// One best-effort upgrade after the control plane settles. Its
		// failure leaves the connection basic but connected.
		c.wait(ctx, c.settleDelay())
		if err := c.Client.AdvertiseRoutes(ctx, c.Routes); err != nil {
			slog.Warn("secondary route advertisement failed", "err", err)
		} else {
			slog.Info("routes advertised after basic join")
		}
	}

	res := Result{State: StateConnected, WithRoutes: withRoutes}
	res.Addr = c.pollAddress(ctx)
	if !res.Addr.IsValid() {
		slog.Warn("mesh address not assigned within poll budget; recording pending")
	}
	return res
}

func (c *Connector) attempt(ctx context.Context, routes bool) error {
	opts := JoinOptions{
		AuthKey:      c.AuthKey,
		Hostname:     c.Hostname,
		AcceptRoutes: true,
	}
	if routes {
		opts.AdvertiseRoutes = c.Routes
	}
	joinCtx, cancel := context.WithTimeout(ctx, c.joinTimeout())
	defer cancel()
	return c.Client.Join(joinCtx, opts)
}

// pollAddress polls the daemon for a logged-in status carrying an IPv4.
// Bounded: exhaustion returns the zero Addr rather than blocking the
// bootstrap on a control plane that may never answer.
func (c *Connector) pollAddress(ctx context.Context) netip.Addr {
	var addr netip.Addr
	op := func() error {
		st, err := c.Client.Status(ctx)
		if err != nil {
			return err
		}
		if !st.LoggedIn || !st.Addr.IsValid() {
			return errNotAssigned
		}
		addr = st.Addr
		return nil
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.pollInterval()), uint64(c.pollAttempts()-1)),
		ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		return netip.Addr{}
	}
	return addr
}

func (c *Connector) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (c *Connector) joinTimeout() time.Duration {
	if c.JoinTimeout > 0 {
		return c.JoinTimeout
	}
	return defaultJoinTimeout
}

func (c *Connector) settleDelay() time.Duration {
	if c.SettleDelay > 0 {
		return c.SettleDelay
	}
	return defaultSettleDelay
}

func (c *Connector) pollAttempts() int {
	if c.PollAttempts > 0 {
		return c.PollAttempts
	}
	return defaultPollAttempts
}

func (c *Connector) pollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return defaultPollInterval
}

type notAssignedError struct{}

func (notAssignedError) Error() string { return "mesh address not assigned yet" }

var errNotAssigned = notAssignedError{}

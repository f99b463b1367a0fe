package netconf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
)

// deadEngine never answers the ping.
type deadEngine struct {
	fakeEngine
	pings int
}

func (d *deadEngine) Ping(context.Context) (types.Ping, error) {
	d.pings++
	return types.Ping{}, errors.New("connection refused")
}

// slowEngine answers after a few failures.
type slowEngine struct {
	fakeEngine
	pings   int
	readyAt int
}

func (s *slowEngine) Ping(context.Context) (types.Ping, error) {
	s.pings++
	if s.pings < s.readyAt {
		return types.Ping{}, errors.New("connection refused")
	}
	return types.Ping{}, nil
}

func TestWaitReady_ExhaustionPingsExactlyAttemptsTimes(t *testing.T) {
	eng := &deadEngine{}
	n := NewNetworks(eng)

	err := n.waitReady(context.Background(), 3, time.Millisecond)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if eng.pings != 3 {
		t.Errorf("pings = %d, want 3", eng.pings)
	}
}

func TestWaitReady_SucceedsMidBudget(t *testing.T) {
	eng := &slowEngine{readyAt: 2}
	n := NewNetworks(eng)

	if err := n.waitReady(context.Background(), 3, time.Millisecond); err != nil {
		t.Fatalf("waitReady: %v", err)
	}
	if eng.pings != 2 {
		t.Errorf("pings = %d, want 2", eng.pings)
	}
}

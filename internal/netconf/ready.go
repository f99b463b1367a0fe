package netconf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	readyAttempts = 30
	readyInterval = 2 * time.Second
)

// ErrNotReady means the Docker daemon did not answer within the poll
// budget. This is the reconciler's only hard failure.
var ErrNotReady = errors.New("docker daemon not ready")

// WaitReady polls the engine ping endpoint for a bounded number of
// attempts at a fixed interval.
func (n *Networks) WaitReady(ctx context.Context) error {
	return n.waitReady(ctx, readyAttempts, readyInterval)
}

func (n *Networks) waitReady(ctx context.Context, attempts int, interval time.Duration) error {
	op := func() error {
		_, err := n.cli.Ping(ctx)
		return err
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return nil
}

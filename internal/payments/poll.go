package payments

import (
	"context"
	"time"

	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

// Poller re-checks an unresolved payment a fixed number of times.
type Poller struct {
	Attempts int
	Delay    time.Duration
}

// Run calls check until it reports a resolved payment. It waits Delay between
// calls and gives up with UPSTREAM_ERROR once Attempts are used.
func (p Poller) Run(ctx context.Context, check func(context.Context) (*Result, error)) (*Result, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if i > 0 && p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		res, err := check(ctx)
		if err != nil {
			return nil, err
		}
		if res.Resolved {
			return res, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeUpstream, "payment status is still pending at the gateway").
		WithDetails(map[string]any{"attempts": attempts})
}

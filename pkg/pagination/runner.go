package pagination

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// errNotStarted marks units skipped because the context was done before they began.
var errNotStarted = errors.New("unit not started")

// Runner supplies the scheduling primitives shared by the Engine and the
// fan-out helpers: suspending for a duration and running many units.
type Runner interface {
	// Sleep suspends the caller for d.
	Sleep(ctx context.Context, d time.Duration) error

	// Run calls fn for every index in [0, n) with at most width calls in
	// flight and returns once all of them finished. The returned slice holds
	// the error of each index. Units not started because ctx was done hold
	// errNotStarted.
	Run(ctx context.Context, n, width int, fn func(ctx context.Context, i int) error) []error
}

// Sequential runs everything on the calling goroutine and blocks while waiting.
// The context is consulted between units and pages but a wait in progress is
// never interrupted.
type Sequential struct{}

// Sleep blocks for d.
func (Sequential) Sleep(ctx context.Context, d time.Duration) error {
	if d > 0 {
		time.Sleep(d)
	}
	return nil
}

// Run calls fn for each index in order. width is ignored.
func (Sequential) Run(ctx context.Context, n, width int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			errs[i] = errNotStarted
			continue
		}
		errs[i] = fn(ctx, i)
	}
	return errs
}

// Concurrent runs units on goroutines bounded by width and waits with
// cancellation support.
type Concurrent struct{}

// Sleep waits for d or until ctx is done.
func (Concurrent) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run calls fn for each index on at most width goroutines.
func (Concurrent) Run(ctx context.Context, n, width int, fn func(ctx context.Context, i int) error) []error {
	if width < 1 {
		width = 1
	}

	errs := make([]error, n)

	// No errgroup context: a failing unit must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(width)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			for j := i; j < n; j++ {
				errs[j] = errNotStarted
			}
			break
		}
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = errNotStarted
				return nil
			}
			errs[i] = fn(ctx, i)
			return nil
		})
	}

	_ = g.Wait()
	return errs
}

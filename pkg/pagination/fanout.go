package pagination

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/bigcommerce-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fanOutUnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bigcommerce_fanout_units_total",
	Help: "Total number of fan-out units by result",
}, []string{"result"})

// Width returns the concurrency for a batch hydrated under state: max when
// the budget is unlimited, otherwise 1.
func Width(state ratelimit.State, max int) int {
	if state.Unlimited && max > 1 {
		return max
	}
	return 1
}

// Failure describes one failed fan-out unit.
type Failure struct {
	Index int
	ID    string
	Err   error
}

// AggregateError reports every failed unit of a fan-out batch.
type AggregateError struct {
	Failures []Failure
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of batch failed:", len(e.Failures))
	for i, f := range e.Failures {
		if i > 0 {
			b.WriteString(";")
		}
		fmt.Fprintf(&b, " %s: %v", f.ID, f.Err)
	}
	return b.String()
}

// Unwrap returns the individual causes for errors.Is/As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// IDs returns the identifiers of the failed parents.
func (e *AggregateError) IDs() []string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.ID
	}
	return ids
}

// Failed reports whether the parent at index failed.
func (e *AggregateError) Failed(index int) bool {
	for _, f := range e.Failures {
		if f.Index == index {
			return true
		}
	}
	return false
}

// ForEach runs work once per parent with at most width units in flight and
// waits for all of them. A failure does not stop sibling units. Failures are
// returned as an *AggregateError; if ctx is done before every unit started
// the returned error matches ErrCancelled.
func ForEach[P any](ctx context.Context, runner Runner, parents []P, width int, id func(P) string, work func(ctx context.Context, parent P) error) error {
	if len(parents) == 0 {
		return nil
	}

	errs := runner.Run(ctx, len(parents), width, func(ctx context.Context, i int) error {
		return work(ctx, parents[i])
	})

	var agg AggregateError
	skipped := false
	for i, err := range errs {
		switch {
		case err == nil:
			fanOutUnitsTotal.WithLabelValues("ok").Inc()
		case errors.Is(err, errNotStarted):
			skipped = true
			fanOutUnitsTotal.WithLabelValues("skipped").Inc()
		default:
			fanOutUnitsTotal.WithLabelValues("failed").Inc()
			agg.Failures = append(agg.Failures, Failure{Index: i, ID: id(parents[i]), Err: err})
		}
	}

	var result error
	if len(agg.Failures) > 0 {
		result = &agg
	}
	if skipped {
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		return errors.Join(cancelled(cause), result)
	}
	return result
}

// Map runs work once per parent like ForEach and returns one result per
// parent, in parent order. Results of successful units are returned even when
// the error is non-nil, so callers can tell which parents were hydrated.
func Map[P, R any](ctx context.Context, runner Runner, parents []P, width int, id func(P) string, work func(ctx context.Context, parent P) (R, error)) ([]R, error) {
	results := make([]R, len(parents))

	positions := make([]int, len(parents))
	for i := range positions {
		positions[i] = i
	}

	err := ForEach(ctx, runner, positions, width,
		func(i int) string { return id(parents[i]) },
		func(ctx context.Context, i int) error {
			r, err := work(ctx, parents[i])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})

	return results, err
}

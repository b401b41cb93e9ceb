package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/bigcommerce-client/pkg/client"
	"github.com/Sternrassler/bigcommerce-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for paging.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigcommerce_pages_fetched_total",
		Help: "Total number of pages fetched by collection",
	}, []string{"collection"})

	throttleDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bigcommerce_throttle_delay_seconds",
		Help:    "Delay observed between calls to honour the rate limit",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 5, 30},
	})
)

// ErrCancelled is returned when the context is done before the work completed.
var ErrCancelled = errors.New("pagination cancelled")

// cancelled wraps a context error so both ErrCancelled and the cause match errors.Is.
func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

// IsCancelled reports whether err stems from context cancellation or deadline.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, client.ErrContextCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// PageRequest identifies one page. Index starts at 1.
type PageRequest struct {
	Index int
	Size  int
}

// PageResult is one decoded page.
type PageResult[T any] struct {
	// Items holds the page's records in server order.
	Items []T

	// NoContent is set when the server answered with no collection at all.
	// The walk stops and the page contributes nothing.
	NoContent bool

	// RateLimit is the budget reported with this page.
	RateLimit ratelimit.State
}

// PageFunc performs exactly one remote call for the requested page.
type PageFunc[T any] func(ctx context.Context, page PageRequest) (PageResult[T], error)

// VisitFunc receives each non-empty page before the next one is requested.
type VisitFunc[T any] func(ctx context.Context, items []T, state ratelimit.State) error

// Engine drives page walks. It is safe for concurrent use.
type Engine struct {
	runner   Runner
	retry    *client.RetryPolicy
	calc     ratelimit.Calculator
	pageSize int
	logger   zerolog.Logger
}

// NewEngine creates an engine that calls through retry, waits with runner and
// requests pages of pageSize records.
func NewEngine(runner Runner, retry *client.RetryPolicy, pageSize int, logger zerolog.Logger) *Engine {
	if pageSize <= 0 {
		pageSize = 1
	}
	return &Engine{
		runner:   runner,
		retry:    retry,
		calc:     ratelimit.DefaultCalculator(),
		pageSize: pageSize,
		logger:   logger,
	}
}

// WithCalculator returns a copy of the engine using calc for delays.
func (e *Engine) WithCalculator(calc ratelimit.Calculator) *Engine {
	cp := *e
	cp.calc = calc
	return &cp
}

// Runner returns the engine's runner.
func (e *Engine) Runner() Runner {
	return e.runner
}

// PageSize returns the number of records requested per page.
func (e *Engine) PageSize() int {
	return e.pageSize
}

// Pause suspends for the delay the rate limit state demands.
func (e *Engine) Pause(ctx context.Context, state ratelimit.State) error {
	d := e.calc.Delay(state)
	if d <= 0 {
		return nil
	}

	throttleDelaySeconds.Observe(d.Seconds())
	e.logger.Debug().
		Int("remaining_calls", state.RemainingCalls).
		Dur("delay", d).
		Msg("Throttling before next call")

	if err := e.runner.Sleep(ctx, d); err != nil {
		return cancelled(err)
	}
	return nil
}

// Walk requests pages 1, 2, ... of one collection and hands every page to
// visit. It stops after a short page or on a no-content answer. Every call
// goes through the engine's retry policy and is followed by Pause.
func Walk[T any](ctx context.Context, e *Engine, collection string, fetch PageFunc[T], visit VisitFunc[T]) error {
	start := time.Now()
	pages, records := 0, 0

	for index := 1; ; index++ {
		if err := ctx.Err(); err != nil {
			e.logger.Debug().
				Str("collection", collection).
				Int("page", index).
				Msg("Walk stopping (context cancelled)")
			return cancelled(err)
		}

		req := PageRequest{Index: index, Size: e.pageSize}
		page, err := client.Retry(ctx, e.retry, func(ctx context.Context) (PageResult[T], error) {
			return fetch(ctx, req)
		})
		if err != nil {
			return fmt.Errorf("fetch %s page %d: %w", collection, index, err)
		}
		pagesFetchedTotal.WithLabelValues(collection).Inc()

		if err := e.Pause(ctx, page.RateLimit); err != nil {
			return err
		}

		if page.NoContent {
			break
		}

		pages++
		records += len(page.Items)

		if visit != nil {
			if err := visit(ctx, page.Items, page.RateLimit); err != nil {
				return err
			}
		}

		if len(page.Items) < e.pageSize {
			break
		}
	}

	e.logger.Debug().
		Str("collection", collection).
		Int("pages", pages).
		Int("records", records).
		Dur("duration", time.Since(start)).
		Msg("Walk complete")

	return nil
}

// FetchAll walks a collection and returns every record in page order.
func FetchAll[T any](ctx context.Context, e *Engine, collection string, fetch PageFunc[T]) ([]T, error) {
	var all []T
	err := Walk(ctx, e, collection, fetch, func(_ context.Context, items []T, _ ratelimit.State) error {
		all = append(all, items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// Package bigcommerce retrieves and updates BigCommerce orders and products.
// It composes the paginated engine and the fan-out helpers to assemble
// complete object graphs while honouring the store's call budget.
package bigcommerce

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Sternrassler/bigcommerce-client/pkg/client"
	"github.com/Sternrassler/bigcommerce-client/pkg/pagination"
	"github.com/Sternrassler/bigcommerce-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mode selects how waits and fan-out batches are executed.
type Mode string

const (
	// ModeSequential runs every call on the calling goroutine with blocking waits.
	ModeSequential Mode = "sequential"

	// ModeConcurrent runs fan-out batches on goroutines and waits with cancellation.
	ModeConcurrent Mode = "concurrent"
)

// MaxPageSize is the largest page the v2 API serves.
const MaxPageSize = 250

// Caller performs one remote call. *client.Client implements it.
type Caller interface {
	Call(ctx context.Context, method, endpoint string, body any) (*client.Response, error)
}

// Config holds the orchestration configuration.
type Config struct {
	// PageSize is the number of records requested per page (1..250).
	PageSize int

	// MaxConcurrency is the fan-out width used when a page reports an unlimited budget.
	MaxConcurrency int

	// WriteConcurrency is the fixed fan-out width of update operations.
	WriteConcurrency int

	// Mode selects sequential or concurrent execution.
	Mode Mode

	// Retry policies for reads and writes.
	ReadRetry  client.RetryConfig
	WriteRetry client.RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:         MaxPageSize,
		MaxConcurrency:   10,
		WriteConcurrency: 20,
		Mode:             ModeConcurrent,
		ReadRetry:        client.ReadRetryConfig(),
		WriteRetry:       client.WriteRetryConfig(),
	}
}

// Option customizes a Service.
type Option func(*options)

type options struct {
	runner     pagination.Runner
	calc       *ratelimit.Calculator
	retrySleep client.SleepFunc
	logger     *zerolog.Logger
}

// WithRunner overrides the runner chosen by Config.Mode.
func WithRunner(r pagination.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithCalculator overrides the delay calculator.
func WithCalculator(c ratelimit.Calculator) Option {
	return func(o *options) { o.calc = &c }
}

// WithRetrySleep overrides how retry policies wait between attempts.
func WithRetrySleep(fn client.SleepFunc) Option {
	return func(o *options) { o.retrySleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// Service retrieves orders and products and pushes inventory updates.
type Service struct {
	caller      Caller
	engine      *pagination.Engine
	runner      pagination.Runner
	readPolicy  *client.RetryPolicy
	writePolicy *client.RetryPolicy
	config      Config
	logger      zerolog.Logger
}

// NewService creates a Service calling the API through caller.
func NewService(caller Caller, cfg Config, opts ...Option) (*Service, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is required")
	}

	if cfg.PageSize < 1 || cfg.PageSize > MaxPageSize {
		return nil, fmt.Errorf("page_size must be between 1 and %d (got %d)", MaxPageSize, cfg.PageSize)
	}

	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max_concurrency must be >= 1 (got %d)", cfg.MaxConcurrency)
	}

	if cfg.WriteConcurrency < 1 {
		return nil, fmt.Errorf("write_concurrency must be >= 1 (got %d)", cfg.WriteConcurrency)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := log.With().Str("component", "bigcommerce-service").Logger()
	if o.logger != nil {
		logger = *o.logger
	}

	runner := o.runner
	if runner == nil {
		switch cfg.Mode {
		case ModeSequential:
			runner = pagination.Sequential{}
		case ModeConcurrent, "":
			runner = pagination.Concurrent{}
		default:
			return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
		}
	}

	readPolicy := client.NewRetryPolicy("read", cfg.ReadRetry, logger)
	writePolicy := client.NewRetryPolicy("write", cfg.WriteRetry, logger)
	if o.retrySleep != nil {
		readPolicy = readPolicy.WithSleep(o.retrySleep)
		writePolicy = writePolicy.WithSleep(o.retrySleep)
	}

	engine := pagination.NewEngine(runner, readPolicy, cfg.PageSize, logger)
	if o.calc != nil {
		engine = engine.WithCalculator(*o.calc)
	}

	return &Service{
		caller:      caller,
		engine:      engine,
		runner:      runner,
		readPolicy:  readPolicy,
		writePolicy: writePolicy,
		config:      cfg,
		logger:      logger,
	}, nil
}

// begin tags ctx with a fresh marker for one top-level operation.
func (s *Service) begin(ctx context.Context, operation string) (context.Context, zerolog.Logger) {
	marker := uuid.NewString()
	logger := s.logger.With().Str("operation", operation).Str("marker", marker).Logger()
	return client.WithMarker(ctx, marker), logger
}

// pageFunc returns a PageFunc reading one page of endpoint.
func pageFunc[T any](s *Service, endpoint string) pagination.PageFunc[T] {
	return func(ctx context.Context, page pagination.PageRequest) (pagination.PageResult[T], error) {
		resp, err := s.caller.Call(ctx, http.MethodGet, withParams(endpoint, pageParams(page)), nil)
		if err != nil {
			return pagination.PageResult[T]{}, err
		}
		if resp.NoContent() {
			return pagination.PageResult[T]{NoContent: true, RateLimit: resp.RateLimit}, nil
		}

		items, err := client.Decode[[]T](resp.Payload)
		if err != nil {
			return pagination.PageResult[T]{}, err
		}
		return pagination.PageResult[T]{Items: items, RateLimit: resp.RateLimit}, nil
	}
}

// getOne reads a single non-paginated resource under the read policy and
// pauses for the reported budget. The boolean is false on a no-content answer.
func getOne[T any](ctx context.Context, s *Service, endpoint string) (T, bool, error) {
	var zero T

	resp, err := client.Retry(ctx, s.readPolicy, func(ctx context.Context) (*client.Response, error) {
		return s.caller.Call(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return zero, false, err
	}

	if err := s.engine.Pause(ctx, resp.RateLimit); err != nil {
		return zero, false, err
	}

	if resp.NoContent() {
		return zero, false, nil
	}

	v, err := client.Decode[T](resp.Payload)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// put writes body to endpoint under the write policy and pauses for the reported budget.
func (s *Service) put(ctx context.Context, endpoint string, body any) error {
	resp, err := client.Retry(ctx, s.writePolicy, func(ctx context.Context) (*client.Response, error) {
		return s.caller.Call(ctx, http.MethodPut, endpoint, body)
	})
	if err != nil {
		return err
	}
	return s.engine.Pause(ctx, resp.RateLimit)
}

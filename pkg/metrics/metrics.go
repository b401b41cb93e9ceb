// Package metrics exposes the Prometheus metrics of the BigCommerce client.
// Metrics are defined with promauto in the packages that update them
// (client, ratelimit, pagination). This package serves them over HTTP and
// documents the catalogue.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the registerer all client metrics are added to.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Path is where Serve exposes the metrics.
const Path = "/metrics"

// Handler returns the HTTP handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Serve exposes Handler on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("path", Path).Msg("Metrics listener started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - bigcommerce_requests_total{method, status} (Counter): calls by method and HTTP status
//   - bigcommerce_request_duration_seconds{method} (Histogram): call duration
//   - bigcommerce_errors_total{class} (Counter): failed calls by error class
//
// Retry Metrics (pkg/client):
//   - bigcommerce_retries_total{policy, error_class} (Counter): retry attempts
//   - bigcommerce_retry_backoff_seconds{policy} (Histogram): backoff waits
//   - bigcommerce_retry_exhausted_total{policy, error_class} (Counter): calls that used every attempt
//
// Rate Limit Metrics (pkg/ratelimit):
//   - bigcommerce_rate_limit_remaining_calls (Gauge): calls left in the current window
//   - bigcommerce_rate_limit_unlimited_responses_total (Counter): responses without a budget header
//   - bigcommerce_rate_limit_exhausted_total (Counter): responses reporting no calls left
//
// Paging Metrics (pkg/pagination):
//   - bigcommerce_pages_fetched_total{collection} (Counter): pages read per collection
//   - bigcommerce_throttle_delay_seconds (Histogram): waits imposed by the call budget
//   - bigcommerce_fanout_units_total{result} (Counter): fan-out units by ok, failed, skipped
//
// Example Prometheus Queries:
//
//   # Budget running low
//   bigcommerce_rate_limit_remaining_calls < 10
//
//   # Share of time spent throttled
//   rate(bigcommerce_throttle_delay_seconds_sum[5m])
//
//   # Failed hydration units
//   rate(bigcommerce_fanout_units_total{result="failed"}[5m])
//
//   # P95 call latency
//   histogram_quantile(0.95, rate(bigcommerce_request_duration_seconds_bucket[5m]))

// Package client provides the BigCommerce HTTP transport with rate limit
// header parsing, client-side pacing, error classification and retry policies.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/bigcommerce-client/pkg/logging"
	"github.com/Sternrassler/bigcommerce-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for BigCommerce client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigcommerce_requests_total",
		Help: "Total BigCommerce requests by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bigcommerce_request_duration_seconds",
		Help:    "BigCommerce request duration in seconds by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigcommerce_errors_total",
		Help: "Total BigCommerce errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the BigCommerce API root; the store hash is appended.
const DefaultBaseURL = "https://api.bigcommerce.com/stores"

// Client performs single BigCommerce calls. It never retries on its own;
// callers wrap Call with a RetryPolicy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// StoreHash identifies the store (REQUIRED).
	StoreHash string

	// ClientID and AccessToken authenticate the API account (REQUIRED).
	ClientID    string
	AccessToken string

	// BaseURL overrides the API root (tests, proxies).
	// Default: https://api.bigcommerce.com/stores/{StoreHash}/v2
	BaseURL string

	// User-Agent header
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// Client-side pacing on top of the server budget. 0 disables it.
	RequestsPerSecond float64
	Burst             int

	// Redis publishes the last observed rate limit state (optional).
	Redis *redis.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(storeHash, clientID, accessToken string) Config {
	return Config{
		StoreHash:         storeHash,
		ClientID:          clientID,
		AccessToken:       accessToken,
		UserAgent:         "bigcommerce-client/0.1.0",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 0,
		Burst:             1,
	}
}

// New creates a new BigCommerce client.
func New(cfg Config) (*Client, error) {
	if cfg.StoreHash == "" {
		return nil, fmt.Errorf("store hash is required")
	}

	if cfg.ClientID == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("client id and access token are required")
	}

	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %v)", cfg.RequestsPerSecond)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL + "/" + cfg.StoreHash + "/v2"
	}

	logger := logging.ForStore(logging.NewLogger("bigcommerce-client"), cfg.StoreHash)

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: limiter,
		tracker: ratelimit.NewTracker(cfg.Redis, cfg.StoreHash, logger),
		config:  cfg,
		logger:  logger,
	}, nil
}

// Response is the outcome of a single successful call.
type Response struct {
	StatusCode int
	Payload    []byte
	RateLimit  ratelimit.State
}

// NoContent reports whether the server signalled an absent collection.
func (r *Response) NoContent() bool {
	if r.StatusCode == http.StatusNoContent {
		return true
	}
	trimmed := bytes.TrimSpace(r.Payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Call performs one HTTP request against endpoint. endpoint is either a path
// relative to the store API root or an absolute resource URL returned by the
// API. body, if non-nil, is JSON encoded.
//
// Every returned Response and APIError carries the rate limit state reported
// by the server for this call.
func (c *Client) Call(ctx context.Context, method, endpoint string, body any) (*Response, error) {
	url := c.resolve(endpoint)
	logger := c.logger.With().Str("method", method).Str("endpoint", endpoint).Str("marker", MarkerFrom(ctx)).Logger()

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for request slot: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Auth-Client", c.config.ClientID)
	req.Header.Set("X-Auth-Token", c.config.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	logger.Debug().Msg("Executing BigCommerce request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Method:     method,
			Endpoint:   endpoint,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Method:     method,
			Endpoint:   endpoint,
			Message:    "read response body",
			Err:        err,
		}
	}

	state := c.rateLimitState(resp.Header, logger)
	if err := c.tracker.Record(ctx, state); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish rate limit state")
	}

	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("BigCommerce request error")

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Method:     method,
			Endpoint:   endpoint,
			Message:    errorMessage(resp.Status, payload),
		}
		if errClass == ErrorClassRateLimit {
			apiErr.RetryAfter = state.TimeUntilReset()
		}
		return nil, apiErr
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Payload:    payload,
		RateLimit:  state,
	}, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, endpoint string) (*Response, error) {
	return c.Call(ctx, http.MethodGet, endpoint, nil)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Call(ctx, http.MethodPut, endpoint, body)
}

// Tracker returns the rate limit tracker fed by this client.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// rateLimitState parses the budget headers. Unparseable headers are treated
// as a nearly exhausted budget so the caller slows down instead of speeding up.
func (c *Client) rateLimitState(header http.Header, logger zerolog.Logger) ratelimit.State {
	now := time.Now()
	state, err := ratelimit.ParseHeaders(header, now)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to parse rate limit headers")
		return ratelimit.State{RemainingCalls: 1, ObservedAt: now}
	}
	return state
}

// classifyStatus categorizes an HTTP error status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

func errorMessage(status string, payload []byte) string {
	msg := strings.TrimSpace(string(payload))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	if msg == "" {
		return status
	}
	return status + ": " + msg
}

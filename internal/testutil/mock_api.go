// Package testutil provides testing utilities for the BigCommerce client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock BigCommerce v2 API for testing.
// Handlers are matched on the request path; the query is ignored.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	pathCounts        map[string]int
	inFlight          int
	maxInFlight       int
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.pathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		mock.inFlight++
		if mock.inFlight > mock.maxInFlight {
			mock.maxInFlight = mock.inFlight
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.inFlight--
			mock.mu.Unlock()
		}()

		if exists {
			handler(w, r)
			return
		}

		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`[{"status":404,"message":"The requested resource was not found."}]`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.pathCounts = make(map[string]int)
	m.maxInFlight = 0
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON serves v as a 200 JSON response on path.
func (m *MockAPI) SetJSON(path string, v any, headers map[string]string) {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	m.SetResponse(path, MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    withJSON(headers),
	})
}

// SetPages serves items as a paginated collection on path, honouring the
// page and limit query parameters. Pages past the end answer 204 No Content.
func (m *MockAPI) SetPages(path string, items []any, headers map[string]string, delay time.Duration) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if page < 1 {
			page = 1
		}
		if limit < 1 {
			limit = 50
		}

		for key, value := range headers {
			w.Header().Set(key, value)
		}

		start := (page - 1) * limit
		if start >= len(items) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		end := start + limit
		if end > len(items) {
			end = len(items)
		}

		body, err := json.Marshal(items[start:end])
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// CountFor returns the number of requests made to path.
func (m *MockAPI) CountFor(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// MaxInFlight returns the highest number of concurrent requests observed.
func (m *MockAPI) MaxInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInFlight
}

// BudgetHeaders returns rate limit headers reporting left calls and a reset in resetMs.
func BudgetHeaders(left, resetMs int) map[string]string {
	return map[string]string{
		"X-Rate-Limit-Requests-Left":  strconv.Itoa(left),
		"X-Rate-Limit-Requests-Quota": "150",
		"X-Rate-Limit-Time-Window-Ms": "30000",
		"X-Rate-Limit-Time-Reset-Ms":  strconv.Itoa(resetMs),
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `[{"status":500,"message":"Internal server error"}]`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response with an immediate reset.
func NewRateLimitResponse() MockResponse {
	headers := BudgetHeaders(0, 0)
	headers["Content-Type"] = "application/json"
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `[{"status":429,"message":"Too many requests"}]`,
		Headers:    headers,
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `[{"status":401,"message":"Unauthorized"}]`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// FailFirst wraps handler so that the first n requests receive fail.
func FailFirst(n int, fail MockResponse, handler func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	var mu sync.Mutex
	calls := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		current := calls
		mu.Unlock()

		if current <= n {
			for key, value := range fail.Headers {
				w.Header().Set(key, value)
			}
			w.WriteHeader(fail.StatusCode)
			w.Write([]byte(fail.Body))
			return
		}
		handler(w, r)
	}
}

// Handler returns the handler registered for path, or nil.
func (m *MockAPI) Handler(path string) func(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handlers[path]
}

func withJSON(headers map[string]string) map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		out[k] = v
	}
	return out
}

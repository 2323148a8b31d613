// Package testutil provides testing utilities for the gateway.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock origin endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is a configurable stand-in for the Rick and Morty API.
// Responses are keyed by path plus canonical query string ("/character?page=2").
// A path-only registration matches any query.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests map[string]int
	total    int
	lastURL  *url.URL
}

// NewMockOrigin starts a mock origin server.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := requestTarget(r.URL)

		mock.mu.Lock()
		mock.total++
		mock.requests[target]++
		mock.lastURL = r.URL
		handler, ok := mock.handlers[target]
		if !ok {
			handler, ok = mock.handlers[r.URL.Path]
		}
		mock.mu.Unlock()

		if ok {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"There is nothing here"}`))
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// Reset clears all request counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = 0
	m.requests = make(map[string]int)
	m.lastURL = nil
}

// SetHandler sets a custom handler for a path or path+query target.
func (m *MockOrigin) SetHandler(target string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[canonicalTarget(target)] = handler
}

// SetResponse configures a fixed response for a target.
func (m *MockOrigin) SetResponse(target string, resp MockResponse) {
	m.SetHandler(target, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON configures a 200 response with the given JSON body.
func (m *MockOrigin) SetJSON(target, body string) {
	m.SetResponse(target, MockResponse{StatusCode: http.StatusOK, Body: body})
}

// SetNotFound configures a 404 response like the real API's.
func (m *MockOrigin) SetNotFound(target string) {
	m.SetResponse(target, NewNotFoundResponse())
}

// RequestCount returns the number of requests served for a target.
func (m *MockOrigin) RequestCount(target string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[canonicalTarget(target)]
}

// TotalRequests returns the number of requests made to the server.
func (m *MockOrigin) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// LastURL returns the URL of the most recent request.
func (m *MockOrigin) LastURL() *url.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastURL
}

func requestTarget(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}
	return u.Path + "?" + u.Query().Encode()
}

func canonicalTarget(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return requestTarget(u)
}

// NewNotFoundResponse creates the origin's 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error":"Character not found"}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"Internal server error"}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"Too many requests"}`,
		Headers:    map[string]string{"Retry-After": "60"},
	}
}

// NewSlowResponse creates a 200 response delivered after delay.
func NewSlowResponse(body string, delay time.Duration) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body, Delay: delay}
}

// CharacterJSON renders a minimal character document.
func CharacterJSON(id int, name string) string {
	return fmt.Sprintf(`{"id":%d,"name":%q,"status":"Alive","species":"Human"}`, id, name)
}

// PageJSON renders a paginated collection document with the given total pages
// and result documents.
func PageJSON(pages int, results ...string) string {
	body := fmt.Sprintf(`{"info":{"count":%d,"pages":%d,"next":null,"prev":null},"results":[`, len(results), pages)
	for i, r := range results {
		if i > 0 {
			body += ","
		}
		body += r
	}
	return body + "]}"
}

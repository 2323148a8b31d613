package origin

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/rickmorty-gateway/internal/testutil"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()

	client, err := New(Config{BaseURL: baseURL, Timeout: timeout, UserAgent: "test/1.0"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{name: "valid config", config: DefaultConfig(), expectError: false},
		{name: "empty base url", config: Config{}, expectError: true},
		{name: "relative base url", config: Config{BaseURL: "/api"}, expectError: true},
		{name: "zero timeout uses default", config: Config{BaseURL: "http://localhost:1"}, expectError: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config, zerolog.Nop())
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.httpClient.Timeout <= 0 {
				t.Errorf("Timeout = %v, want > 0", client.httpClient.Timeout)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != "https://rickandmortyapi.com/api" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
}

func TestClient_Fetch_Found(t *testing.T) {
	mock := testutil.NewMockOrigin()
	defer mock.Close()
	mock.SetJSON("/character/1", testutil.CharacterJSON(1, "Rick Sanchez"))

	client := newTestClient(t, mock.URL(), time.Second)
	outcome := client.Fetch(context.Background(), "/character/1", nil)

	if outcome.Kind != Found {
		t.Fatalf("Kind = %v, want Found (err: %v)", outcome.Kind, outcome.Err)
	}
	if string(outcome.Payload) != testutil.CharacterJSON(1, "Rick Sanchez") {
		t.Errorf("Payload = %s", outcome.Payload)
	}
	if outcome.Err != nil {
		t.Errorf("Err = %v, want nil", outcome.Err)
	}
}

func TestClient_Fetch_QueryAndHeaders(t *testing.T) {
	mock := testutil.NewMockOrigin()
	defer mock.Close()

	var gotHeader http.Header
	var mu sync.Mutex
	mock.SetHandler("/episode", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotHeader = r.Header.Clone()
		mu.Unlock()
		w.Write([]byte(testutil.PageJSON(1)))
	})

	client := newTestClient(t, mock.URL()+"/", time.Second)
	outcome := client.Fetch(context.Background(), "episode", url.Values{"episode": {"S01"}, "page": {"2"}})

	if outcome.Kind != Found {
		t.Fatalf("Kind = %v, want Found", outcome.Kind)
	}
	last := mock.LastURL()
	if last.Path != "/episode" {
		t.Errorf("path = %q, want /episode", last.Path)
	}
	if last.Query().Get("episode") != "S01" || last.Query().Get("page") != "2" {
		t.Errorf("query = %q", last.RawQuery)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotHeader.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", gotHeader.Get("Accept"))
	}
	if gotHeader.Get("User-Agent") != "test/1.0" {
		t.Errorf("User-Agent = %q", gotHeader.Get("User-Agent"))
	}
}

func TestClient_Fetch_NotFound(t *testing.T) {
	mock := testutil.NewMockOrigin()
	defer mock.Close()
	mock.SetNotFound("/character/99999")

	client := newTestClient(t, mock.URL(), time.Second)
	outcome := client.Fetch(context.Background(), "/character/99999", nil)

	if outcome.Kind != NotFound {
		t.Errorf("Kind = %v, want NotFound", outcome.Kind)
	}
	if outcome.Payload != nil || outcome.Err != nil {
		t.Error("NotFound outcome carries payload or error")
	}
}

func TestClient_Fetch_Failures(t *testing.T) {
	tests := []struct {
		name       string
		response   testutil.MockResponse
		wantClass  ErrorClass
		wantStatus int
	}{
		{
			name:       "server error",
			response:   testutil.NewServerErrorResponse(),
			wantClass:  ErrorClassServer,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "bad gateway",
			response:   testutil.MockResponse{StatusCode: http.StatusBadGateway},
			wantClass:  ErrorClassServer,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "rate limited by origin",
			response:   testutil.NewRateLimitResponse(),
			wantClass:  ErrorClassClient,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "invalid json body",
			response:   testutil.MockResponse{StatusCode: http.StatusOK, Body: "<html>maintenance</html>"},
			wantClass:  ErrorClassDecode,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockOrigin()
			defer mock.Close()
			mock.SetResponse("/location/1", tt.response)

			client := newTestClient(t, mock.URL(), time.Second)
			outcome := client.Fetch(context.Background(), "/location/1", nil)

			if outcome.Kind != TransportFailure {
				t.Fatalf("Kind = %v, want TransportFailure", outcome.Kind)
			}
			if outcome.Err.Class != tt.wantClass {
				t.Errorf("Class = %v, want %v", outcome.Err.Class, tt.wantClass)
			}
			if outcome.Err.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", outcome.Err.StatusCode, tt.wantStatus)
			}
			if outcome.Err.Path != "/location/1" {
				t.Errorf("Path = %q, want /location/1", outcome.Err.Path)
			}
			if mock.TotalRequests() != 1 {
				t.Errorf("origin called %d times, want exactly 1 (no retries)", mock.TotalRequests())
			}
		})
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	mock := testutil.NewMockOrigin()
	defer mock.Close()
	mock.SetResponse("/character/1", testutil.NewSlowResponse(testutil.CharacterJSON(1, "Rick"), 500*time.Millisecond))

	client := newTestClient(t, mock.URL(), 50*time.Millisecond)

	start := time.Now()
	outcome := client.Fetch(context.Background(), "/character/1", nil)

	if outcome.Kind != TransportFailure {
		t.Fatalf("Kind = %v, want TransportFailure", outcome.Kind)
	}
	if !outcome.Err.Timeout() {
		t.Errorf("Class = %v, want timeout", outcome.Err.Class)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("Fetch took %v, timeout not enforced", elapsed)
	}
}

func TestClient_Fetch_CallerDeadline(t *testing.T) {
	mock := testutil.NewMockOrigin()
	defer mock.Close()
	mock.SetResponse("/character/1", testutil.NewSlowResponse(testutil.CharacterJSON(1, "Rick"), 500*time.Millisecond))

	client := newTestClient(t, mock.URL(), 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome := client.Fetch(ctx, "/character/1", nil)
	if outcome.Kind != TransportFailure || outcome.Err.Class != ErrorClassTimeout {
		t.Errorf("outcome = %v/%v, want timeout failure", outcome.Kind, outcome.Err)
	}
	if !errors.Is(outcome.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want wrapped context.DeadlineExceeded", outcome.Err)
	}
}

func TestClient_Fetch_ConnectionRefused(t *testing.T) {
	mock := testutil.NewMockOrigin()
	baseURL := mock.URL()
	mock.Close()

	client := newTestClient(t, baseURL, time.Second)
	outcome := client.Fetch(context.Background(), "/character/1", nil)

	if outcome.Kind != TransportFailure {
		t.Fatalf("Kind = %v, want TransportFailure", outcome.Kind)
	}
	if outcome.Err.Class != ErrorClassNetwork {
		t.Errorf("Class = %v, want network", outcome.Err.Class)
	}
}

func TestClient_Fetch_Concurrent(t *testing.T) {
	mock := testutil.NewMockOrigin()
	defer mock.Close()
	mock.SetJSON("/character/1", testutil.CharacterJSON(1, "Rick"))

	client := newTestClient(t, mock.URL(), time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if outcome := client.Fetch(context.Background(), "/character/1", nil); outcome.Kind != Found {
				t.Errorf("Kind = %v, want Found", outcome.Kind)
			}
		}()
	}
	wg.Wait()

	if mock.TotalRequests() != 20 {
		t.Errorf("TotalRequests() = %d, want 20", mock.TotalRequests())
	}
}

func TestResourceLabel(t *testing.T) {
	tests := map[string]string{
		"/character/1": "character",
		"/episode":     "episode",
		"location/":    "location",
		"/":            "root",
	}
	for in, want := range tests {
		if got := resourceLabel(in); got != want {
			t.Errorf("resourceLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

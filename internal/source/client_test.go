package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atlasci/coalesce/internal/model"
)

func sourcesFor(endpoint string) model.SourcesConfig {
	cfg := model.SourceConfig{Endpoint: endpoint, Timeout: 5 * time.Second, MaxBodyBytes: 1 << 20}
	return model.SourcesConfig{Graph: cfg, Rule: cfg, AI: cfg}
}

func withInstantRetries(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func TestHTTPClient_Fetch(t *testing.T) {
	var gotPath, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"run_id":"R1"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(sourcesFor(server.URL), nil)
	body, err := client.Fetch(context.Background(), "R1", model.SourceGraph)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if string(body) != `{"run_id":"R1"}` {
		t.Errorf("unexpected body: %s", body)
	}
	if gotPath != "/runs/R1/graph" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotAccept != "application/json" {
		t.Errorf("unexpected accept header: %s", gotAccept)
	}
}

func TestHTTPClient_RunIDEscaped(t *testing.T) {
	var gotEscaped string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEscaped = r.URL.EscapedPath()
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := NewHTTPClient(sourcesFor(server.URL), nil)
	if _, err := client.Fetch(context.Background(), "run/42", model.SourceRule); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if gotEscaped != "/runs/run%2F42/rule" {
		t.Errorf("run id not escaped: %s", gotEscaped)
	}
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	withInstantRetries(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := NewHTTPClient(sourcesFor(server.URL), nil)
	if _, err := client.Fetch(context.Background(), "R1", model.SourceAI); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestHTTPClient_NoRetryOnNotFound(t *testing.T) {
	withInstantRetries(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(sourcesFor(server.URL), nil)
	_, err := client.Fetch(context.Background(), "R1", model.SourceGraph)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("404 must not be retried, got %d attempts", calls)
	}
}

func TestHTTPClient_FetchErrorCarriesKind(t *testing.T) {
	withInstantRetries(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(sourcesFor(server.URL), nil)
	_, err := client.Fetch(context.Background(), "R7", model.SourceRule)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.RunID != "R7" || fe.Kind != model.SourceRule {
		t.Errorf("error lost its context: %+v", fe)
	}
}

func TestHTTPClient_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1000))
	}))
	defer server.Close()

	sources := sourcesFor(server.URL)
	sources.Graph.MaxBodyBytes = 100

	client := NewHTTPClient(sources, nil)
	body, err := client.Fetch(context.Background(), "R1", model.SourceGraph)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(body) != 100 {
		t.Errorf("expected body truncated to 100 bytes, got %d", len(body))
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&statusError{Code: 500}, true},
		{&statusError{Code: 503}, true},
		{&statusError{Code: 429}, true},
		{&statusError{Code: 404}, false},
		{&statusError{Code: 400}, false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("context deadline exceeded"), false},
		{errors.New("invalid payload"), false},
	}
	for _, tt := range tests {
		if got := isRetryableFetchError(tt.err); got != tt.want {
			t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

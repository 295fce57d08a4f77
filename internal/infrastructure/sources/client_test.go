package sources_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/pulse/internal/infrastructure/sources"
)

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Basic dXNlcjpwYXNz" {
			t.Errorf("missing auth header, got %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"value": 42}`))
	}))
	defer server.Close()

	client := sources.NewClient()
	var out struct {
		Value int `json:"value"`
	}
	if err := client.GetJSON(context.Background(), server.URL, sources.BasicAuthHeader("dXNlcjpwYXNz"), &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out.Value != 42 {
		t.Errorf("got %d", out.Value)
	}
}

func TestGetJSONRetriesTransientFailures(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := sources.NewClient()
	var out map[string]any
	if err := client.GetJSON(context.Background(), server.URL, nil, &out); err != nil {
		t.Fatalf("expected the retry to recover, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestGetJSONStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := sources.NewClient()
	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, nil, &out)
	if err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
	var statusErr *sources.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected a StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("got status %d", statusErr.StatusCode)
	}
}

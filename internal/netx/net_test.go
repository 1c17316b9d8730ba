package netx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbe(t *testing.T) {
	t.Run("reports 200", func(t *testing.T) {
		var gotMethod, gotQuery string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotQuery = r.URL.RawQuery
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		code, err := Probe(context.Background(), nil, ts.URL+"/private/a.pdf?Expires=1&Signature=abc&Key-Pair-Id=K")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != http.StatusOK {
			t.Fatalf("code = %d, want 200", code)
		}
		if gotMethod != http.MethodHead {
			t.Fatalf("method = %q, want HEAD", gotMethod)
		}
		if gotQuery != "Expires=1&Signature=abc&Key-Pair-Id=K" {
			t.Fatalf("query = %q", gotQuery)
		}
	})

	t.Run("reports 403 without error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer ts.Close()

		code, err := Probe(context.Background(), ts.Client(), ts.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != http.StatusForbidden {
			t.Fatalf("code = %d, want 403", code)
		}
	})

	t.Run("bad URL", func(t *testing.T) {
		if _, err := Probe(context.Background(), nil, "://bad url"); err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := ts.URL
		ts.Close()

		if _, err := Probe(context.Background(), nil, url); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

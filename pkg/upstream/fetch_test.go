package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSourceHostClient_GetRepo(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/repos/acme/widget" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Header().Set("X-RateLimit-Remaining", "42")
			w.Header().Set("ETag", `"abc123"`)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"name":"widget"}`))
		}))
		defer srv.Close()

		c := NewSourceHostClient(srv.URL, "")
		result, err := c.GetRepo(context.Background(), "acme", "widget", "")
		if err != nil {
			t.Fatalf("GetRepo failed: %v", err)
		}
		if result.Status != StatusOk {
			t.Errorf("expected StatusOk, got %v", result.Status)
		}
		if result.RateLimitRemaining != 42 {
			t.Errorf("expected ratelimit 42, got %d", result.RateLimitRemaining)
		}
		if result.ETag != `"abc123"` {
			t.Errorf("expected etag to round-trip, got %q", result.ETag)
		}
	})

	t.Run("not modified", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("If-None-Match") != `"abc123"` {
				t.Errorf("expected conditional GET with prior etag")
			}
			w.WriteHeader(http.StatusNotModified)
		}))
		defer srv.Close()

		c := NewSourceHostClient(srv.URL, "")
		result, err := c.GetRepo(context.Background(), "acme", "widget", `"abc123"`)
		if err != nil {
			t.Fatalf("GetRepo failed: %v", err)
		}
		if result.Status != StatusNotModified {
			t.Errorf("expected StatusNotModified, got %v", result.Status)
		}
	})

	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		c := NewSourceHostClient(srv.URL, "")
		result, err := c.GetRepo(context.Background(), "acme", "missing", "")
		if err != nil {
			t.Fatalf("GetRepo failed: %v", err)
		}
		if result.Status != StatusNotFound {
			t.Errorf("expected StatusNotFound, got %v", result.Status)
		}
	})

	t.Run("forbidden quota exceeded", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		c := NewSourceHostClient(srv.URL, "")
		result, err := c.GetRepo(context.Background(), "acme", "widget", "")
		if err != nil {
			t.Fatalf("GetRepo failed: %v", err)
		}
		if result.Status != StatusForbidden {
			t.Errorf("expected StatusForbidden, got %v", result.Status)
		}
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewSourceHostClient(srv.URL, "")
		result, err := c.GetRepo(context.Background(), "acme", "widget", "")
		if err != nil {
			t.Fatalf("GetRepo failed: %v", err)
		}
		if result.Status != StatusServerError {
			t.Errorf("expected StatusServerError, got %v", result.Status)
		}
	})
}

func TestSourceHostClient_BearerAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			t.Errorf("expected bearer auth header, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewSourceHostClient(srv.URL, "secret-token")
	if _, err := c.GetRepo(context.Background(), "acme", "widget", ""); err != nil {
		t.Fatalf("GetRepo failed: %v", err)
	}
}

func TestRegistryClient_GetPackage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/widget" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"name":"widget"}`))
	}))
	defer srv.Close()

	c := NewRegistryClient(srv.URL, "")
	result, err := c.GetPackage(context.Background(), "widget", "")
	if err != nil {
		t.Fatalf("GetPackage failed: %v", err)
	}
	if result.Status != StatusOk {
		t.Errorf("expected StatusOk, got %v", result.Status)
	}
}

func TestUnpkgClient_GetFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/widget@2.0.0/README.md" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("# Widget"))
	}))
	defer srv.Close()

	c := NewUnpkgClient(srv.URL)
	result, err := c.GetFile(context.Background(), "widget", "2.0.0", "README.md", "")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if string(result.Body) != "# Widget" {
		t.Errorf("unexpected body %q", result.Body)
	}
}

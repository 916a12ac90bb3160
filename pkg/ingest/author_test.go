package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/webcomponents/catalog/pkg/catalog"
)

func TestReconciler_UpdateAuthor_Ready(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/acme" {
			w.Write([]byte(`{"login":"acme","name":"Acme Corp"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r, _, store := newTestReconciler(t, srv)

	result := r.UpdateAuthor(context.Background(), "acme")
	if result.Outcome != 0 {
		t.Fatalf("expected OutcomeContinue, got %+v", result)
	}

	author, err := store.GetAuthor(context.Background(), "acme")
	if err != nil {
		t.Fatalf("GetAuthor failed: %v", err)
	}
	if author.Status != catalog.StatusReady {
		t.Errorf("expected status ready, got %q", author.Status)
	}
	if len(author.Metadata.Body) == 0 {
		t.Error("expected author metadata to be populated")
	}
}

func TestReconciler_UpdateAuthor_NotFoundIsPermanentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r, _, store := newTestReconciler(t, srv)

	result := r.UpdateAuthor(context.Background(), "ghost")
	if result.Code != catalog.ErrAuthorNotFound {
		t.Fatalf("expected ErrAuthorNotFound, got %+v", result)
	}

	author, err := store.GetAuthor(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetAuthor failed: %v", err)
	}
	if author.Status != catalog.StatusError {
		t.Errorf("expected status error, got %q", author.Status)
	}
}

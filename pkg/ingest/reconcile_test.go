package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
	"github.com/webcomponents/catalog/pkg/tasks"
	"github.com/webcomponents/catalog/pkg/upstream"
)

type inlineQueue struct {
	tasks []tasks.Task
}

func (q *inlineQueue) Enqueue(ctx context.Context, t tasks.Task) error {
	q.tasks = append(q.tasks, t)
	return nil
}

func newTestReconciler(t *testing.T, srv *httptest.Server) (*Reconciler, *inlineQueue, storage.Store) {
	t.Helper()
	store, err := storage.NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore failed: %v", err)
	}
	q := &inlineQueue{}
	return &Reconciler{
		Store:      store,
		SourceHost: upstream.NewSourceHostClient(srv.URL, ""),
		Registry:   upstream.NewRegistryClient(srv.URL, ""),
		Unpkg:      upstream.NewUnpkgClient(srv.URL),
		Queue:      q,
		Allowlist:  catalog.DefaultSPDXAllowlist(),
	}, q, store
}

func repoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/repos/acme/widget":
			w.Write([]byte(`{"license":{"spdx_id":"MIT"},"topics":[]}`))
		case r.URL.Path == "/repos/acme/widget/tags":
			w.Write([]byte(`[{"name":"v1.0.0","commit":{"sha":"deadbeef"}}]`))
		case r.URL.Path == "/repos/acme/widget/contributors":
			w.Write([]byte(`[]`))
		case r.URL.Path == "/repos/acme/widget/stats/participation":
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestReconciler_Ingest_NewLibrary(t *testing.T) {
	srv := httptest.NewServer(repoHandler())
	defer srv.Close()

	r, q, store := newTestReconciler(t, srv)
	result := r.Ingest(context.Background(), "acme", "widget")
	if result.Outcome != tasks.OutcomeContinue {
		t.Fatalf("expected OutcomeContinue, got %v (%s)", result.Outcome, result.Error())
	}

	lib, err := store.GetLibrary(context.Background(), "acme/widget")
	if err != nil {
		t.Fatalf("GetLibrary failed: %v", err)
	}
	if lib.Status != catalog.StatusReady {
		t.Errorf("expected library ready, got %s", lib.Status)
	}
	if lib.SpdxIdentifier != "MIT" {
		t.Errorf("expected MIT license, got %q", lib.SpdxIdentifier)
	}
	if len(q.tasks) != 2 {
		t.Fatalf("expected author-ensure and version-ingest tasks, got %+v", q.tasks)
	}
	if q.tasks[0].Path != "/task/update-author/acme" {
		t.Errorf("expected author-ensure task first, got %+v", q.tasks[0])
	}
	if q.tasks[1].Path != "/task/ingest/acme/widget/v1.0.0" {
		t.Errorf("expected ingest task for v1.0.0, got %+v", q.tasks[1])
	}
}

func TestReconciler_Ingest_UnlicensedRepoIsPermanentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/nolicense":
			w.Write([]byte(`{"topics":[]}`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	r, _, _ := newTestReconciler(t, srv)
	result := r.Ingest(context.Background(), "acme", "nolicense")
	if result.Outcome != tasks.OutcomePermanent {
		t.Fatalf("expected OutcomePermanent, got %v", result.Outcome)
	}
	if result.Code != catalog.ErrLibraryLicense {
		t.Errorf("expected license error code, got %q", result.Code)
	}
}

func TestReconciler_Ingest_NotFoundCascadeDeletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r, _, store := newTestReconciler(t, srv)

	store.PutLibrary(context.Background(), &catalog.Library{Scope: "acme", Package: "gone", Status: catalog.StatusReady})

	result := r.Ingest(context.Background(), "acme", "gone")
	if result.Outcome != tasks.OutcomeContinue {
		t.Fatalf("expected OutcomeContinue, got %v", result.Outcome)
	}
	if _, err := store.GetLibrary(context.Background(), "acme/gone"); err == nil {
		t.Error("expected library to be deleted")
	}
}

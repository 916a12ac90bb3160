package search

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
	"github.com/webcomponents/catalog/pkg/tasks"
)

type inlineQueue struct {
	tasks []tasks.Task
}

func (q *inlineQueue) Enqueue(ctx context.Context, t tasks.Task) error {
	q.tasks = append(q.tasks, t)
	return nil
}

func TestIndexer_UpdateIndexes(t *testing.T) {
	store, err := storage.NewFileSystemStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	store.PutLibrary(ctx, &catalog.Library{
		Scope: "acme", Package: "widget", GithubOwner: "acme", GithubRepo: "widget",
		Kind: catalog.KindElement, Status: catalog.StatusReady,
	})
	store.PutVersion(ctx, &catalog.Version{LibraryID: "acme/widget", Tag: "v1.0.0", Status: catalog.StatusReady})
	store.RefreshVersionCacheTx(ctx, "acme/widget")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO search_documents").WillReturnResult(sqlmock.NewResult(1, 1))

	idx := NewIndexer(db, store, &inlineQueue{})
	result := idx.UpdateIndexes(ctx, "acme", "widget")
	if result.Outcome != tasks.OutcomeContinue {
		t.Fatalf("expected OutcomeContinue, got %v (%s)", result.Outcome, result.Error())
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexer_UpdateIndexes_NoDefaultVersionIsPermanentError(t *testing.T) {
	store, err := storage.NewFileSystemStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	store.PutLibrary(ctx, &catalog.Library{Scope: "acme", Package: "empty", Status: catalog.StatusReady})

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	idx := NewIndexer(db, store, &inlineQueue{})
	result := idx.UpdateIndexes(ctx, "acme", "empty")
	if result.Outcome != tasks.OutcomePermanent {
		t.Fatalf("expected OutcomePermanent, got %v", result.Outcome)
	}
	if result.Code != catalog.ErrLibraryNoVersion {
		t.Errorf("expected no-version error code, got %q", result.Code)
	}
}

func TestIndexer_UpdateIndexes_CollectionEnsuresMembers(t *testing.T) {
	store, err := storage.NewFileSystemStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	store.PutLibrary(ctx, &catalog.Library{
		Scope: "acme", Package: "collection", GithubOwner: "acme", GithubRepo: "collection",
		Kind: catalog.KindCollection, Status: catalog.StatusReady,
	})
	store.PutVersion(ctx, &catalog.Version{LibraryID: "acme/collection", Tag: "v1.0.0", Status: catalog.StatusReady})
	store.PutContent(ctx, &catalog.Content{
		LibraryID: "acme/collection", Tag: "v1.0.0", Role: catalog.ContentBower,
		BodyJSON: []byte(`{"dependencies":{"iron-behaviors":"PolymerElements/iron-behaviors#^1.0.0"}}`),
		Status:   catalog.StatusReady,
	})
	store.RefreshVersionCacheTx(ctx, "acme/collection")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("INSERT INTO search_documents").WillReturnResult(sqlmock.NewResult(1, 1))

	q := &inlineQueue{}
	idx := NewIndexer(db, store, q)
	result := idx.UpdateIndexes(ctx, "acme", "collection")
	if result.Outcome != tasks.OutcomeContinue {
		t.Fatalf("expected OutcomeContinue, got %v (%s)", result.Outcome, result.Error())
	}

	refs, err := store.ListCollectionReferences(ctx, "polymerelements/iron-behaviors")
	require.NoError(t, err)
	if len(refs) != 1 || refs[0].CollectionScope != "acme" {
		t.Errorf("expected a collection reference to be recorded, got %+v", refs)
	}
	if len(q.tasks) != 1 || q.tasks[0].Path != "/task/ingest/polymerelements/iron-behaviors" {
		t.Errorf("expected member ingest task enqueued, got %+v", q.tasks)
	}
}

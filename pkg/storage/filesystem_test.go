package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/webcomponents/catalog/pkg/catalog"
)

func TestNewFileSystemStore(t *testing.T) {
	tmpDir := t.TempDir()
	rootDir := filepath.Join(tmpDir, "test-store")

	store, err := NewFileSystemStore(rootDir)
	if err != nil {
		t.Fatalf("NewFileSystemStore failed: %v", err)
	}
	if store.rootDir != rootDir {
		t.Errorf("expected rootDir %s, got %s", rootDir, store.rootDir)
	}
}

func TestFileSystemStore_LibraryRoundTrip(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore failed: %v", err)
	}
	ctx := context.Background()

	lib := &catalog.Library{Scope: "@acme", Package: "widget", Kind: catalog.KindElement, Status: catalog.StatusReady}
	if err := store.PutLibrary(ctx, lib); err != nil {
		t.Fatalf("PutLibrary failed: %v", err)
	}

	got, err := store.GetLibrary(ctx, lib.ID())
	if err != nil {
		t.Fatalf("GetLibrary failed: %v", err)
	}
	if got.Package != "widget" || got.Kind != catalog.KindElement {
		t.Errorf("unexpected library: %+v", got)
	}

	list, total, err := store.ListLibraries(ctx, catalog.KindElement, 10, 0)
	if err != nil {
		t.Fatalf("ListLibraries failed: %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Errorf("expected 1 library, got total=%d len=%d", total, len(list))
	}

	if err := store.DeleteLibrary(ctx, lib.ID()); err != nil {
		t.Fatalf("DeleteLibrary failed: %v", err)
	}
	if _, err := store.GetLibrary(ctx, lib.ID()); err == nil {
		t.Error("expected error reading deleted library")
	}
}

func TestFileSystemStore_VersionCacheRefresh(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore failed: %v", err)
	}
	ctx := context.Background()
	libID := "@acme/widget"

	for _, tag := range []string{"v1.0.0", "v0.9.0"} {
		v := &catalog.Version{LibraryID: libID, Tag: tag, Status: catalog.StatusReady}
		if err := store.PutVersion(ctx, v); err != nil {
			t.Fatalf("PutVersion(%s) failed: %v", tag, err)
		}
	}

	cache, changed, err := store.RefreshVersionCacheTx(ctx, libID)
	if err != nil {
		t.Fatalf("RefreshVersionCacheTx failed: %v", err)
	}
	if !changed {
		t.Error("expected changed=true on first refresh")
	}
	if cache.DefaultVersion() != "v1.0.0" {
		t.Errorf("expected default v1.0.0, got %q", cache.DefaultVersion())
	}

	_, changedAgain, err := store.RefreshVersionCacheTx(ctx, libID)
	if err != nil {
		t.Fatalf("RefreshVersionCacheTx failed: %v", err)
	}
	if changedAgain {
		t.Error("expected changed=false on stable refresh")
	}
}

func TestFileSystemStore_BlobDedup(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore failed: %v", err)
	}
	ctx := context.Background()

	hash1, err := store.PutBlob(ctx, []byte("hello world"), "text/plain")
	if err != nil {
		t.Fatalf("PutBlob failed: %v", err)
	}
	hash2, err := store.PutBlob(ctx, []byte("hello world"), "text/plain")
	if err != nil {
		t.Fatalf("PutBlob failed: %v", err)
	}
	if hash1 != hash2 {
		t.Errorf("expected stable content hash, got %s vs %s", hash1, hash2)
	}

	body, err := store.GetBlob(ctx, hash1)
	if err != nil {
		t.Fatalf("GetBlob failed: %v", err)
	}
	if string(body) != "hello world" {
		t.Errorf("unexpected blob content: %q", body)
	}
}

func TestFileSystemStore_HealthCheck(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore failed: %v", err)
	}
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy store, got %v", err)
	}
}

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
)

// setupRedisClientTest creates a miniredis instance and returns the client and cleanup function
func setupRedisClientTest(t *testing.T) (*RedisClient, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	config := storage.Config{
		RedisURL: "redis://" + mr.Addr(),
		CacheTTL: map[string]time.Duration{
			"library":       1 * time.Hour,
			"version_cache": 1 * time.Minute,
		},
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
	}

	client, err := NewRedisClient(config)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create Redis client: %v", err)
	}

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, mr, cleanup
}

func TestNewRedisClient_Success(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	if client == nil || client.client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestRedisClient_LibraryRoundTrip(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()
	ctx := context.Background()

	lib := &catalog.Library{Scope: "@acme", Package: "widget", Kind: catalog.KindElement}
	if err := client.SetLibrary(ctx, lib); err != nil {
		t.Fatalf("SetLibrary failed: %v", err)
	}

	got, err := client.GetLibrary(ctx, lib.ID())
	if err != nil {
		t.Fatalf("GetLibrary failed: %v", err)
	}
	if got == nil || got.Package != "widget" {
		t.Fatalf("unexpected library: %+v", got)
	}

	if err := client.InvalidateLibrary(ctx, lib.ID()); err != nil {
		t.Fatalf("InvalidateLibrary failed: %v", err)
	}
	miss, err := client.GetLibrary(ctx, lib.ID())
	if err != nil {
		t.Fatalf("GetLibrary after invalidate failed: %v", err)
	}
	if miss != nil {
		t.Error("expected cache miss after invalidate")
	}
}

func TestRedisClient_VersionCacheRoundTrip(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()
	ctx := context.Background()

	vc := &catalog.VersionCache{LibraryID: "@acme/widget", Versions: []string{"v1.0.0", "v2.0.0"}}
	if err := client.SetVersionCache(ctx, vc); err != nil {
		t.Fatalf("SetVersionCache failed: %v", err)
	}

	got, err := client.GetVersionCache(ctx, vc.LibraryID)
	if err != nil {
		t.Fatalf("GetVersionCache failed: %v", err)
	}
	if got == nil || got.DefaultVersion() != "v2.0.0" {
		t.Fatalf("unexpected version cache: %+v", got)
	}
}

func TestRedisClient_GetDel(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "xsrf:abc123", "1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("SetNX failed: ok=%v err=%v", ok, err)
	}

	val, err := client.GetDel(ctx, "xsrf:abc123")
	if err != nil {
		t.Fatalf("GetDel failed: %v", err)
	}
	if val != "1" {
		t.Errorf("expected value '1', got %q", val)
	}

	// second GetDel must miss: the token is single-use
	if _, err := client.GetDel(ctx, "xsrf:abc123"); err == nil {
		t.Error("expected error on second GetDel of consumed token")
	}
}

func TestRedisClient_Ping(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("expected Ping to succeed, got %v", err)
	}
}

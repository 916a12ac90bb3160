// Package storage defines the persistence contract for the catalog: a
// single Store interface spanning Library, Version, Content, Author,
// CollectionReference, VersionCache and Sitemap entities, backed by
// Postgres for metadata, S3 for content-addressed blobs, Redis for
// read-through caching, and an in-process LRU as the L1 tier.
package storage

import (
	"context"
	"time"

	"github.com/webcomponents/catalog/pkg/catalog"
)

// LibraryReader defines read operations on Library entities.
type LibraryReader interface {
	GetLibrary(ctx context.Context, id string) (*catalog.Library, error)
	ListLibraries(ctx context.Context, kind catalog.Kind, limit, offset int) ([]*catalog.Library, int64, error)
}

// LibraryWriter defines write operations on Library entities.
type LibraryWriter interface {
	PutLibrary(ctx context.Context, lib *catalog.Library) error
	DeleteLibrary(ctx context.Context, id string) error
}

// VersionReader defines read operations on Version entities.
type VersionReader interface {
	GetVersion(ctx context.Context, libraryID, tag string) (*catalog.Version, error)
	ListVersions(ctx context.Context, libraryID string) ([]*catalog.Version, error)
}

// VersionWriter defines write operations on Version entities.
type VersionWriter interface {
	PutVersion(ctx context.Context, v *catalog.Version) error
	DeleteVersion(ctx context.Context, libraryID, tag string) error
}

// ContentReader defines read operations on Content entities.
type ContentReader interface {
	GetContent(ctx context.Context, libraryID, tag string, role catalog.ContentRole) (*catalog.Content, error)
}

// ContentWriter defines write operations on Content entities.
type ContentWriter interface {
	PutContent(ctx context.Context, c *catalog.Content) error
}

// AuthorReader defines read operations on Author entities.
type AuthorReader interface {
	GetAuthor(ctx context.Context, name string) (*catalog.Author, error)
	ListAuthors(ctx context.Context, limit, offset int) ([]*catalog.Author, int64, error)
}

// AuthorWriter defines write operations on Author entities.
type AuthorWriter interface {
	PutAuthor(ctx context.Context, a *catalog.Author) error
}

// CollectionReferenceStore manages the inverse "member of collection"
// edges used by the dependency graph and the search index.
type CollectionReferenceStore interface {
	PutCollectionReference(ctx context.Context, ref *catalog.CollectionReference) error
	ListCollectionReferences(ctx context.Context, memberLibraryID string) ([]*catalog.CollectionReference, error)
	DeleteCollectionReferencesForCollection(ctx context.Context, collectionScope, collectionPackage, collectionTag string) error
}

// VersionCacheStore reads and transactionally refreshes a Library's
// VersionCache singleton (the single read-path consistency contract).
type VersionCacheStore interface {
	GetVersionCache(ctx context.Context, libraryID string) (*catalog.VersionCache, error)

	// RefreshVersionCacheTx re-scans the library's Version children and
	// the previous VersionCache inside a single transaction, computes
	// the new cache via catalog.RefreshVersionCache, persists it, and
	// returns whether the default version changed. The re-scan and the
	// write happen under the same row lock, so a concurrent ingestion
	// of a sibling version can never be lost or double-counted.
	RefreshVersionCacheTx(ctx context.Context, libraryID string) (cache catalog.VersionCache, changed bool, err error)
}

// SitemapStore manages the three bulk id-list entities.
type SitemapStore interface {
	GetSitemap(ctx context.Context, kind catalog.SitemapKind) (*catalog.Sitemap, error)
	PutSitemap(ctx context.Context, s *catalog.Sitemap) error
}

// BlobStore is content-addressed storage for large bodies (README HTML,
// compressed analysis JSON, page bodies) that don't belong inline in a
// metadata row.
type BlobStore interface {
	PutBlob(ctx context.Context, content []byte, contentType string) (hash string, err error)
	GetBlob(ctx context.Context, hash string) ([]byte, error)
}

// CacheInvalidator expires derived read-through cache entries.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context, patterns ...string) error
}

// HealthChecker reports backend connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Store is the canonical persistence interface the rest of the catalog
// depends on.
type Store interface {
	LibraryReader
	LibraryWriter
	VersionReader
	VersionWriter
	ContentReader
	ContentWriter
	AuthorReader
	AuthorWriter
	CollectionReferenceStore
	VersionCacheStore
	SitemapStore
	BlobStore
	CacheInvalidator
	HealthChecker
}

// Config selects and configures a Store backend. Type chooses between
// the filesystem backend (FilesystemRoot) and the Postgres+S3+Redis
// backend (everything else).
type Config struct {
	Type           string // "filesystem" or "postgres"
	FilesystemRoot string

	PostgresURL         string
	PostgresReplicaURLs string // comma-separated list of replica URLs
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3UsePathStyle   bool
	S3ForcePathStyle bool

	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	CacheEnabled bool
	CacheTTL     map[string]time.Duration
	L1CacheSize  int // entry count, not bytes
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{
		Type:             "filesystem",
		FilesystemRoot:   "/tmp/catalog",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		CacheTTL: map[string]time.Duration{
			"library":       1 * time.Hour,
			"version":       1 * time.Hour,
			"version_cache": 1 * time.Minute,
			"sitemap":       10 * time.Minute,
		},
		L1CacheSize: 4096,
	}
}

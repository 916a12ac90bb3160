package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
)

var tracer = otel.Tracer("catalog/storage/postgres")

// PostgresStore implements storage.Store using PostgreSQL for metadata,
// S3 for content-addressed blobs, Redis as the L2 read-through cache,
// and an in-process LRU as the L1 tier.
type PostgresStore struct {
	connManager *ConnectionManager
	db          *sql.DB
	s3Client    *S3Client
	redisClient *RedisClient
	l1          *l1Cache
	config      storage.Config
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(config storage.Config) (*PostgresStore, error) {
	connConfig := ConnectionConfig{
		PrimaryURL:  config.PostgresURL,
		ReplicaURLs: ParseReplicaURLs(config.PostgresReplicaURLs),
		MaxConns:    config.PostgresMaxConns,
		MinConns:    config.PostgresMinConns,
		Timeout:     config.PostgresTimeout,
		MaxLifetime: 1 * time.Hour,
		MaxIdleTime: 10 * time.Minute,
	}

	connManager, err := NewConnectionManager(connConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	db := connManager.Primary()

	var s3Client *S3Client
	if config.S3Endpoint != "" || config.S3Bucket != "" {
		s3Client, err = NewS3Client(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
	}

	var redisClient *RedisClient
	if config.CacheEnabled && config.RedisURL != "" {
		redisClient, err = NewRedisClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
	}

	l1, err := newL1Cache(config.L1CacheSize, config.CacheTTL["version_cache"])
	if err != nil {
		return nil, fmt.Errorf("failed to create l1 cache: %w", err)
	}

	return &PostgresStore{
		connManager: connManager,
		db:          db,
		s3Client:    s3Client,
		redisClient: redisClient,
		l1:          l1,
		config:      config,
	}, nil
}

func (s *PostgresStore) primary() *sql.DB { return s.connManager.Primary() }
func (s *PostgresStore) replica() *sql.DB { return s.connManager.Replica() }

func (s *PostgresStore) GetLibrary(ctx context.Context, id string) (*catalog.Library, error) {
	ctx, span := tracer.Start(ctx, "GetLibrary",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.table", "libraries"),
			attribute.String("library.id", id),
		),
	)
	defer span.End()

	if lib, ok := s.l1.getLibrary(id); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true), attribute.String("cache.tier", "l1"))
		return lib, nil
	}

	if s.redisClient != nil {
		if lib, err := s.redisClient.GetLibrary(ctx, id); err == nil && lib != nil {
			span.SetAttributes(attribute.Bool("cache.hit", true), attribute.String("cache.tier", "redis"))
			s.l1.putLibrary(lib)
			return lib, nil
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	query := `
		SELECT scope, package, kind, status, error_code, error_message,
			shallow_ingestion, github_owner, github_repo, spdx_identifier,
			metadata, contributors, participation, registry_metadata,
			tags, tag_map, collection_sequence_number,
			npm_package, migrated_from_bower, updated_at
		FROM libraries
		WHERE scope = $1 AND package = $2
	`
	scope, pkg := splitLibraryID(id)

	var lib catalog.Library
	var metadataJSON, contributorsJSON, participationJSON, registryJSON []byte
	var tagsJSON, tagMapJSON []byte
	err := s.db.QueryRowContext(ctx, query, scope, pkg).Scan(
		&lib.Scope, &lib.Package, &lib.Kind, &lib.Status, &lib.Error.Code, &lib.Error.Message,
		&lib.ShallowIngestion, &lib.GithubOwner, &lib.GithubRepo, &lib.SpdxIdentifier,
		&metadataJSON, &contributorsJSON, &participationJSON, &registryJSON,
		&tagsJSON, &tagMapJSON, &lib.CollectionSequenceNumber,
		&lib.NpmPackage, &lib.MigratedFromBower, &lib.Updated,
	)
	if err == sql.ErrNoRows {
		span.SetStatus(codes.Error, "library not found")
		return nil, fmt.Errorf("library not found: %s", id)
	} else if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get library")
		return nil, fmt.Errorf("failed to get library: %w", err)
	}

	_ = json.Unmarshal(metadataJSON, &lib.Metadata)
	_ = json.Unmarshal(contributorsJSON, &lib.Contributors)
	_ = json.Unmarshal(participationJSON, &lib.Participation)
	_ = json.Unmarshal(registryJSON, &lib.RegistryMetadata)
	_ = json.Unmarshal(tagsJSON, &lib.Tags)
	_ = json.Unmarshal(tagMapJSON, &lib.TagMap)

	if s.redisClient != nil {
		s.redisClient.SetLibrary(ctx, &lib)
	}
	s.l1.putLibrary(&lib)

	span.SetStatus(codes.Ok, "library retrieved from database")
	return &lib, nil
}

func (s *PostgresStore) ListLibraries(ctx context.Context, kind catalog.Kind, limit, offset int) ([]*catalog.Library, int64, error) {
	countQuery := "SELECT COUNT(*) FROM libraries"
	listQuery := `
		SELECT scope, package, kind, status, updated_at
		FROM libraries
	`
	args := []interface{}{}
	if kind != "" {
		countQuery += " WHERE kind = $1"
		listQuery += " WHERE kind = $1"
		args = append(args, kind)
	}
	listQuery += " ORDER BY updated_at DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)

	var total int64
	if err := s.replica().QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count libraries: %w", err)
	}

	rows, err := s.replica().QueryContext(ctx, listQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list libraries: %w", err)
	}
	defer rows.Close()

	var libs []*catalog.Library
	for rows.Next() {
		var lib catalog.Library
		if err := rows.Scan(&lib.Scope, &lib.Package, &lib.Kind, &lib.Status, &lib.Updated); err != nil {
			return nil, 0, fmt.Errorf("failed to scan library: %w", err)
		}
		libs = append(libs, &lib)
	}
	return libs, total, nil
}

func (s *PostgresStore) PutLibrary(ctx context.Context, lib *catalog.Library) error {
	ctx, span := tracer.Start(ctx, "PutLibrary",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "UPSERT"),
			attribute.String("db.table", "libraries"),
			attribute.String("library.id", lib.ID()),
		),
	)
	defer span.End()

	metadataJSON, _ := json.Marshal(lib.Metadata)
	contributorsJSON, _ := json.Marshal(lib.Contributors)
	participationJSON, _ := json.Marshal(lib.Participation)
	registryJSON, _ := json.Marshal(lib.RegistryMetadata)
	tagsJSON, _ := json.Marshal(lib.Tags)
	tagMapJSON, _ := json.Marshal(lib.TagMap)

	if lib.Updated.IsZero() {
		lib.Updated = time.Now()
	}

	query := `
		INSERT INTO libraries (
			scope, package, kind, status, error_code, error_message,
			shallow_ingestion, github_owner, github_repo, spdx_identifier,
			metadata, contributors, participation, registry_metadata,
			tags, tag_map, collection_sequence_number,
			npm_package, migrated_from_bower, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (scope, package) DO UPDATE SET
			kind = EXCLUDED.kind,
			status = EXCLUDED.status,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			shallow_ingestion = EXCLUDED.shallow_ingestion,
			github_owner = EXCLUDED.github_owner,
			github_repo = EXCLUDED.github_repo,
			spdx_identifier = EXCLUDED.spdx_identifier,
			metadata = EXCLUDED.metadata,
			contributors = EXCLUDED.contributors,
			participation = EXCLUDED.participation,
			registry_metadata = EXCLUDED.registry_metadata,
			tags = EXCLUDED.tags,
			tag_map = EXCLUDED.tag_map,
			collection_sequence_number = EXCLUDED.collection_sequence_number,
			npm_package = EXCLUDED.npm_package,
			migrated_from_bower = EXCLUDED.migrated_from_bower,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		lib.Scope, lib.Package, lib.Kind, lib.Status, lib.Error.Code, lib.Error.Message,
		lib.ShallowIngestion, lib.GithubOwner, lib.GithubRepo, lib.SpdxIdentifier,
		metadataJSON, contributorsJSON, participationJSON, registryJSON,
		tagsJSON, tagMapJSON, lib.CollectionSequenceNumber,
		lib.NpmPackage, lib.MigratedFromBower, lib.Updated,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert library")
		return fmt.Errorf("failed to put library: %w", err)
	}

	s.l1.invalidateLibrary(lib.ID())
	if s.redisClient != nil {
		s.redisClient.InvalidateLibrary(ctx, lib.ID())
	}

	span.SetStatus(codes.Ok, "library upserted")
	return nil
}

func (s *PostgresStore) DeleteLibrary(ctx context.Context, id string) error {
	scope, pkg := splitLibraryID(id)
	_, err := s.db.ExecContext(ctx, "DELETE FROM libraries WHERE scope = $1 AND package = $2", scope, pkg)
	if err != nil {
		return fmt.Errorf("failed to delete library: %w", err)
	}
	s.l1.invalidateLibrary(id)
	s.l1.invalidateVersionCache(id)
	if s.redisClient != nil {
		s.redisClient.InvalidateLibrary(ctx, id)
		s.redisClient.InvalidateVersionCache(ctx, id)
	}
	return nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, libraryID, tag string) (*catalog.Version, error) {
	query := `
		SELECT library_id, tag, sha, url, preview, status, error_code, error_message, updated_at
		FROM versions
		WHERE library_id = $1 AND tag = $2
	`
	var v catalog.Version
	err := s.replica().QueryRowContext(ctx, query, libraryID, tag).Scan(
		&v.LibraryID, &v.Tag, &v.Sha, &v.URL, &v.Preview, &v.Status, &v.Error.Code, &v.Error.Message, &v.Updated,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("version not found: %s@%s", libraryID, tag)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, libraryID string) ([]*catalog.Version, error) {
	query := `
		SELECT library_id, tag, sha, url, preview, status, error_code, error_message, updated_at
		FROM versions
		WHERE library_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := s.replica().QueryContext(ctx, query, libraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*catalog.Version
	for rows.Next() {
		var v catalog.Version
		if err := rows.Scan(&v.LibraryID, &v.Tag, &v.Sha, &v.URL, &v.Preview, &v.Status, &v.Error.Code, &v.Error.Message, &v.Updated); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, &v)
	}
	return versions, nil
}

func (s *PostgresStore) PutVersion(ctx context.Context, v *catalog.Version) error {
	if v.Updated.IsZero() {
		v.Updated = time.Now()
	}
	query := `
		INSERT INTO versions (library_id, tag, sha, url, preview, status, error_code, error_message, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (library_id, tag) DO UPDATE SET
			sha = EXCLUDED.sha,
			url = EXCLUDED.url,
			preview = EXCLUDED.preview,
			status = EXCLUDED.status,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, v.LibraryID, v.Tag, v.Sha, v.URL, v.Preview, v.Status, v.Error.Code, v.Error.Message, v.Updated)
	if err != nil {
		return fmt.Errorf("failed to put version: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteVersion(ctx context.Context, libraryID, tag string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM versions WHERE library_id = $1 AND tag = $2", libraryID, tag)
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetContent(ctx context.Context, libraryID, tag string, role catalog.ContentRole) (*catalog.Content, error) {
	query := `
		SELECT library_id, tag, role, body_text, body_json, etag, status, error_code, error_message, updated_at
		FROM content
		WHERE library_id = $1 AND tag = $2 AND role = $3
	`
	var c catalog.Content
	err := s.replica().QueryRowContext(ctx, query, libraryID, tag, role).Scan(
		&c.LibraryID, &c.Tag, &c.Role, &c.BodyText, &c.BodyJSON, &c.ETag, &c.Status, &c.Error.Code, &c.Error.Message, &c.Updated,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("content not found: %s/%s/%s", libraryID, tag, role)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) PutContent(ctx context.Context, c *catalog.Content) error {
	if c.Updated.IsZero() {
		c.Updated = time.Now()
	}
	query := `
		INSERT INTO content (library_id, tag, role, body_text, body_json, etag, status, error_code, error_message, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (library_id, tag, role) DO UPDATE SET
			body_text = EXCLUDED.body_text,
			body_json = EXCLUDED.body_json,
			etag = EXCLUDED.etag,
			status = EXCLUDED.status,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, c.LibraryID, c.Tag, c.Role, c.BodyText, c.BodyJSON, c.ETag, c.Status, c.Error.Code, c.Error.Message, c.Updated)
	if err != nil {
		return fmt.Errorf("failed to put content: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAuthor(ctx context.Context, name string) (*catalog.Author, error) {
	query := `SELECT name, metadata, status, error_code, error_message, updated_at FROM authors WHERE name = $1`
	var a catalog.Author
	var metadataJSON []byte
	err := s.replica().QueryRowContext(ctx, query, name).Scan(&a.Name, &metadataJSON, &a.Status, &a.Error.Code, &a.Error.Message, &a.Updated)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("author not found: %s", name)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get author: %w", err)
	}
	_ = json.Unmarshal(metadataJSON, &a.Metadata)
	return &a, nil
}

func (s *PostgresStore) PutAuthor(ctx context.Context, a *catalog.Author) error {
	if a.Updated.IsZero() {
		a.Updated = time.Now()
	}
	metadataJSON, _ := json.Marshal(a.Metadata)
	query := `
		INSERT INTO authors (name, metadata, status, error_code, error_message, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (name) DO UPDATE SET
			metadata = EXCLUDED.metadata,
			status = EXCLUDED.status,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, a.Name, metadataJSON, a.Status, a.Error.Code, a.Error.Message, a.Updated)
	if err != nil {
		return fmt.Errorf("failed to put author: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuthors(ctx context.Context, limit, offset int) ([]*catalog.Author, int64, error) {
	var total int64
	if err := s.replica().QueryRowContext(ctx, "SELECT COUNT(*) FROM authors").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count authors: %w", err)
	}

	rows, err := s.replica().QueryContext(ctx, `
		SELECT name, metadata, status, error_code, error_message, updated_at
		FROM authors
		ORDER BY name
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list authors: %w", err)
	}
	defer rows.Close()

	var authors []*catalog.Author
	for rows.Next() {
		var a catalog.Author
		var metadataJSON []byte
		if err := rows.Scan(&a.Name, &metadataJSON, &a.Status, &a.Error.Code, &a.Error.Message, &a.Updated); err != nil {
			return nil, 0, fmt.Errorf("failed to scan author: %w", err)
		}
		_ = json.Unmarshal(metadataJSON, &a.Metadata)
		authors = append(authors, &a)
	}
	return authors, total, nil
}

func (s *PostgresStore) PutCollectionReference(ctx context.Context, ref *catalog.CollectionReference) error {
	query := `
		INSERT INTO collection_references (member_library_id, collection_scope, collection_package, collection_tag, range)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (member_library_id, collection_scope, collection_package, collection_tag) DO UPDATE SET
			range = EXCLUDED.range
	`
	_, err := s.db.ExecContext(ctx, query, ref.MemberLibraryID, ref.CollectionScope, ref.CollectionPackage, ref.CollectionTag, ref.Range)
	if err != nil {
		return fmt.Errorf("failed to put collection reference: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCollectionReferences(ctx context.Context, memberLibraryID string) ([]*catalog.CollectionReference, error) {
	query := `
		SELECT member_library_id, collection_scope, collection_package, collection_tag, range
		FROM collection_references
		WHERE member_library_id = $1
	`
	rows, err := s.replica().QueryContext(ctx, query, memberLibraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection references: %w", err)
	}
	defer rows.Close()

	var refs []*catalog.CollectionReference
	for rows.Next() {
		var ref catalog.CollectionReference
		if err := rows.Scan(&ref.MemberLibraryID, &ref.CollectionScope, &ref.CollectionPackage, &ref.CollectionTag, &ref.Range); err != nil {
			return nil, fmt.Errorf("failed to scan collection reference: %w", err)
		}
		refs = append(refs, &ref)
	}
	return refs, nil
}

func (s *PostgresStore) DeleteCollectionReferencesForCollection(ctx context.Context, collectionScope, collectionPackage, collectionTag string) error {
	query := `
		DELETE FROM collection_references
		WHERE collection_scope = $1 AND collection_package = $2 AND collection_tag = $3
	`
	_, err := s.db.ExecContext(ctx, query, collectionScope, collectionPackage, collectionTag)
	if err != nil {
		return fmt.Errorf("failed to delete collection references: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVersionCache(ctx context.Context, libraryID string) (*catalog.VersionCache, error) {
	if vc, ok := s.l1.getVersionCache(libraryID); ok {
		return vc, nil
	}
	if s.redisClient != nil {
		if vc, err := s.redisClient.GetVersionCache(ctx, libraryID); err == nil && vc != nil {
			s.l1.putVersionCache(vc)
			return vc, nil
		}
	}

	query := `SELECT library_id, versions FROM version_caches WHERE library_id = $1`
	var vc catalog.VersionCache
	var versionsJSON []byte
	err := s.replica().QueryRowContext(ctx, query, libraryID).Scan(&vc.LibraryID, &versionsJSON)
	if err == sql.ErrNoRows {
		return &catalog.VersionCache{LibraryID: libraryID}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get version cache: %w", err)
	}
	_ = json.Unmarshal(versionsJSON, &vc.Versions)

	s.l1.putVersionCache(&vc)
	if s.redisClient != nil {
		s.redisClient.SetVersionCache(ctx, &vc)
	}
	return &vc, nil
}

// RefreshVersionCacheTx re-scans a library's Version children and its
// previous VersionCache inside a single transaction, recomputes the
// cache via catalog.RefreshVersionCache, and upserts it — a stale read
// that loses a race against a concurrent ingestion is impossible
// because the whole read-compute-write sequence holds the library's
// row lock for its duration.
func (s *PostgresStore) RefreshVersionCacheTx(ctx context.Context, libraryID string) (catalog.VersionCache, bool, error) {
	ctx, span := tracer.Start(ctx, "RefreshVersionCacheTx",
		trace.WithAttributes(attribute.String("library.id", libraryID)),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return catalog.VersionCache{}, false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	scope, pkg := splitLibraryID(libraryID)
	if _, err := tx.ExecContext(ctx, "SELECT scope FROM libraries WHERE scope = $1 AND package = $2 FOR UPDATE", scope, pkg); err != nil {
		span.RecordError(err)
		return catalog.VersionCache{}, false, fmt.Errorf("failed to lock library: %w", err)
	}

	var previous catalog.VersionCache
	var prevJSON []byte
	err = tx.QueryRowContext(ctx, "SELECT versions FROM version_caches WHERE library_id = $1", libraryID).Scan(&prevJSON)
	if err != nil && err != sql.ErrNoRows {
		return catalog.VersionCache{}, false, fmt.Errorf("failed to read previous version cache: %w", err)
	}
	if prevJSON != nil {
		_ = json.Unmarshal(prevJSON, &previous.Versions)
		previous.LibraryID = libraryID
	}

	rows, err := tx.QueryContext(ctx, "SELECT tag, status FROM versions WHERE library_id = $1", libraryID)
	if err != nil {
		return catalog.VersionCache{}, false, fmt.Errorf("failed to scan versions: %w", err)
	}
	var versions []catalog.Version
	for rows.Next() {
		var v catalog.Version
		v.LibraryID = libraryID
		if err := rows.Scan(&v.Tag, &v.Status); err != nil {
			rows.Close()
			return catalog.VersionCache{}, false, fmt.Errorf("failed to scan version row: %w", err)
		}
		versions = append(versions, v)
	}
	rows.Close()

	next, changed := catalog.RefreshVersionCache(libraryID, versions, previous)
	versionsJSON, _ := json.Marshal(next.Versions)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO version_caches (library_id, versions)
		VALUES ($1, $2)
		ON CONFLICT (library_id) DO UPDATE SET versions = EXCLUDED.versions
	`, libraryID, versionsJSON)
	if err != nil {
		return catalog.VersionCache{}, false, fmt.Errorf("failed to upsert version cache: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return catalog.VersionCache{}, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.l1.invalidateVersionCache(libraryID)
	if s.redisClient != nil {
		s.redisClient.InvalidateVersionCache(ctx, libraryID)
	}

	span.SetAttributes(attribute.Bool("version_cache.changed", changed))
	span.SetStatus(codes.Ok, "version cache refreshed")
	return next, changed, nil
}

func (s *PostgresStore) GetSitemap(ctx context.Context, kind catalog.SitemapKind) (*catalog.Sitemap, error) {
	query := `SELECT kind, ids FROM sitemaps WHERE kind = $1`
	var sm catalog.Sitemap
	var idsJSON []byte
	err := s.replica().QueryRowContext(ctx, query, kind).Scan(&sm.Kind, &idsJSON)
	if err == sql.ErrNoRows {
		return &catalog.Sitemap{Kind: kind}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get sitemap: %w", err)
	}
	_ = json.Unmarshal(idsJSON, &sm.IDs)
	return &sm, nil
}

func (s *PostgresStore) PutSitemap(ctx context.Context, sm *catalog.Sitemap) error {
	idsJSON, _ := json.Marshal(sm.IDs)
	query := `
		INSERT INTO sitemaps (kind, ids) VALUES ($1, $2)
		ON CONFLICT (kind) DO UPDATE SET ids = EXCLUDED.ids
	`
	_, err := s.db.ExecContext(ctx, query, sm.Kind, idsJSON)
	if err != nil {
		return fmt.Errorf("failed to put sitemap: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutBlob(ctx context.Context, content []byte, contentType string) (string, error) {
	if s.s3Client == nil {
		return "", fmt.Errorf("s3 client not initialized")
	}
	return s.s3Client.PutObjectWithHash(ctx, content, contentType)
}

func (s *PostgresStore) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	if s.s3Client == nil {
		return nil, fmt.Errorf("s3 client not initialized")
	}
	key := fmt.Sprintf("blobs/sha256/%s/%s", hash[:2], hash[2:])
	reader, err := s.s3Client.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf, nil
}

func (s *PostgresStore) InvalidateCache(ctx context.Context, patterns ...string) error {
	if s.redisClient == nil {
		return nil
	}
	return s.redisClient.InvalidatePatterns(ctx, patterns...)
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres unhealthy: %w", err)
	}
	if s.s3Client != nil {
		if err := s.s3Client.HealthCheck(ctx); err != nil {
			return fmt.Errorf("s3 unhealthy: %w", err)
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}
	return nil
}

// GetConnectionManager returns the connection manager, for health checks
// and graceful shutdown.
func (s *PostgresStore) GetConnectionManager() *ConnectionManager {
	return s.connManager
}

// DB exposes the primary connection for callers that need to run raw
// SQL the Store interface doesn't cover directly (search indexing,
// task outbox, migrations).
func (s *PostgresStore) DB() *sql.DB {
	return s.connManager.Primary()
}

// Redis exposes the Redis client, or nil if the store was configured
// without one. Implements tasks.TokenAdmitter.
func (s *PostgresStore) Redis() *RedisClient {
	return s.redisClient
}

func (s *PostgresStore) Close() error {
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	return s.connManager.Close()
}

func splitLibraryID(id string) (scope, pkg string) {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '/' {
			return id[:i], id[i+1:]
		}
	}
	return "", id
}

// Verify that PostgresStore implements storage.Store at compile time.
var _ storage.Store = (*PostgresStore)(nil)

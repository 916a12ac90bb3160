package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one forward-only schema change, applied in Version order.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the catalog schema in application order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create libraries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS libraries (
					scope VARCHAR(255) NOT NULL,
					package VARCHAR(255) NOT NULL,
					kind VARCHAR(32) NOT NULL,
					status VARCHAR(32) NOT NULL,
					error_code VARCHAR(128) NOT NULL DEFAULT '',
					error_message TEXT NOT NULL DEFAULT '',
					shallow_ingestion BOOLEAN NOT NULL DEFAULT FALSE,
					github_owner VARCHAR(255) NOT NULL DEFAULT '',
					github_repo VARCHAR(255) NOT NULL DEFAULT '',
					spdx_identifier VARCHAR(128) NOT NULL DEFAULT '',
					metadata JSONB NOT NULL DEFAULT '{}',
					contributors JSONB NOT NULL DEFAULT '[]',
					participation JSONB NOT NULL DEFAULT '{}',
					registry_metadata JSONB NOT NULL DEFAULT '{}',
					tags JSONB NOT NULL DEFAULT '[]',
					tag_map JSONB NOT NULL DEFAULT '[]',
					collection_sequence_number BIGINT NOT NULL DEFAULT 0,
					npm_package VARCHAR(255) NOT NULL DEFAULT '',
					migrated_from_bower BOOLEAN NOT NULL DEFAULT FALSE,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (scope, package)
				);

				CREATE INDEX IF NOT EXISTS idx_libraries_kind ON libraries(kind);
				CREATE INDEX IF NOT EXISTS idx_libraries_updated_at ON libraries(updated_at DESC);
			`,
		},
		{
			Version:     2,
			Description: "Create versions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS versions (
					library_id VARCHAR(511) NOT NULL,
					tag VARCHAR(255) NOT NULL,
					sha VARCHAR(64) NOT NULL DEFAULT '',
					url TEXT NOT NULL DEFAULT '',
					preview BOOLEAN NOT NULL DEFAULT FALSE,
					status VARCHAR(32) NOT NULL,
					error_code VARCHAR(128) NOT NULL DEFAULT '',
					error_message TEXT NOT NULL DEFAULT '',
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (library_id, tag)
				);

				CREATE INDEX IF NOT EXISTS idx_versions_library_id ON versions(library_id);
			`,
		},
		{
			Version:     3,
			Description: "Create content table",
			SQL: `
				CREATE TABLE IF NOT EXISTS content (
					library_id VARCHAR(511) NOT NULL,
					tag VARCHAR(255) NOT NULL,
					role VARCHAR(64) NOT NULL,
					body_text TEXT NOT NULL DEFAULT '',
					body_json JSONB,
					etag VARCHAR(128) NOT NULL DEFAULT '',
					status VARCHAR(32) NOT NULL,
					error_code VARCHAR(128) NOT NULL DEFAULT '',
					error_message TEXT NOT NULL DEFAULT '',
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (library_id, tag, role)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create authors table",
			SQL: `
				CREATE TABLE IF NOT EXISTS authors (
					name VARCHAR(255) PRIMARY KEY,
					metadata JSONB NOT NULL DEFAULT '{}',
					status VARCHAR(32) NOT NULL,
					error_code VARCHAR(128) NOT NULL DEFAULT '',
					error_message TEXT NOT NULL DEFAULT '',
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     5,
			Description: "Create collection_references table",
			SQL: `
				CREATE TABLE IF NOT EXISTS collection_references (
					member_library_id VARCHAR(511) NOT NULL,
					collection_scope VARCHAR(255) NOT NULL,
					collection_package VARCHAR(255) NOT NULL,
					collection_tag VARCHAR(255) NOT NULL,
					range VARCHAR(255) NOT NULL DEFAULT '',
					PRIMARY KEY (member_library_id, collection_scope, collection_package, collection_tag)
				);

				CREATE INDEX IF NOT EXISTS idx_collection_references_collection
					ON collection_references(collection_scope, collection_package, collection_tag);
			`,
		},
		{
			Version:     6,
			Description: "Create version_caches table",
			SQL: `
				CREATE TABLE IF NOT EXISTS version_caches (
					library_id VARCHAR(511) PRIMARY KEY,
					versions JSONB NOT NULL DEFAULT '[]'
				);
			`,
		},
		{
			Version:     7,
			Description: "Create sitemaps table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sitemaps (
					kind VARCHAR(32) PRIMARY KEY,
					ids JSONB NOT NULL DEFAULT '[]'
				);
			`,
		},
		{
			Version:     8,
			Description: "Create pending_tasks outbox table",
			SQL: `
				CREATE TABLE IF NOT EXISTS pending_tasks (
					id BIGSERIAL PRIMARY KEY,
					queue_name VARCHAR(64) NOT NULL,
					path TEXT NOT NULL,
					params JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_pending_tasks_created_at ON pending_tasks(created_at);
				CREATE INDEX IF NOT EXISTS idx_pending_tasks_queue_name ON pending_tasks(queue_name);
			`,
		},
		{
			Version:     9,
			Description: "Create search_documents table",
			SQL: `
				CREATE TABLE IF NOT EXISTS search_documents (
					library_id VARCHAR(511) PRIMARY KEY,
					owner VARCHAR(255) NOT NULL DEFAULT '',
					github_owner VARCHAR(255) NOT NULL DEFAULT '',
					repo VARCHAR(255) NOT NULL DEFAULT '',
					kind VARCHAR(32) NOT NULL DEFAULT '',
					version VARCHAR(255) NOT NULL DEFAULT '',
					github_description TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					keywords JSONB NOT NULL DEFAULT '[]',
					prefix_matches TEXT[] NOT NULL DEFAULT '{}',
					element TEXT NOT NULL DEFAULT '',
					behavior TEXT NOT NULL DEFAULT '',
					weighted_fields TEXT NOT NULL DEFAULT '',
					rank DOUBLE PRECISION NOT NULL DEFAULT 0,
					search_vector TSVECTOR
				);

				CREATE INDEX IF NOT EXISTS idx_search_documents_search_vector ON search_documents USING GIN(search_vector);
				CREATE INDEX IF NOT EXISTS idx_search_documents_kind ON search_documents(kind);
				CREATE INDEX IF NOT EXISTS idx_search_documents_owner ON search_documents(owner);
			`,
		},
	}
}

// ApplyMigrations runs every migration not yet recorded in
// schema_migrations, in Version order, each inside its own transaction.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("migrations: creating schema_migrations: %w", err)
	}

	for _, m := range GetMigrations() {
		var applied bool
		if err := db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version).Scan(&applied); err != nil {
			return fmt.Errorf("migrations: checking version %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migrations: beginning version %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrations: applying version %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, description) VALUES ($1, $2)", m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrations: recording version %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrations: committing version %d: %w", m.Version, err)
		}
	}
	return nil
}

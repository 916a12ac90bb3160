// Package storage defines the persistence abstraction for the catalog
// pipeline and provides two backends: FileSystemStore for local
// development and tests, and postgres.PostgresStore (in the postgres
// subpackage) for production, layering Postgres metadata, S3 blobs, a
// Redis read-through cache, and an in-process LRU L1 cache behind the
// same Store interface.
package storage

// Package catalog holds the entity definitions for the ingestion pipeline
// (Library, Version, Content, CollectionReference, Author, VersionCache,
// Sitemap) and the pure, storage-independent invariant logic that the
// rest of the core depends on — identifier composition, status
// transitions, and the VersionCache refresh rule.
package catalog

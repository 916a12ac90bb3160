// Package search builds and serves the catalog's full-text index
// (spec.md §4.8). Indexer.UpdateIndexes rebuilds one library's search
// document from its default version's manifest, registry metadata and
// analysis content; SearchService answers filtered free-text queries
// over the resulting PostgreSQL tsvector column.
//
// # Query syntax
//
// Free text plus key:value filters, same shape as the rest of the
// catalog's task/read surface:
//
//	widgets kind:element
//	paper- owner:PolymerElements version:v1.0.0
//
// Recognized filters: kind (element|collection), owner, version (an
// exact match on the indexed version tag; ranges are not supported).
// Anything else is treated as a plain search term.
package search

package catalog

import "github.com/webcomponents/catalog/pkg/versiontag"

// RefreshVersionCache recomputes a library's VersionCache from the full
// set of its Version children: keep only status=ready versions whose id
// is a valid semantic version, sorted by versiontag.Compare (invariant
//2). It returns the refreshed cache plus whether the default version
// changed relative to previous — the single signal the rest of the core
// uses to decide whether a reindex is needed (§4.2).
//
// Callers are expected to invoke this inside the same datastore
// transaction that holds the ancestor lock on the library, re-scanning
// Version children fresh each time; a stale read is therefore safe to
// discard.
func RefreshVersionCache(libraryID string, versions []Version, previous VersionCache) (VersionCache, bool) {
	prevDefault := previous.DefaultVersion()

	ready := make([]string, 0, len(versions))
	for _, v := range versions {
		if v.Status == StatusReady && versiontag.IsValid(v.Tag) {
			ready = append(ready, v.Tag)
		}
	}
	versiontag.Sort(ready)

	next := VersionCache{LibraryID: libraryID, Versions: ready}
	changed := next.DefaultVersion() != prevDefault
	return next, changed
}

// ToIngestBacklog returns tag_map keys not yet present in the
// VersionCache's version list — invariant 3's "to ingest" backlog.
func ToIngestBacklog(tagMap []TagCommit, cache VersionCache) []string {
	known := make(map[string]bool, len(cache.Versions))
	for _, v := range cache.Versions {
		known[v] = true
	}
	var backlog []string
	for _, tc := range tagMap {
		if !known[tc.Tag] {
			backlog = append(backlog, tc.Tag)
		}
	}
	return backlog
}

// Package sweep implements the periodic fleet-wide passes over the
// whole catalog (spec.md §4.9): refreshing every Library and Author,
// re-requesting analysis, rebuilding every search document, and
// emitting the three Sitemap entities. Each pass pages through Store 50
// entities at a time. The update, analysis and index passes enqueue one
// task per entity onto the bounded update queue, refusing to start while
// the queue hasn't drained from the last pass; the sitemap pass writes
// the Sitemap entities directly and does not check the queue.
package sweep

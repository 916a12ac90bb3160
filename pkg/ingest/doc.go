// Package ingest implements the library ingestor/updater (C5) and the
// version ingestor (C6): the four entry points Ingest, Update,
// IngestWebhook and IngestPreview all share one reconciliation
// procedure that branches on scope between a source-hosted library and
// a registry-sourced one, and IngestVersion drives the matching
// per-version pipeline for whichever upstream a library's tag map came
// from.
package ingest

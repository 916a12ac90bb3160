// Package tasks implements the uniform idempotent task-handler runtime
// (C4): a Shell that admits a request, runs a Handler, and interprets its
// HandlerResult into the right HTTP response and retry behavior, plus a
// Queue abstraction for enqueuing child tasks either transactionally
// (Postgres outbox) or best-effort (in-process worker pool).
package tasks

// Package analysis bridges version ingestion to the external analyzer
// (spec.md §4.7): Publisher dispatches an analysis request for each new
// version, and ReplyHandler accepts the analyzer's asynchronous reply,
// stores it as the version's "analysis" content, and conditionally
// triggers a search reindex.
//
// There is no message-broker client anywhere in the example corpus, so
// the pub/sub contract is realized as a signed HTTP callback using the
// same delivery/retry machinery the catalog uses for outbound webhooks.
package analysis

// Package upstream provides the HTTP adapters to the two ecosystems the
// catalog ingests from: a source-hosting platform (SourceHostClient),
// modeled on GitHub's REST API, and a package registry (RegistryClient),
// modeled on the npm registry, plus a client for fetching registry README
// bodies from an unpkg-style CDN. All three share a conditional-GET
// FetchResult contract and per-call OpenTelemetry tracing.
package upstream

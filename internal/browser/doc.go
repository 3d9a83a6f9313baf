// Package browser implements the fetch/cache/retry core used by the review
// tooling to retrieve HTML pages and JSON API responses from openQA and the
// bug tracker. A Browser resolves every request through the same pipeline:
// in-memory memoization first, then the on-disk fixture store when load mode
// is active, then a live HTTP GET with retry/backoff and TLS diagnostics.
// Successful bodies are optionally persisted for later offline replay and are
// always memoized for the rest of the run. JSON-RPC and REST helpers sit on
// top of the pipeline and translate structured error envelopes into the typed
// failures callers branch on (DownloadError, CacheNotFoundError, RPCError,
// BugNotFoundError).
package browser

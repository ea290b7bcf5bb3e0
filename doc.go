// Package scopeauth manages the authenticated session of an InsiderScope
// dashboard client: it holds the access/refresh token pair, rotates it against
// the backend, and wraps outbound HTTP calls so that expired access tokens are
// refreshed transparently.
//
// The package is designed for concurrent callers: after construction through
// [Builder.Build], every [Client] method is safe to call from multiple
// goroutines. Token rotation is single-flight — any number of requests that
// observe a 401 at the same moment produce exactly one network exchange
// against the rotation endpoint, and all of them resume with the same rotated
// token.
//
// # Architecture boundaries
//
// scopeauth is the only component that writes session state. Consumers (chart
// panels, tables, watchlist code, CLIs) read the current token through the
// façade or, preferably, never touch tokens at all and route their I/O through
// [Client.Do] or a [Transport]-backed http.Client.
//
// # What this package must NOT do
//
//   - Validate token signatures or inspect claims. Tokens are opaque strings
//     issued and verified by the server.
//   - Perform network I/O during construction. [Builder.Build] only hydrates
//     the session from the configured [store.Store].
//   - Abandon an in-flight rotation. A rotation that has started always runs
//     to completion and settles the shared session state, success or failure.
//
// # Failure contract
//
// Ordinary HTTP error statuses are returned to callers as responses, never as
// errors. A rejected rotation (or a transport failure during rotation) clears
// the session — the client treats both identically because it cannot safely
// distinguish a revoked refresh token from a dead server.
package scopeauth

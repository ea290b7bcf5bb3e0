// Package store persists session state across restarts of the consuming
// process. It is deliberately dumb: four opaque string keys, no validation,
// no network awareness. The in-memory session owned by the client stays
// authoritative — a failing backend only costs durability, never correctness.
package store

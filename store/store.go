package store

import "context"

// Canonical session keys. Implementations may namespace them with a prefix
// but must preserve the key names themselves, so that independent consumers
// of the same storage agree on the layout.
const (
	// KeyAccessToken holds the opaque bearer string.
	KeyAccessToken = "access-token"
	// KeyRefreshToken holds the opaque rotation credential.
	KeyRefreshToken = "refresh-token"
	// KeyIssuedAt holds the access-token issuance time as stringified epoch
	// milliseconds.
	KeyIssuedAt = "issued-at"
	// KeyRequiresExtraCredential is "true" when the identity signed in
	// through a method that has not yet set a password; absent otherwise.
	KeyRequiresExtraCredential = "requires-extra-credential"
)

// SessionKeys lists every key the client persists, in clear order.
func SessionKeys() []string {
	return []string{
		KeyAccessToken,
		KeyRefreshToken,
		KeyIssuedAt,
		KeyRequiresExtraCredential,
	}
}

// Store is a durable key-value holder for session state.
//
// Read returns "" for an absent key; absence is not an error. Write and
// Clear report backend failures, which the client swallows: the session
// degrades to in-memory-only for that write.
type Store interface {
	Read(ctx context.Context, key string) (string, error)
	Write(ctx context.Context, key, value string) error
	Clear(ctx context.Context, keys ...string) error
}

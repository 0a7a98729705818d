// Package revocation implements the jti revocation ledger backing token
// invalidation before natural expiry.
//
// Entries are written with a TTL equal to the token's remaining lifetime, so
// the ledger is self-pruning: storage never outlives the tokens it tracks
// and nothing is ever explicitly deleted. Writes and reads are single-key
// Redis operations; no cross-key transaction exists or is needed.
//
// # Failure semantics
//
// The ledger is fail-closed. When Redis is unreachable both Revoke and
// IsRevoked return an error wrapping [ErrUnavailable], and the engine
// rejects the in-flight verification rather than treating the token as
// non-revoked.
package revocation

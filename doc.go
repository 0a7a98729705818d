// Package rbacauth provides the authentication and authorization engine for
// a user-management service: JWT token lifecycle with per-token revocation
// and version-based bulk invalidation, an account lockout state machine with
// lazy unlock, Argon2id password management with history and composition
// policy, and a hierarchical role/permission resolver.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// rbacauth is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Identity, TokenPair, MetricsSnapshot). Persistence is
// injected: principals through [UserStore], the role graph through
// [HierarchySource]. The package never opens a database connection itself;
// store/postgres provides a pgx-backed implementation for callers that want
// one.
//
// # What this package must NOT do
//
//   - Expose Redis clients or store internals in its public API.
//   - Serve HTTP. Transport adapters belong to the caller.
//   - Treat an unreachable revocation ledger as "not revoked". Verification
//     fails closed.
//
// # Performance contract
//
// VerifyAccess is the hot path: one Redis round-trip for the revocation
// check plus one user-store read. Permission checks after verification are
// O(1) against the flattened resolver snapshot and never touch a backend.
package rbacauth

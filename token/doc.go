// Package token implements signed token issuance and structural verification
// for the authentication engine.
//
// Tokens are compact JWTs carrying the subject id, a cryptographically random
// jti, issued-at, expiry, a kind discriminator (access, refresh, reset,
// verification) and the subject's token_version snapshot. The signing
// algorithm is fixed at construction (HS256 by default, Ed25519 optional) and
// is never selectable by the presented token.
//
// # What this package must NOT do
//
//   - Consult the revocation ledger or the user store. [Manager.Parse] checks
//     signature, expiry, and kind only; liveness and version checks belong to
//     the engine.
//   - Expose signing keys in its public API.
package token

// Package password provides the credential primitives of the engine:
// Argon2id hashing in PHC string format with an optional server-side pepper,
// composition-policy validation for password-set operations, and the reuse
// guard that compares a candidate against stored history hashes.
//
// # What this package must NOT do
//
//   - Touch the user store. History hashes are supplied by the caller.
//   - Record attempt outcomes. Verification is a pure comparison; the
//     account-security state machine in the engine owns attempt tracking.
package password

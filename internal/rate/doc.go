// Package rate provides the Redis-backed sliding-window tracker for failed
// authentication attempts.
//
// # Window semantics
//
// Each failure is recorded as a sorted-set member scored by its nanosecond
// timestamp (key prefix "fw:"). Recording trims members older than the
// window and returns the surviving count, so the attempt rate stays bounded
// even when the persistent failure counter resets on a successful login.
//
// # What this package must NOT do
//
//   - Decide lockout policy. The engine compares the returned count against
//     its configured ceiling.
//   - Be imported outside this module.
package rate

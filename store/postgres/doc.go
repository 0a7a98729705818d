// Package postgres provides pgx-backed implementations of the engine's
// persistence boundaries: UserStore for principals and HierarchyStore for
// the role/permission graph.
//
// Expected schema (abridged): a users table with failed_attempts,
// locked_until, token_version and last_password_change_at columns; a
// password_history table; user_roles, roles, role_groups, permissions,
// permission_groups and the four grant join tables. Counter updates use
// single UPDATE ... RETURNING statements so concurrent callers never read a
// stale value.
package postgres

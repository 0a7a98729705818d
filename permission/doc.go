// Package permission models the role-group / permission-group hierarchy and
// flattens it into effective permission sets.
//
// Roles and permissions hang off two independent trees: role groups and
// permission groups, both linked by parent pointers. [NewResolver] walks the
// trees once per hierarchy snapshot and precomputes a flattened permission
// set per role, so membership checks are O(1) map lookups and never touch
// the raw graph per request. Group reparenting is validated on the write
// path with [ValidateReparent]; the resolver additionally guards every
// parent walk with a visited set and fails closed with [ErrInvalidHierarchy]
// if a cycle slipped into stored data.
//
// # What this package must NOT do
//
//   - Read from or write to any store. Hierarchy snapshots are supplied to
//     [NewResolver] fully loaded.
//   - Silently skip unknown references; dangling ids fail resolution.
package permission

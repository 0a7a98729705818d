package permission

import "errors"

var (
	// ErrInvalidHierarchy indicates a cycle or dangling reference in the
	// role-group or permission-group graph.
	ErrInvalidHierarchy = errors.New("invalid role/permission hierarchy")
	// ErrUnknownRole indicates resolution was requested for a role id that
	// is not part of the hierarchy snapshot.
	ErrUnknownRole = errors.New("unknown role")
)

// Permission is a named grant. Every permission belongs to exactly one
// permission group.
type Permission struct {
	ID      string
	Name    string
	GroupID string
}

// PermissionGroup is a node in the permission-group tree. ParentID is empty
// for roots.
type PermissionGroup struct {
	ID       string
	Name     string
	ParentID string
}

// Role carries direct permission grants and optional group-level grants.
// A PermissionGroupID grant implies every permission whose group ancestry
// reaches that group.
type Role struct {
	ID          string
	Name        string
	Description string

	// GroupID places the role in the role-group tree; empty for ungrouped
	// roles.
	GroupID string

	PermissionIDs      []string
	PermissionGroupIDs []string
}

// RoleGroup is a node in the role-group tree. Groups may carry their own
// grants, inherited by member roles and by roles of descendant groups when
// inheritance is enabled.
type RoleGroup struct {
	ID       string
	Name     string
	ParentID string

	PermissionIDs      []string
	PermissionGroupIDs []string
}

// Hierarchy is one immutable snapshot of the full role/permission graph,
// keyed by entity id.
type Hierarchy struct {
	Roles            map[string]Role
	RoleGroups       map[string]RoleGroup
	Permissions      map[string]Permission
	PermissionGroups map[string]PermissionGroup
}

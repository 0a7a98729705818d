package postgres

import (
	"context"
	"fmt"

	rbacauth "github.com/mnaimfaizy/go-rbac-auth"
	"github.com/mnaimfaizy/go-rbac-auth/permission"
)

// HierarchyStore loads the role/permission graph for the resolver. The
// whole graph is read in one pass; the engine snapshots it, so readers
// never see a half-loaded hierarchy.
type HierarchyStore struct {
	db DB
}

var _ rbacauth.HierarchySource = (*HierarchyStore)(nil)

func NewHierarchyStore(db DB) *HierarchyStore {
	return &HierarchyStore{db: db}
}

func (s *HierarchyStore) LoadHierarchy(ctx context.Context) (*permission.Hierarchy, error) {
	h := &permission.Hierarchy{
		Roles:            make(map[string]permission.Role),
		RoleGroups:       make(map[string]permission.RoleGroup),
		Permissions:      make(map[string]permission.Permission),
		PermissionGroups: make(map[string]permission.PermissionGroup),
	}

	if err := s.loadPermissionGroups(ctx, h); err != nil {
		return nil, err
	}
	if err := s.loadPermissions(ctx, h); err != nil {
		return nil, err
	}
	if err := s.loadRoleGroups(ctx, h); err != nil {
		return nil, err
	}
	if err := s.loadRoles(ctx, h); err != nil {
		return nil, err
	}
	if err := s.loadRoleGrants(ctx, h); err != nil {
		return nil, err
	}
	if err := s.loadRoleGroupGrants(ctx, h); err != nil {
		return nil, err
	}

	return h, nil
}

func (s *HierarchyStore) loadPermissionGroups(ctx context.Context, h *permission.Hierarchy) error {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, COALESCE(parent_id, '') FROM permission_groups
	`)
	if err != nil {
		return fmt.Errorf("query permission groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g permission.PermissionGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.ParentID); err != nil {
			return fmt.Errorf("scan permission group: %w", err)
		}
		h.PermissionGroups[g.ID] = g
	}
	return rows.Err()
}

func (s *HierarchyStore) loadPermissions(ctx context.Context, h *permission.Hierarchy) error {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, group_id FROM permissions
	`)
	if err != nil {
		return fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p permission.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.GroupID); err != nil {
			return fmt.Errorf("scan permission: %w", err)
		}
		h.Permissions[p.ID] = p
	}
	return rows.Err()
}

func (s *HierarchyStore) loadRoleGroups(ctx context.Context, h *permission.Hierarchy) error {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, COALESCE(parent_id, '') FROM role_groups
	`)
	if err != nil {
		return fmt.Errorf("query role groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g permission.RoleGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.ParentID); err != nil {
			return fmt.Errorf("scan role group: %w", err)
		}
		h.RoleGroups[g.ID] = g
	}
	return rows.Err()
}

func (s *HierarchyStore) loadRoles(ctx context.Context, h *permission.Hierarchy) error {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), COALESCE(group_id, '') FROM roles
	`)
	if err != nil {
		return fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r permission.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.GroupID); err != nil {
			return fmt.Errorf("scan role: %w", err)
		}
		h.Roles[r.ID] = r
	}
	return rows.Err()
}

// loadRoleGrants attaches direct permission and permission-group grants to
// roles.
func (s *HierarchyStore) loadRoleGrants(ctx context.Context, h *permission.Hierarchy) error {
	rows, err := s.db.Query(ctx, `
		SELECT role_id, permission_id FROM role_permissions
	`)
	if err != nil {
		return fmt.Errorf("query role permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roleID, permID string
		if err := rows.Scan(&roleID, &permID); err != nil {
			return fmt.Errorf("scan role permission: %w", err)
		}
		r, ok := h.Roles[roleID]
		if !ok {
			continue
		}
		r.PermissionIDs = append(r.PermissionIDs, permID)
		h.Roles[roleID] = r
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	rows, err = s.db.Query(ctx, `
		SELECT role_id, permission_group_id FROM role_permission_groups
	`)
	if err != nil {
		return fmt.Errorf("query role permission groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roleID, groupID string
		if err := rows.Scan(&roleID, &groupID); err != nil {
			return fmt.Errorf("scan role permission group: %w", err)
		}
		r, ok := h.Roles[roleID]
		if !ok {
			continue
		}
		r.PermissionGroupIDs = append(r.PermissionGroupIDs, groupID)
		h.Roles[roleID] = r
	}
	return rows.Err()
}

// loadRoleGroupGrants attaches group-level grants, inherited by member
// roles when the resolver runs with inheritance enabled.
func (s *HierarchyStore) loadRoleGroupGrants(ctx context.Context, h *permission.Hierarchy) error {
	rows, err := s.db.Query(ctx, `
		SELECT role_group_id, permission_id FROM role_group_permissions
	`)
	if err != nil {
		return fmt.Errorf("query role group permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID, permID string
		if err := rows.Scan(&groupID, &permID); err != nil {
			return fmt.Errorf("scan role group permission: %w", err)
		}
		g, ok := h.RoleGroups[groupID]
		if !ok {
			continue
		}
		g.PermissionIDs = append(g.PermissionIDs, permID)
		h.RoleGroups[groupID] = g
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	rows, err = s.db.Query(ctx, `
		SELECT role_group_id, permission_group_id FROM role_group_permission_groups
	`)
	if err != nil {
		return fmt.Errorf("query role group permission groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID, permGroupID string
		if err := rows.Scan(&groupID, &permGroupID); err != nil {
			return fmt.Errorf("scan role group permission group: %w", err)
		}
		g, ok := h.RoleGroups[groupID]
		if !ok {
			continue
		}
		g.PermissionGroupIDs = append(g.PermissionGroupIDs, permGroupID)
		h.RoleGroups[groupID] = g
	}
	return rows.Err()
}

// ValidateReparent checks a proposed parent change against the stored tree
// before it is written, rejecting moves that would create a cycle. kind is
// "role_groups" or "permission_groups".
func (s *HierarchyStore) ValidateReparent(ctx context.Context, kind, id, newParentID string) error {
	var table string
	switch kind {
	case "role_groups":
		table = "role_groups"
	case "permission_groups":
		table = "permission_groups"
	default:
		return fmt.Errorf("unknown hierarchy kind %q", kind)
	}

	rows, err := s.db.Query(ctx, `SELECT id, COALESCE(parent_id, '') FROM `+table)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	parents := make(map[string]string)
	for rows.Next() {
		var nodeID, parentID string
		if err := rows.Scan(&nodeID, &parentID); err != nil {
			return fmt.Errorf("scan %s row: %w", table, err)
		}
		parents[nodeID] = parentID
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return permission.ValidateReparent(parents, id, newParentID)
}

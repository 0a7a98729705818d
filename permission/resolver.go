package permission

import (
	"fmt"
	"sort"
)

// Resolver holds the flattened permission index for one hierarchy snapshot.
// Construction does all graph walking; lookups afterwards are map reads and
// safe for concurrent use.
type Resolver struct {
	byRole map[string]map[string]struct{}
}

// NewResolver flattens every role in h into its effective permission name
// set. When inheritGroupGrants is false, role-group membership is treated as
// purely organizational and group-level grants are ignored.
//
// Any cycle in either tree, and any grant referencing an unknown id, fails
// construction with an error matching [ErrInvalidHierarchy].
func NewResolver(h *Hierarchy, inheritGroupGrants bool) (*Resolver, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil hierarchy", ErrInvalidHierarchy)
	}

	// Permission-group grants expand to every permission reachable downward,
	// which is the same as: permission P is granted by group G iff G is on
	// P's ancestry chain. Precompute each permission's ancestor set once.
	permAncestors := make(map[string]map[string]struct{}, len(h.Permissions))
	for id, p := range h.Permissions {
		if p.GroupID == "" {
			return nil, fmt.Errorf("%w: permission %q has no group", ErrInvalidHierarchy, id)
		}
		ancestors, err := permissionGroupChain(h, p.GroupID)
		if err != nil {
			return nil, err
		}
		permAncestors[id] = ancestors
	}

	byRole := make(map[string]map[string]struct{}, len(h.Roles))
	for id, role := range h.Roles {
		set := make(map[string]struct{})

		if err := addGrants(h, set, permAncestors, role.PermissionIDs, role.PermissionGroupIDs); err != nil {
			return nil, fmt.Errorf("role %q: %w", id, err)
		}

		if inheritGroupGrants && role.GroupID != "" {
			chain, err := roleGroupChain(h, role.GroupID)
			if err != nil {
				return nil, fmt.Errorf("role %q: %w", id, err)
			}
			for _, group := range chain {
				if err := addGrants(h, set, permAncestors, group.PermissionIDs, group.PermissionGroupIDs); err != nil {
					return nil, fmt.Errorf("role group %q: %w", group.ID, err)
				}
			}
		}

		byRole[id] = set
	}

	return &Resolver{byRole: byRole}, nil
}

// PermissionsForRoles returns the sorted union of effective permission names
// for the given role ids. Duplicate contributions collapse; resolution is
// idempotent for a fixed snapshot.
func (r *Resolver) PermissionsForRoles(roleIDs ...string) ([]string, error) {
	union := make(map[string]struct{})
	for _, id := range roleIDs {
		set, ok := r.byRole[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, id)
		}
		for name := range set {
			union[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(union))
	for name := range union {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// HasPermission reports whether any of the given roles grants the named
// permission. Unknown roles contribute nothing; authorization checks fail
// closed rather than erroring per request.
func (r *Resolver) HasPermission(roleIDs []string, name string) bool {
	for _, id := range roleIDs {
		if _, ok := r.byRole[id][name]; ok {
			return true
		}
	}
	return false
}

func addGrants(
	h *Hierarchy,
	set map[string]struct{},
	permAncestors map[string]map[string]struct{},
	permissionIDs []string,
	permissionGroupIDs []string,
) error {
	for _, pid := range permissionIDs {
		p, ok := h.Permissions[pid]
		if !ok {
			return fmt.Errorf("%w: permission %q not found", ErrInvalidHierarchy, pid)
		}
		set[p.Name] = struct{}{}
	}

	for _, gid := range permissionGroupIDs {
		if _, ok := h.PermissionGroups[gid]; !ok {
			return fmt.Errorf("%w: permission group %q not found", ErrInvalidHierarchy, gid)
		}
		for pid, ancestors := range permAncestors {
			if _, reachable := ancestors[gid]; reachable {
				set[h.Permissions[pid].Name] = struct{}{}
			}
		}
	}

	return nil
}

// roleGroupChain walks the parent pointers from groupID to the root,
// returning the chain including groupID itself. The visited set is the
// explicit cycle guard: trees are enforced at write time, but stored data
// is never trusted to be acyclic here.
func roleGroupChain(h *Hierarchy, groupID string) ([]RoleGroup, error) {
	var chain []RoleGroup
	visited := make(map[string]struct{})

	for current := groupID; current != ""; {
		if _, seen := visited[current]; seen {
			return nil, fmt.Errorf("%w: role group cycle at %q", ErrInvalidHierarchy, current)
		}
		visited[current] = struct{}{}

		group, ok := h.RoleGroups[current]
		if !ok {
			return nil, fmt.Errorf("%w: role group %q not found", ErrInvalidHierarchy, current)
		}
		chain = append(chain, group)
		current = group.ParentID
	}

	return chain, nil
}

func permissionGroupChain(h *Hierarchy, groupID string) (map[string]struct{}, error) {
	ancestors := make(map[string]struct{})

	for current := groupID; current != ""; {
		if _, seen := ancestors[current]; seen {
			return nil, fmt.Errorf("%w: permission group cycle at %q", ErrInvalidHierarchy, current)
		}
		ancestors[current] = struct{}{}

		group, ok := h.PermissionGroups[current]
		if !ok {
			return nil, fmt.Errorf("%w: permission group %q not found", ErrInvalidHierarchy, current)
		}
		current = group.ParentID
	}

	return ancestors, nil
}

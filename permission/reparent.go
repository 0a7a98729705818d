package permission

import "fmt"

// ValidateReparent checks whether setting id's parent to newParentID keeps
// the group tree acyclic. parents maps every group id to its current parent
// id ("" for roots). The check runs synchronously on the write path, before
// the reparent is committed, so cycles never reach stored data.
//
// Works for role groups and permission groups alike; both trees share the
// parent-pointer shape.
func ValidateReparent(parents map[string]string, id, newParentID string) error {
	if id == "" {
		return fmt.Errorf("%w: empty group id", ErrInvalidHierarchy)
	}
	if newParentID == "" {
		return nil // detaching to root is always safe
	}
	if newParentID == id {
		return fmt.Errorf("%w: group %q cannot be its own parent", ErrInvalidHierarchy, id)
	}
	if _, ok := parents[newParentID]; !ok {
		return fmt.Errorf("%w: parent group %q not found", ErrInvalidHierarchy, newParentID)
	}

	// A cycle forms exactly when id is on newParentID's ancestry chain.
	visited := make(map[string]struct{})
	for current := newParentID; current != ""; {
		if current == id {
			return fmt.Errorf("%w: reparenting %q under %q creates a cycle", ErrInvalidHierarchy, id, newParentID)
		}
		if _, seen := visited[current]; seen {
			return fmt.Errorf("%w: existing cycle at %q", ErrInvalidHierarchy, current)
		}
		visited[current] = struct{}{}
		current = parents[current]
	}

	return nil
}

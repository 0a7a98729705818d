package password

// IsReused reports whether candidate matches any of the supplied history
// hashes, using the same peppered constant-time comparison as
// [Hasher.Verify]. The caller supplies the last N hashes, newest first;
// undecodable history entries are skipped rather than failing the check,
// since a corrupt historical hash must not block a password change.
func IsReused(h *Hasher, candidate string, historyHashes []string) (bool, error) {
	for _, stored := range historyHashes {
		match, err := h.Verify(candidate, stored)
		if err != nil {
			continue
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

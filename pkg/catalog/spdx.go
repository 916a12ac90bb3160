package catalog

import "strings"

// SPDXAllowlist is a set of license identifiers a Library is permitted
// to carry before it can reach status=ready (invariant 1). The set is
// owned by pkg/config, which reloads it from disk on change.
type SPDXAllowlist map[string]bool

// DefaultSPDXAllowlist is the closed set of licenses the catalog accepts
// out of the box; pkg/config may replace this with a file-backed,
// hot-reloaded list.
func DefaultSPDXAllowlist() SPDXAllowlist {
	ids := []string{
		"MIT", "Apache-2.0", "BSD-2-Clause", "BSD-3-Clause", "ISC",
		"MPL-2.0", "LGPL-2.1-only", "LGPL-3.0-only", "GPL-2.0-only",
		"GPL-3.0-only", "Unlicense", "CC0-1.0", "WTFPL", "0BSD",
	}
	allow := make(SPDXAllowlist, len(ids))
	for _, id := range ids {
		allow[id] = true
	}
	return allow
}

// Validate reports whether identifier is on the allowlist. Matching is
// case-sensitive per the SPDX license list convention; callers should
// not lower-case identifiers before calling this (unlike library ids).
func (a SPDXAllowlist) Validate(identifier string) bool {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return false
	}
	return a[identifier]
}

// Package identity turns bearer credentials into callers. The Firebase
// verifier backs production; the HS256 JWT verifier backs local development
// and tests.
package identity

import "slices"

// Caller is an authenticated principal.
type Caller struct {
	ID      string   `json:"id"`
	Contact string   `json:"contact"`
	Roles   []string `json:"roles,omitempty"`
}

// HasRole reports whether the caller carries role.
func (c *Caller) HasRole(role string) bool {
	if c == nil || role == "" {
		return false
	}
	return slices.Contains(c.Roles, role)
}

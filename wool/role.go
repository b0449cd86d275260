// Package wool defines participants: personas, roles and actor specifications.
// Wool is the raw material that becomes actors - defining WHO takes part.
package wool

import "strings"

// Role defines the purpose of an actor, which decides its prompt structure.
type Role string

const (
	// RoleUser takes part in a discussion and is prompted to post as itself.
	RoleUser Role = "user"

	// RoleAnnotator labels an existing transcript one message at a time.
	RoleAnnotator Role = "annotator"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if this is a valid role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAnnotator:
		return true
	default:
		return false
	}
}

// ParseRole accepts the role in any letter case.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// PostsAsSelf returns true if the actor's prompt cues it to post under its own name.
func (r Role) PostsAsSelf() bool {
	return r == RoleUser
}

// Description returns a human-readable description of the role.
func (r Role) Description() string {
	switch r {
	case RoleUser:
		return "Discussion participant, posts under its own name"
	case RoleAnnotator:
		return "Labels each message of an existing discussion"
	default:
		return "Unknown role"
	}
}

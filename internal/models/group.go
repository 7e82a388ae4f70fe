package models

// Group represents a set of members who split expenses together.
// A group has at most one active Event at a time.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string `json:"id"`

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string `json:"name"`

	// Admin is the username of the group's administrator.
	Admin string `json:"admin"`

	// Members is the ordered list of member usernames. Usernames are
	// unique within a group.
	Members []string `json:"members"`

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64 `json:"created_at"`
}

// HasMember reports whether username is a member of the group.
func (g *Group) HasMember(username string) bool {
	for _, m := range g.Members {
		if m == username {
			return true
		}
	}
	return false
}

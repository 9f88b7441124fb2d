package domain

// DefaultRoleName is the role every new signup is assigned. It must be
// seeded before the first registration can succeed.
const DefaultRoleName = "ROLE_USER"

// Role is a named permission group. Roles are reference data: the
// service reads them but never creates or mutates them.
type Role struct {
	Name   string
	Scopes []string
}

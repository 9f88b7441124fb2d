package auth

import "github.com/spec-kit/auth-service/internal/domain"

// Claims is the permission payload embedded in issued tokens. Built
// fresh for every issuance, never persisted.
type Claims struct {
	UID    string   `json:"uid,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// DeriveClaims assembles token claims from a user's current role
// assignments: the role names plus the deduplicated union of their
// scopes. Users without roles get only the uid claim.
func DeriveClaims(user *domain.User) Claims {
	claims := Claims{UID: user.ID}
	if len(user.Roles) == 0 {
		return claims
	}

	roles := make([]string, 0, len(user.Roles))
	seen := make(map[string]struct{})
	var scopes []string
	for _, role := range user.Roles {
		roles = append(roles, role.Name)
		for _, scope := range role.Scopes {
			if _, dup := seen[scope]; dup {
				continue
			}
			seen[scope] = struct{}{}
			scopes = append(scopes, scope)
		}
	}

	claims.Roles = roles
	claims.Scopes = scopes
	return claims
}

// HasScope reports whether the claims grant the given scope.
func (c Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

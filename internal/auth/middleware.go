package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/pkg/util"
)

const (
	principalKey = "auth_principal"
	userKey      = "auth_user"
)

// Middleware validates bearer access tokens and loads the account they
// assert.
type Middleware struct {
	tokens *TokenProvider
	users  repository.UserRepository
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenProvider, users repository.UserRepository) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return util.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], TokenType) {
		return util.NewUnauthorized("invalid authorization header")
	}

	if !m.tokens.Validate(parts[1]) {
		return util.NewUnauthorized("invalid or expired token")
	}
	principal, err := m.tokens.Parse(parts[1])
	if err != nil {
		return util.NewUnauthorized("invalid or expired token")
	}

	user, err := m.users.GetByUsername(c.Context(), principal.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return util.NewUnauthorized("user not found")
		}
		return util.ToDomainError(err)
	}

	c.Locals(principalKey, principal)
	c.Locals(userKey, user)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated token principal.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	principal, ok := c.Locals(principalKey).(*Principal)
	return principal, ok
}

// UserFromContext retrieves the authenticated user record.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	user, ok := c.Locals(userKey).(*domain.User)
	return user, ok
}

// RequireScope ensures the caller's token grants the given scope.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return util.NewUnauthorized("authentication required")
		}
		if !principal.Claims.HasScope(scope) {
			return util.NewForbidden("insufficient scope")
		}
		return c.Next()
	}
}

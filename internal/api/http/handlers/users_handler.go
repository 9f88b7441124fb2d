package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/pkg/util"
)

// UsersHandler exposes endpoints about the authenticated caller.
type UsersHandler struct{}

// NewUsersHandler constructs handler.
func NewUsersHandler() *UsersHandler {
	return &UsersHandler{}
}

// Me handles GET /api/users/me. Identity comes from the validated
// access token; roles and scopes reflect the user's current store
// state loaded by the middleware.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}

	claims := auth.DeriveClaims(user)
	return c.JSON(dto.MeResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Roles:    claims.Roles,
		Scopes:   claims.Scopes,
	})
}

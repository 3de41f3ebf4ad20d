package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-escalation/internal/domain"
	apperrors "github.com/spec-kit/issue-escalation/pkg/util/errorutil"
)

// AdminRoles may act on any ticket.
var AdminRoles = []domain.Role{domain.RoleSubAdmin, domain.RoleCentralAdmin}

// RequireRole ensures the principal has one of the allowed roles. With no
// roles listed any authenticated entry passes.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role()]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// IsAdmin reports whether role may act on tickets it does not own.
func IsAdmin(role domain.Role) bool {
	return role == domain.RoleSubAdmin || role == domain.RoleCentralAdmin
}

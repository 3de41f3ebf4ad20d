package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/issue-escalation/internal/domain"
	apperrors "github.com/spec-kit/issue-escalation/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated directory entry.
type Principal struct {
	Entry *domain.DirectoryEntry
}

// Role returns the caller's role.
func (p *Principal) Role() domain.Role {
	if p == nil || p.Entry == nil {
		return ""
	}
	return p.Entry.Role
}

// EntryLoader fetches a directory entry by id.
type EntryLoader interface {
	GetByID(ctx context.Context, id string) (*domain.DirectoryEntry, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens    *TokenManager
	directory EntryLoader
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, directory EntryLoader) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, directory: directory}
}

// Handle enforces authentication for protected routes. The role is taken from
// the directory, not the token, so demotions apply immediately.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	entry, err := m.directory.GetByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("directory entry not found")
		}
		return apperrors.MapError(err)
	}
	if !entry.Active {
		return apperrors.NewUnauthorized("directory entry inactive")
	}

	c.Locals(principalKey, &Principal{Entry: entry})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal.Entry != nil
}

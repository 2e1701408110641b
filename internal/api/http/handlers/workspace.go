package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/workspace"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// acquireWorkspace returns the caller's workspace, opening it on first use.
func acquireWorkspace(c *fiber.Ctx, registry *workspace.Registry) (*auth.Principal, *workspace.Workspace, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, nil, apperrors.NewUnauthorized("authentication required")
	}
	w, err := registry.Acquire(c.UserContext(), principal.Identity, principal.Token)
	if err != nil {
		return nil, nil, err
	}
	return principal, w, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

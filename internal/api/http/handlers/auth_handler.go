package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/session"
	"github.com/spec-kit/workflow-service/internal/workspace"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// AuthHandler exposes sign-in and sign-out.
type AuthHandler struct {
	provider *auth.Provider
	registry *workspace.Registry
	logger   *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(provider *auth.Provider, registry *workspace.Registry, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{provider: provider, registry: registry, logger: logger}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	identity, tok, err := session.New(h.provider, h.logger).SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"identity": identity,
			"auth":     dto.AuthResponse{Token: tok.Value, ExpiresAt: tok.ExpiresAt},
		},
	})
}

// Logout handles POST /auth/logout. The caller's workspace is signed out and
// closed; the presented token is revoked even when no workspace was open.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	h.registry.Release(c.UserContext(), principal.Identity.ID)
	if err := h.provider.Revoke(c.UserContext(), principal.Token); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": principal.Identity})
}

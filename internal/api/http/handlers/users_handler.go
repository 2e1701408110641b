package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/workspace"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// UsersHandler manages accounts.
type UsersHandler struct {
	provider *auth.Provider
	registry *workspace.Registry
}

// NewUsersHandler constructs handler.
func NewUsersHandler(provider *auth.Provider, registry *workspace.Registry) *UsersHandler {
	return &UsersHandler{provider: provider, registry: registry}
}

// Create handles POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.SignUpRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.provider.SignUp(c.UserContext(), auth.SignUpInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		Department: req.Department,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(*user)})
}

// SetActive handles PATCH /users/:id/active.
func (h *UsersHandler) SetActive(c *fiber.Ctx) error {
	var req dto.SetActiveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Active == nil {
		return apperrors.NewValidationError("active required", map[string]any{"active": "required"})
	}

	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	if err := w.Gateway().SetUserActive(c.UserContext(), c.Params("id"), *req.Active); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/mutation"
	"github.com/spec-kit/workflow-service/internal/workspace"
)

// RequestsHandler exposes organizational request writes.
type RequestsHandler struct {
	registry *workspace.Registry
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(registry *workspace.Registry) *RequestsHandler {
	return &RequestsHandler{registry: registry}
}

// Create handles POST /requests.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateRequestRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}

	id, err := w.Gateway().CreateRequest(c.UserContext(), mutation.NewRequest{
		Title:   req.Title,
		Type:    req.Type,
		Details: req.Details,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.CreatedResponse{ID: id}})
}

// Decide handles POST /requests/:id/decision.
func (h *RequestsHandler) Decide(c *fiber.Ctx) error {
	var req dto.DecisionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	if err := w.Gateway().DecideRequest(c.UserContext(), c.Params("id"), req.Decision, req.Observations); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Reassign handles POST /requests/:id/reassign.
func (h *RequestsHandler) Reassign(c *fiber.Ctx) error {
	var req dto.ReassignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	if err := w.Gateway().ReassignRequest(c.UserContext(), c.Params("id"), req.UserID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

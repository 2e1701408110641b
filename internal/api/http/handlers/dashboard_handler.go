package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/dashboard"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/workspace"
)

// DashboardHandler renders the role-specific dashboard.
type DashboardHandler struct {
	registry *workspace.Registry
	clock    func() time.Time
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(registry *workspace.Registry, clock func() time.Time) *DashboardHandler {
	if clock == nil {
		clock = time.Now
	}
	return &DashboardHandler{registry: registry, clock: clock}
}

// Get handles GET /dashboard. Query filters override the workspace's current
// selection for this response only.
func (h *DashboardHandler) Get(c *fiber.Ctx) error {
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}

	current := w.View()
	filters := current.Filters
	overridden := false
	for key, dst := range map[string]*string{
		"status":   &filters.Status,
		"priority": &filters.Priority,
		"assignee": &filters.Assignee,
		"q":        &filters.Keyword,
	} {
		if v := c.Query(key); v != "" {
			*dst = v
			overridden = true
		}
	}

	view := current
	if overridden {
		view = dashboard.Build(w.Identity(), w.Snapshot(), filters, domain.DateOf(h.clock()))
	}
	return c.JSON(fiber.Map{"data": dto.NewViewResponse(view)})
}

// SetFilters handles PUT /dashboard/filters and changes the selection pushed
// to live connections.
func (h *DashboardHandler) SetFilters(c *fiber.Ctx) error {
	var filters dashboard.Filters
	if err := parseBody(c, &filters); err != nil {
		return err
	}
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	if err := w.SetFilters(c.UserContext(), filters); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

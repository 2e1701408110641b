package handlers

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/mutation"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/workspace"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// TasksHandler exposes task writes.
type TasksHandler struct {
	registry *workspace.Registry
}

// NewTasksHandler constructs handler.
func NewTasksHandler(registry *workspace.Registry) *TasksHandler {
	return &TasksHandler{registry: registry}
}

// Create handles POST /tasks.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}

	id, err := w.Gateway().CreateTask(c.UserContext(), mutation.NewTask{
		Title:        req.Title,
		Description:  req.Description,
		AssignedToID: req.AssignedToID,
		Deadline:     req.Deadline,
		Priority:     req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.CreatedResponse{ID: id}})
}

// Get handles GET /tasks/:id from the caller's snapshot.
func (h *TasksHandler) Get(c *fiber.Ctx) error {
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	task, ok := w.Snapshot().Task(c.Params("id"))
	if !ok {
		return apperrors.NewNotFound("task", map[string]any{"id": c.Params("id")})
	}
	if identity := w.Identity(); identity.Role == domain.RoleEmployee && task.AssignedToID != identity.ID {
		return apperrors.NewForbidden("task is assigned to someone else")
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task, w.View().Names)})
}

// Update handles PATCH /tasks/:id.
func (h *TasksHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateTaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	patch := repository.TaskPatch{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		AssignedToID: req.AssignedToID,
	}
	if req.Deadline != nil {
		deadline, err := domain.ParseDate(strings.TrimSpace(*req.Deadline))
		if err != nil {
			return apperrors.NewValidationError("invalid deadline", map[string]any{"deadline": "expected YYYY-MM-DD"})
		}
		patch.Deadline = &deadline
	}

	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	if err := w.Gateway().UpdateTask(c.UserContext(), c.Params("id"), patch); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Move handles POST /tasks/:id/move.
func (h *TasksHandler) Move(c *fiber.Ctx) error {
	var req dto.MoveTaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	if err := w.Gateway().MoveTask(c.UserContext(), c.Params("id"), req.Status); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Complete handles POST /tasks/:id/complete. The body is multipart with a
// report field and an optional attachment file, or JSON {"report": "..."}.
func (h *TasksHandler) Complete(c *fiber.Ctx) error {
	var (
		report     string
		attachment *mutation.Attachment
	)
	if form, err := c.MultipartForm(); err == nil {
		if values := form.Value["report"]; len(values) > 0 {
			report = values[0]
		}
		if files := form.File["attachment"]; len(files) > 0 {
			file, err := openUpload(files[0])
			if err != nil {
				return err
			}
			defer file.Close()
			attachment = &mutation.Attachment{Filename: files[0].Filename, Content: file}
		}
	} else {
		var req struct {
			Report string `json:"report"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}
		report = req.Report
	}

	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	if err := w.Gateway().CompleteTask(c.UserContext(), c.Params("id"), report, attachment); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func openUpload(header *multipart.FileHeader) (multipart.File, error) {
	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("unreadable attachment", map[string]any{"attachment": err.Error()})
	}
	return file, nil
}

// Delete handles DELETE /tasks/:id.
func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	if err := w.Gateway().DeleteTask(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddComment handles POST /tasks/:id/comments.
func (h *TasksHandler) AddComment(c *fiber.Ctx) error {
	var req dto.TextRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	if err := w.Gateway().AddComment(c.UserContext(), c.Params("id"), req.Text); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddSubtask handles POST /tasks/:id/subtasks.
func (h *TasksHandler) AddSubtask(c *fiber.Ctx) error {
	var req dto.TextRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	if err := w.Gateway().AddSubtask(c.UserContext(), c.Params("id"), req.Text); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleSubtask handles POST /tasks/:id/subtasks/:index/toggle.
func (h *TasksHandler) ToggleSubtask(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return apperrors.NewValidationError("invalid subtask index", map[string]any{"index": c.Params("index")})
	}
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	if err := w.Gateway().ToggleSubtask(c.UserContext(), c.Params("id"), index); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}


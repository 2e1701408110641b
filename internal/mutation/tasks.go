package mutation

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/storage"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// NewTask carries the fields of a task creation. Deadline is an ISO date.
type NewTask struct {
	Title        string
	Description  string
	AssignedToID string
	Deadline     string
	Priority     domain.TaskPriority
}

// Attachment is an optional file handed in on completion.
type Attachment struct {
	Filename string
	Content  io.Reader
}

// CreateTask validates and inserts a task in the Admin's department. Status
// starts at TODO with empty comments and subtasks.
func (g *Gateway) CreateTask(ctx context.Context, in NewTask) (string, error) {
	identity, err := g.identity()
	if err != nil {
		return "", err
	}
	if identity.Role != domain.RoleAdmin {
		return "", apperrors.NewForbidden("only admins create tasks")
	}

	details := map[string]any{}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		details["title"] = "required"
	}
	if strings.TrimSpace(in.AssignedToID) == "" {
		details["assigned_to_id"] = "required"
	}
	if in.Priority == "" {
		details["priority"] = "required"
	} else if !in.Priority.Valid() {
		details["priority"] = "unknown priority"
	}
	deadline, deadlineErr := domain.ParseDate(strings.TrimSpace(in.Deadline))
	switch {
	case strings.TrimSpace(in.Deadline) == "":
		details["deadline"] = "required"
	case deadlineErr != nil:
		details["deadline"] = "must be YYYY-MM-DD"
	case deadline.Before(g.today()):
		details["deadline"] = "cannot be in the past"
	}
	if len(details) > 0 {
		return "", apperrors.NewValidationError("invalid task", details)
	}

	assignee, err := g.assignee(ctx, in.AssignedToID, identity.DepartmentName())
	if err != nil {
		return "", err
	}

	task := &domain.Task{
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Status:       domain.TaskStatusTodo,
		Priority:     in.Priority,
		AssignedToID: assignee.ID,
		CreatorID:    identity.ID,
		Department:   identity.DepartmentName(),
		Deadline:     deadline,
		Comments:     []domain.Comment{},
		Subtasks:     []domain.Subtask{},
	}
	if err := g.commit(ctx, "task.create", domain.CollectionTasks, func(ctx context.Context) error {
		task.ID = ""
		return g.tasks.Create(ctx, task)
	}); err != nil {
		return "", err
	}

	g.publish(ctx, events.New(events.EventTaskCreated, task.ID, events.ActorOf(identity), taskPayload(*task)))
	return task.ID, nil
}

// UpdateTask merges the supplied fields. Field values are not validated, but
// only Admins edit anything besides the status, and a new assignee must be an
// active member of the task's department.
func (g *Gateway) UpdateTask(ctx context.Context, id string, patch repository.TaskPatch) error {
	identity, err := g.identity()
	if err != nil {
		return err
	}
	if patch.Empty() {
		return apperrors.NewValidationError("nothing to update", nil)
	}
	if identity.Role != domain.RoleAdmin && !statusOnly(patch) {
		return apperrors.NewForbidden("only admins edit task fields")
	}
	before, err := g.loadTask(ctx, identity, id)
	if err != nil {
		return err
	}
	if patch.AssignedToID != nil && *patch.AssignedToID != before.AssignedToID {
		assignee, err := g.assignee(ctx, *patch.AssignedToID, before.Department)
		if err != nil {
			return err
		}
		patch.AssignedToID = &assignee.ID
	}
	return g.patchTask(ctx, identity, *before, patch, "task.update")
}

func statusOnly(patch repository.TaskPatch) bool {
	return patch.Status != nil && patch == repository.TaskPatch{Status: patch.Status}
}

// assignee loads userID and checks it may hold tasks of department.
func (g *Gateway) assignee(ctx context.Context, userID, department string) (*domain.User, error) {
	var user *domain.User
	if err := g.do(ctx, "task.assignee", func(ctx context.Context) error {
		var err error
		user, err = g.users.GetByID(ctx, userID)
		return err
	}); err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.NewValidationError("invalid task", map[string]any{"assigned_to_id": "unknown user"})
		}
		return nil, err
	}
	if !user.Active || !user.InDepartment(department) {
		return nil, apperrors.NewValidationError("invalid task", map[string]any{"assigned_to_id": "not an active member of the department"})
	}
	return user, nil
}

// MoveTask sets the status of a task, as done by dragging a kanban card.
func (g *Gateway) MoveTask(ctx context.Context, id string, status domain.TaskStatus) error {
	identity, err := g.identity()
	if err != nil {
		return err
	}
	if !status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": string(status)})
	}
	before, err := g.loadTask(ctx, identity, id)
	if err != nil {
		return err
	}
	return g.patchTask(ctx, identity, *before, repository.TaskPatch{Status: &status}, "task.move")
}

// CompleteTask marks a task DONE with a report and an optional attachment.
// Calling it again overwrites the previous report and attachment.
func (g *Gateway) CompleteTask(ctx context.Context, id, report string, attachment *Attachment) error {
	identity, err := g.identity()
	if err != nil {
		return err
	}
	report = strings.TrimSpace(report)
	if report == "" {
		return apperrors.NewValidationError("report is required", map[string]any{"report": "required"})
	}
	before, err := g.loadTask(ctx, identity, id)
	if err != nil {
		return err
	}

	done := domain.TaskStatusDone
	patch := repository.TaskPatch{
		Status:     &done,
		Report:     repository.Value(report),
		Attachment: repository.Null[string](),
	}
	if attachment != nil && attachment.Content != nil {
		name := path.Base(filepath.ToSlash(attachment.Filename))
		if name == "." || name == "/" || name == "" {
			return apperrors.NewValidationError("attachment needs a file name", nil)
		}
		if g.uploader == nil {
			return apperrors.NewBackendError(errors.New("attachments are not configured"))
		}
		key := storage.AttachmentKey(id, name)
		url, err := g.uploader.Upload(ctx, key, attachment.Content)
		if err != nil {
			return apperrors.NewBackendError(err)
		}
		g.logger.Info("attachment uploaded", zap.String("task_id", id), zap.String("url", url))
		patch.Attachment = repository.Value(name)
	}
	return g.patchTask(ctx, identity, *before, patch, "task.complete")
}

// DeleteTask removes a task of the Admin's department.
func (g *Gateway) DeleteTask(ctx context.Context, id string) error {
	identity, err := g.identity()
	if err != nil {
		return err
	}
	if identity.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("only admins delete tasks")
	}
	task, err := g.loadTask(ctx, identity, id)
	if err != nil {
		return err
	}
	if err := g.commit(ctx, "task.delete", domain.CollectionTasks, func(ctx context.Context) error {
		return g.tasks.Delete(ctx, id)
	}); err != nil {
		return err
	}
	g.publish(ctx, events.New(events.EventTaskDeleted, id, events.ActorOf(identity),
		events.TaskDeletedPayload{CalendarEventID: task.CalendarEventID()}))
	return nil
}

// AddComment appends a comment authored by the signed-in identity.
func (g *Gateway) AddComment(ctx context.Context, id, text string) error {
	identity, err := g.identity()
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return apperrors.NewValidationError("comment is empty", map[string]any{"text": "required"})
	}
	task, err := g.loadTask(ctx, identity, id)
	if err != nil {
		return err
	}

	highlighted, mentioned := HighlightMentions(text, g.snapshot.Users())
	comment := domain.Comment{
		AuthorID:   identity.ID,
		AuthorName: identity.Name,
		Role:       identity.Role,
		Text:       highlighted,
		Timestamp:  g.clock().UTC(),
	}

	write := func(ctx context.Context) error { return g.tasks.AppendComment(ctx, id, comment) }
	if !g.atomicAppend {
		current, err := g.snapshotTask(id)
		if err != nil {
			return err
		}
		comments := append(current.Comments, comment)
		write = func(ctx context.Context) error {
			return g.tasks.Patch(ctx, id, repository.TaskPatch{Comments: &comments})
		}
	}
	if err := g.commit(ctx, "task.comment", domain.CollectionTasks, write); err != nil {
		return err
	}

	actor := events.ActorOf(identity)
	g.publish(ctx, events.New(events.EventCommentAdded, id, actor,
		events.CommentAddedPayload{AuthorName: identity.Name, BodyPreview: preview(text)}))
	for _, m := range mentioned {
		g.publish(ctx, events.New(events.EventMentioned, id, actor,
			events.MentionedPayload{UserID: m.UserID, Handle: m.Handle, TaskTitle: task.Title}))
	}
	return nil
}

// AddSubtask appends an open checklist item.
func (g *Gateway) AddSubtask(ctx context.Context, id, text string) error {
	identity, err := g.identity()
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return apperrors.NewValidationError("subtask is empty", map[string]any{"text": "required"})
	}
	if _, err := g.loadTask(ctx, identity, id); err != nil {
		return err
	}

	subtask := domain.Subtask{Text: text}
	write := func(ctx context.Context) error { return g.tasks.AppendSubtask(ctx, id, subtask) }
	if !g.atomicAppend {
		current, err := g.snapshotTask(id)
		if err != nil {
			return err
		}
		subtasks := append(current.Subtasks, subtask)
		write = func(ctx context.Context) error {
			return g.tasks.Patch(ctx, id, repository.TaskPatch{Subtasks: &subtasks})
		}
	}
	return g.commit(ctx, "task.subtask.add", domain.CollectionTasks, write)
}

// ToggleSubtask flips the done flag of the subtask at index.
func (g *Gateway) ToggleSubtask(ctx context.Context, id string, index int) error {
	identity, err := g.identity()
	if err != nil {
		return err
	}
	if _, err := g.loadTask(ctx, identity, id); err != nil {
		return err
	}

	write := func(ctx context.Context) error { return g.tasks.ToggleSubtask(ctx, id, index) }
	if !g.atomicAppend {
		current, err := g.snapshotTask(id)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(current.Subtasks) {
			return mapRepoError(repository.ErrSubtaskIndex)
		}
		subtasks := current.Subtasks
		subtasks[index].Done = !subtasks[index].Done
		write = func(ctx context.Context) error {
			return g.tasks.Patch(ctx, id, repository.TaskPatch{Subtasks: &subtasks})
		}
	}
	return g.commit(ctx, "task.subtask.toggle", domain.CollectionTasks, write)
}

func (g *Gateway) patchTask(ctx context.Context, identity domain.Identity, before domain.Task, patch repository.TaskPatch, op string) error {
	if err := g.commit(ctx, op, domain.CollectionTasks, func(ctx context.Context) error {
		return g.tasks.Patch(ctx, before.ID, patch)
	}); err != nil {
		return err
	}

	after := before.Clone()
	patch.Apply(&after)
	actor := events.ActorOf(identity)
	g.publish(ctx, events.New(events.EventTaskUpdated, after.ID, actor, taskPayload(after)))
	if after.Status != before.Status {
		g.publish(ctx, events.New(events.EventTaskStatusChanged, after.ID, actor,
			events.TaskStatusChangedPayload{OldStatus: before.Status, NewStatus: after.Status}))
	}
	return nil
}

// loadTask reads a task and checks the identity may act on it. Tasks outside
// the identity's department are reported as missing.
func (g *Gateway) loadTask(ctx context.Context, identity domain.Identity, id string) (*domain.Task, error) {
	var task *domain.Task
	if err := g.do(ctx, "task.get", func(ctx context.Context) error {
		var err error
		task, err = g.tasks.GetByID(ctx, id)
		return err
	}); err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.NewNotFound("task", map[string]any{"id": id})
		}
		return nil, err
	}
	if identity.Scoped() && task.Department != identity.DepartmentName() {
		return nil, apperrors.NewNotFound("task", map[string]any{"id": id})
	}
	if identity.Role == domain.RoleEmployee && task.AssignedToID != identity.ID {
		return nil, apperrors.NewForbidden("task is assigned to someone else")
	}
	return task, nil
}

// snapshotTask reads the task as last delivered to this workspace.
func (g *Gateway) snapshotTask(id string) (domain.Task, error) {
	task, ok := g.snapshot.Task(id)
	if !ok {
		return domain.Task{}, apperrors.NewNotFound("task", map[string]any{"id": id})
	}
	return task, nil
}

func taskPayload(t domain.Task) events.TaskPayload {
	return events.TaskPayload{
		Title:        t.Title,
		Department:   t.Department,
		AssignedToID: t.AssignedToID,
		Deadline:     t.Deadline,
	}
}

func preview(text string) string {
	const max = 80
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}

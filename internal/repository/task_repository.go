package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// TaskFilter scopes task listings. A nil Department lists every department.
type TaskFilter struct {
	Department *string
}

// TaskPatch carries the fields supplied to a merge-write. Nil fields are left
// untouched.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *domain.TaskStatus
	Priority     *domain.TaskPriority
	AssignedToID *string
	Deadline     *time.Time
	Comments     *[]domain.Comment
	Subtasks     *[]domain.Subtask
	Report       Nullable[string]
	Attachment   Nullable[string]
}

// Empty reports whether the patch writes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.AssignedToID == nil && p.Deadline == nil && p.Comments == nil && p.Subtasks == nil &&
		!p.Report.Set && !p.Attachment.Set
}

// Apply merges the patch into t.
func (p TaskPatch) Apply(t *domain.Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.AssignedToID != nil {
		t.AssignedToID = *p.AssignedToID
	}
	if p.Deadline != nil {
		t.Deadline = domain.DateOf(*p.Deadline)
	}
	if p.Comments != nil {
		t.Comments = make([]domain.Comment, len(*p.Comments))
		copy(t.Comments, *p.Comments)
	}
	if p.Subtasks != nil {
		t.Subtasks = make([]domain.Subtask, len(*p.Subtasks))
		copy(t.Subtasks, *p.Subtasks)
	}
	if p.Report.Set {
		t.Report = p.Report.Value
	}
	if p.Attachment.Set {
		t.Attachment = p.Attachment.Value
	}
}

// TaskRepository encapsulates task persistence.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Patch(ctx context.Context, id string, patch TaskPatch) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Delete(ctx context.Context, id string) error
	AppendComment(ctx context.Context, id string, comment domain.Comment) error
	AppendSubtask(ctx context.Context, id string, subtask domain.Subtask) error
	ToggleSubtask(ctx context.Context, id string, index int) error
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `id, title, description, status, priority, assigned_to_id, creator_id, department,
               deadline, comments, subtasks, report, attachment, created_at, updated_at`

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (title, description, status, priority, assigned_to_id, creator_id, department,
                           deadline, comments, subtasks, report, attachment)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.AssignedToID,
		task.CreatorID,
		task.Department,
		task.Deadline,
		nonNilComments(task.Comments),
		nonNilSubtasks(task.Subtasks),
		task.Report,
		task.Attachment,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) Patch(ctx context.Context, id string, patch TaskPatch) error {
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	if patch.AssignedToID != nil {
		add("assigned_to_id", *patch.AssignedToID)
	}
	if patch.Deadline != nil {
		add("deadline", domain.DateOf(*patch.Deadline))
	}
	if patch.Comments != nil {
		add("comments", nonNilComments(*patch.Comments))
	}
	if patch.Subtasks != nil {
		add("subtasks", nonNilSubtasks(*patch.Subtasks))
	}
	if patch.Report.Set {
		add("report", patch.Report.Value)
	}
	if patch.Attachment.Set {
		add("attachment", patch.Attachment.Value)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE tasks SET %s, updated_at=NOW() WHERE id=$%d`, strings.Join(sets, ", "), len(args))
	return r.exec(ctx, query, args...)
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id=$1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := []any{}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		query += fmt.Sprintf(" WHERE department=$%d", len(args))
	}
	query += " ORDER BY deadline ASC, created_at ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *task)
	}
	return result, rows.Err()
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
}

// AppendComment appends server-side so concurrent writers never lose entries.
func (r *taskRepository) AppendComment(ctx context.Context, id string, comment domain.Comment) error {
	const query = `UPDATE tasks SET comments = comments || $1::jsonb, updated_at=NOW() WHERE id=$2`
	return r.exec(ctx, query, []domain.Comment{comment}, id)
}

func (r *taskRepository) AppendSubtask(ctx context.Context, id string, subtask domain.Subtask) error {
	const query = `UPDATE tasks SET subtasks = subtasks || $1::jsonb, updated_at=NOW() WHERE id=$2`
	return r.exec(ctx, query, []domain.Subtask{subtask}, id)
}

// toggleSubtaskQuery binds $1 (index) as int only; the jsonb path is derived
// from it so Postgres deduces a single parameter type.
const toggleSubtaskQuery = `
        UPDATE tasks
        SET subtasks = jsonb_set(subtasks, ARRAY[($1::int)::text, 'done'],
                                 to_jsonb(NOT COALESCE((subtasks->($1::int)->>'done')::boolean, false))),
            updated_at = NOW()
        WHERE id=$2 AND $1::int >= 0 AND $1::int < jsonb_array_length(subtasks)`

func (r *taskRepository) ToggleSubtask(ctx context.Context, id string, index int) error {
	cmd, err := r.pool.Exec(ctx, toggleSubtaskQuery, index, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrSubtaskIndex
	}
	return nil
}

func (r *taskRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.AssignedToID,
		&task.CreatorID,
		&task.Department,
		&task.Deadline,
		&task.Comments,
		&task.Subtasks,
		&task.Report,
		&task.Attachment,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &task, nil
}

func nonNilComments(c []domain.Comment) []domain.Comment {
	if c == nil {
		return []domain.Comment{}
	}
	return c
}

func nonNilSubtasks(s []domain.Subtask) []domain.Subtask {
	if s == nil {
		return []domain.Subtask{}
	}
	return s
}

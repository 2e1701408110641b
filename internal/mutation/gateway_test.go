package mutation

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/feed"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/storage"
	"github.com/spec-kit/workflow-service/internal/store"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

var now = time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)

type staticSession struct{ identity *domain.Identity }

func (s staticSession) Identity() (domain.Identity, bool) {
	if s.identity == nil {
		return domain.Identity{}, false
	}
	return *s.identity, true
}

type env struct {
	backend    *repository.Memory
	feed       *feed.Memory
	dispatcher events.Dispatcher
	users      map[string]domain.User
}

func dept(name string) *string { return &name }

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		backend:    repository.NewMemory(),
		feed:       feed.NewMemory(),
		dispatcher: events.NewInMemoryDispatcher(nil),
		users:      map[string]domain.User{},
	}
	for _, u := range []domain.User{
		{ID: "root", Name: "Root", Email: "root@example.com", Role: domain.RoleSuperAdmin, Active: true},
		{ID: "boss", Name: "Bea Boss", Email: "bea@example.com", Role: domain.RoleAdmin, Department: dept("Sales"), Active: true},
		{ID: "u1", Name: "Ann Field", Email: "ann@example.com", Role: domain.RoleEmployee, Department: dept("Sales"), Active: true},
		{ID: "u2", Name: "Ben Stock", Email: "ben@example.com", Role: domain.RoleEmployee, Department: dept("Sales"), Active: true},
		{ID: "u3", Name: "Cal Ops", Email: "cal@example.com", Role: domain.RoleEmployee, Department: dept("Ops"), Active: true},
	} {
		user := u
		require.NoError(t, e.backend.Users().Create(context.Background(), &user))
		e.users[user.ID] = user
	}
	return e
}

// gateway builds a gateway for userID whose snapshot mirrors the backend.
func (e *env) gateway(t *testing.T, userID string, atomicAppend bool) (*Gateway, *store.Store) {
	t.Helper()
	identity := domain.IdentityFromUser(e.users[userID])
	snap := store.New()
	e.refresh(t, snap)
	return New(Dependencies{
		Session:      staticSession{identity: &identity},
		Snapshot:     snap,
		Users:        e.backend.Users(),
		Tasks:        e.backend.Tasks(),
		Requests:     e.backend.Requests(),
		Feed:         e.feed,
		Dispatcher:   e.dispatcher,
		Clock:        func() time.Time { return now },
		AtomicAppend: atomicAppend,
	}), snap
}

func (e *env) refresh(t *testing.T, snap *store.Store) {
	t.Helper()
	ctx := context.Background()
	users, err := e.backend.Users().List(ctx, repository.UserFilter{})
	require.NoError(t, err)
	tasks, err := e.backend.Tasks().List(ctx, repository.TaskFilter{})
	require.NoError(t, err)
	requests, err := e.backend.Requests().List(ctx, repository.RequestFilter{})
	require.NoError(t, err)
	snap.ReplaceUsers(users)
	snap.ReplaceTasks(tasks)
	snap.ReplaceRequests(requests)
}

func (e *env) task(t *testing.T, id string) *domain.Task {
	t.Helper()
	task, err := e.backend.Tasks().GetByID(context.Background(), id)
	require.NoError(t, err)
	return task
}

func validTask() NewTask {
	return NewTask{
		Title:        "Stock check",
		AssignedToID: "u2",
		Deadline:     now.Format(domain.DateLayout),
		Priority:     domain.TaskPriorityNormal,
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.ToDomainError(err).Code, "error: %v", err)
}

func TestCreateTask_RejectsPastDeadline(t *testing.T) {
	e := newEnv(t)
	g, _ := e.gateway(t, "boss", true)
	in := validTask()
	in.Deadline = now.AddDate(0, 0, -1).Format(domain.DateLayout)

	_, err := g.CreateTask(context.Background(), in)
	assertCode(t, err, apperrors.CodeValidation)
	assert.Contains(t, apperrors.ToDomainError(err).Details, "deadline")

	tasks, err := e.backend.Tasks().List(context.Background(), repository.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestCreateTask_RequiredFields(t *testing.T) {
	e := newEnv(t)
	g, _ := e.gateway(t, "boss", true)

	tests := []struct {
		name  string
		edit  func(*NewTask)
		field string
	}{
		{"title", func(n *NewTask) { n.Title = "  " }, "title"},
		{"assignee", func(n *NewTask) { n.AssignedToID = "" }, "assigned_to_id"},
		{"deadline", func(n *NewTask) { n.Deadline = "" }, "deadline"},
		{"deadline format", func(n *NewTask) { n.Deadline = "12/05/2026" }, "deadline"},
		{"priority", func(n *NewTask) { n.Priority = "" }, "priority"},
		{"unknown priority", func(n *NewTask) { n.Priority = "URGENT" }, "priority"},
		{"unknown assignee", func(n *NewTask) { n.AssignedToID = "ghost" }, "assigned_to_id"},
		{"assignee in other department", func(n *NewTask) { n.AssignedToID = "u3" }, "assigned_to_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validTask()
			tt.edit(&in)
			_, err := g.CreateTask(context.Background(), in)
			assertCode(t, err, apperrors.CodeValidation)
			assert.Contains(t, apperrors.ToDomainError(err).Details, tt.field)
		})
	}
}

func TestCreateTask_DefaultsAndNotice(t *testing.T) {
	e := newEnv(t)
	g, _ := e.gateway(t, "boss", true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notices, err := e.feed.Watch(ctx, domain.CollectionTasks)
	require.NoError(t, err)

	in := validTask()
	in.Description = "Count the warehouse"
	id, err := g.CreateTask(ctx, in)
	require.NoError(t, err)

	task := e.task(t, id)
	assert.Equal(t, domain.TaskStatusTodo, task.Status)
	assert.Equal(t, "Sales", task.Department)
	assert.Equal(t, "boss", task.CreatorID)
	assert.Empty(t, task.Comments)
	assert.Empty(t, task.Subtasks)
	assert.Nil(t, task.Report)
	assert.Nil(t, task.Attachment)
	assert.False(t, task.Deadline.Before(domain.DateOf(now)))

	select {
	case <-notices:
	case <-time.After(time.Second):
		t.Fatal("no change notice after create")
	}
}

func TestCreateTask_OnlyAdmins(t *testing.T) {
	e := newEnv(t)
	for _, id := range []string{"u1", "root"} {
		g, _ := e.gateway(t, id, true)
		_, err := g.CreateTask(context.Background(), validTask())
		assertCode(t, err, apperrors.CodeForbidden)
	}
}

func TestGateway_SignedOut(t *testing.T) {
	g := New(Dependencies{Session: staticSession{}})
	_, err := g.CreateTask(context.Background(), validTask())
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func seedTask(t *testing.T, e *env) string {
	t.Helper()
	g, _ := e.gateway(t, "boss", true)
	id, err := g.CreateTask(context.Background(), validTask())
	require.NoError(t, err)
	return id
}

func TestAddComment_RewriteLosesConcurrentAppend(t *testing.T) {
	e := newEnv(t)
	id := seedTask(t, e)
	boss, _ := e.gateway(t, "boss", false)
	require.NoError(t, boss.AddComment(context.Background(), id, "c0"))

	// Both writers read comments=[c0] before either writes.
	first, _ := e.gateway(t, "boss", false)
	second, _ := e.gateway(t, "u2", false)
	require.NoError(t, first.AddComment(context.Background(), id, "from admin"))
	require.NoError(t, second.AddComment(context.Background(), id, "from employee"))

	comments := e.task(t, id).Comments
	require.Len(t, comments, 2)
	assert.Equal(t, "c0", comments[0].Text)
	assert.Equal(t, "from employee", comments[1].Text)
}

func TestAddComment_AtomicAppendKeepsBoth(t *testing.T) {
	e := newEnv(t)
	id := seedTask(t, e)
	boss, _ := e.gateway(t, "boss", true)
	require.NoError(t, boss.AddComment(context.Background(), id, "c0"))

	first, _ := e.gateway(t, "boss", true)
	second, _ := e.gateway(t, "u2", true)
	require.NoError(t, first.AddComment(context.Background(), id, "from admin"))
	require.NoError(t, second.AddComment(context.Background(), id, "from employee"))

	comments := e.task(t, id).Comments
	require.Len(t, comments, 3)
	assert.Equal(t, "u2", comments[2].AuthorID)
	assert.Equal(t, "Ben Stock", comments[2].AuthorName)
	assert.Equal(t, domain.RoleEmployee, comments[2].Role)
	assert.True(t, now.Equal(comments[2].Timestamp))
}

func TestAddComment_HighlightsAndNotifiesMentions(t *testing.T) {
	e := newEnv(t)
	id := seedTask(t, e)
	var mentioned []events.MentionedPayload
	e.dispatcher.Subscribe(events.EventMentioned, func(_ context.Context, ev events.Event) error {
		mentioned = append(mentioned, ev.Payload.(events.MentionedPayload))
		return nil
	})

	g, _ := e.gateway(t, "boss", true)
	require.NoError(t, g.AddComment(context.Background(), id, "@ben please sync with @nobody"))

	comments := e.task(t, id).Comments
	require.Len(t, comments, 1)
	assert.Equal(t, "**@ben** please sync with @nobody", comments[0].Text)
	require.Len(t, mentioned, 1)
	assert.Equal(t, "u2", mentioned[0].UserID)
	assert.Equal(t, "Stock check", mentioned[0].TaskTitle)
}

func TestToggleSubtask_TwiceRestores(t *testing.T) {
	for _, atomicAppend := range []bool{true, false} {
		e := newEnv(t)
		id := seedTask(t, e)
		g, snap := e.gateway(t, "u2", atomicAppend)
		ctx := context.Background()

		require.NoError(t, g.AddSubtask(ctx, id, "count shelves"))
		e.refresh(t, snap)
		require.NoError(t, g.ToggleSubtask(ctx, id, 0))
		assert.True(t, e.task(t, id).Subtasks[0].Done)
		e.refresh(t, snap)
		require.NoError(t, g.ToggleSubtask(ctx, id, 0))
		assert.False(t, e.task(t, id).Subtasks[0].Done, "atomic=%v", atomicAppend)

		assertCode(t, g.ToggleSubtask(ctx, id, 5), apperrors.CodeValidation)
	}
}

func TestTaskAccess(t *testing.T) {
	e := newEnv(t)
	id := seedTask(t, e)
	ctx := context.Background()

	other, _ := e.gateway(t, "u1", true)
	assertCode(t, other.MoveTask(ctx, id, domain.TaskStatusInProgress), apperrors.CodeForbidden)

	outsider, _ := e.gateway(t, "u3", true)
	assertCode(t, outsider.AddComment(ctx, id, "hi"), apperrors.CodeNotFound)

	owner, _ := e.gateway(t, "u2", true)
	require.NoError(t, owner.MoveTask(ctx, id, domain.TaskStatusInProgress))
	assert.Equal(t, domain.TaskStatusInProgress, e.task(t, id).Status)
	assertCode(t, owner.MoveTask(ctx, id, "BLOCKED"), apperrors.CodeValidation)
	assertCode(t, owner.DeleteTask(ctx, id), apperrors.CodeForbidden)
}

func TestUpdateTask_MergesSuppliedFields(t *testing.T) {
	e := newEnv(t)
	id := seedTask(t, e)
	g, _ := e.gateway(t, "boss", true)
	title := "Stock check (north)"
	high := domain.TaskPriorityHigh

	require.NoError(t, g.UpdateTask(context.Background(), id, repository.TaskPatch{Title: &title, Priority: &high}))

	task := e.task(t, id)
	assert.Equal(t, title, task.Title)
	assert.Equal(t, high, task.Priority)
	assert.Equal(t, "u2", task.AssignedToID)
	assertCode(t, g.UpdateTask(context.Background(), id, repository.TaskPatch{}), apperrors.CodeValidation)
}

func TestUpdateTask_ReassignmentChecksAssignee(t *testing.T) {
	e := newEnv(t)
	id := seedTask(t, e)
	g, _ := e.gateway(t, "boss", true)
	ctx := context.Background()
	require.NoError(t, e.backend.Users().SetActive(ctx, "u1", false))

	cases := []struct {
		name     string
		assignee string
	}{
		{"other department", "u3"},
		{"unknown user", "nobody"},
		{"inactive user", "u1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assignee := tc.assignee
			assertCode(t, g.UpdateTask(ctx, id, repository.TaskPatch{AssignedToID: &assignee}), apperrors.CodeValidation)
			assert.Equal(t, "u2", e.task(t, id).AssignedToID)
		})
	}

	require.NoError(t, e.backend.Users().SetActive(ctx, "u1", true))
	assignee := "u1"
	require.NoError(t, g.UpdateTask(ctx, id, repository.TaskPatch{AssignedToID: &assignee}))
	assert.Equal(t, "u1", e.task(t, id).AssignedToID)
}

func TestUpdateTask_EmployeeMayOnlyChangeStatus(t *testing.T) {
	e := newEnv(t)
	id := seedTask(t, e)
	g, _ := e.gateway(t, "u2", true)
	ctx := context.Background()
	title := "renamed"
	other := "u1"

	assertCode(t, g.UpdateTask(ctx, id, repository.TaskPatch{Title: &title}), apperrors.CodeForbidden)
	assertCode(t, g.UpdateTask(ctx, id, repository.TaskPatch{AssignedToID: &other}), apperrors.CodeForbidden)
	task := e.task(t, id)
	assert.Equal(t, "Stock check", task.Title)
	assert.Equal(t, "u2", task.AssignedToID)

	status := domain.TaskStatusInProgress
	require.NoError(t, g.UpdateTask(ctx, id, repository.TaskPatch{Status: &status}))
	assert.Equal(t, status, e.task(t, id).Status)
}

func TestCompleteTask_WithAttachmentIsRepeatable(t *testing.T) {
	e := newEnv(t)
	id := seedTask(t, e)
	identity := domain.IdentityFromUser(e.users["u2"])
	dir := t.TempDir()
	g := New(Dependencies{
		Session:      staticSession{identity: &identity},
		Snapshot:     store.New(),
		Users:        e.backend.Users(),
		Tasks:        e.backend.Tasks(),
		Requests:     e.backend.Requests(),
		Feed:         e.feed,
		Uploader:     storage.NewLocal(dir, "/files", 1<<20),
		Clock:        func() time.Time { return now },
		AtomicAppend: true,
	})
	ctx := context.Background()

	require.NoError(t, g.CompleteTask(ctx, id, "counted", &Attachment{Filename: "count.csv", Content: strings.NewReader("a,b")}))
	task := e.task(t, id)
	assert.Equal(t, domain.TaskStatusDone, task.Status)
	require.NotNil(t, task.Report)
	assert.Equal(t, "counted", *task.Report)
	require.NotNil(t, task.Attachment)
	assert.Equal(t, "count.csv", *task.Attachment)

	require.NoError(t, g.CompleteTask(ctx, id, "recounted", nil))
	task = e.task(t, id)
	assert.Equal(t, "recounted", *task.Report)
	assert.Nil(t, task.Attachment)

	assertCode(t, g.CompleteTask(ctx, id, "", nil), apperrors.CodeValidation)
}

func TestDeleteTask_PublishesCalendarID(t *testing.T) {
	e := newEnv(t)
	id := seedTask(t, e)
	var deleted []string
	e.dispatcher.Subscribe(events.EventTaskDeleted, func(_ context.Context, ev events.Event) error {
		deleted = append(deleted, ev.Payload.(events.TaskDeletedPayload).CalendarEventID)
		return nil
	})
	g, _ := e.gateway(t, "boss", true)

	require.NoError(t, g.DeleteTask(context.Background(), id))
	_, err := e.backend.Tasks().GetByID(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, []string{"wf" + id}, deleted)
}

func TestSetUserActive_DoesNotTouchExistingTasks(t *testing.T) {
	e := newEnv(t)
	id := seedTask(t, e)
	ctx := context.Background()
	root, _ := e.gateway(t, "root", true)

	require.NoError(t, root.SetUserActive(ctx, "u2", false))

	assert.Equal(t, "u2", e.task(t, id).AssignedToID)
	boss, _ := e.gateway(t, "boss", true)
	_, err := boss.CreateTask(ctx, validTask())
	assertCode(t, err, apperrors.CodeValidation)

	assertCode(t, boss.SetUserActive(ctx, "u2", true), apperrors.CodeForbidden)
	assertCode(t, root.SetUserActive(ctx, "ghost", true), apperrors.CodeNotFound)
}

type flakyTasks struct {
	repository.TaskRepository
	failures atomic.Int32
}

func (f *flakyTasks) Patch(ctx context.Context, id string, patch repository.TaskPatch) error {
	if f.failures.Add(-1) >= 0 {
		return errors.New("connection reset by peer")
	}
	return f.TaskRepository.Patch(ctx, id, patch)
}

func TestGateway_RetriesBackendErrors(t *testing.T) {
	e := newEnv(t)
	id := seedTask(t, e)
	identity := domain.IdentityFromUser(e.users["u2"])
	flaky := &flakyTasks{TaskRepository: e.backend.Tasks()}
	g := New(Dependencies{
		Session:  staticSession{identity: &identity},
		Snapshot: store.New(),
		Users:    e.backend.Users(),
		Tasks:    flaky,
		Requests: e.backend.Requests(),
		Clock:    func() time.Time { return now },
		Retry:    RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond},
	})
	ctx := context.Background()

	flaky.failures.Store(2)
	require.NoError(t, g.MoveTask(ctx, id, domain.TaskStatusInProgress))

	flaky.failures.Store(3)
	err := g.MoveTask(ctx, id, domain.TaskStatusDone)
	assertCode(t, err, apperrors.CodeBackend)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Equal(t, domain.TaskStatusInProgress, e.task(t, id).Status)
}

func TestHighlightMentions(t *testing.T) {
	users := []domain.User{
		{ID: "a", Name: "Ana Lopez", Active: true},
		{ID: "b", Name: "Bob", Active: false},
	}
	out, mentions := HighlightMentions("@ANA and @analopez, not @bob or @ana_", users)

	assert.Equal(t, "**@ANA** and **@analopez**, not @bob or @ana_", out)
	require.Len(t, mentions, 1)
	assert.Equal(t, "a", mentions[0].UserID)
}

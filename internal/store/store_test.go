package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
)

func TestStore_ReplaceDropsRecordsMissingFromSnapshot(t *testing.T) {
	s := New()
	s.ReplaceTasks([]domain.Task{{ID: "t1"}, {ID: "t2"}})
	s.ReplaceTasks([]domain.Task{{ID: "t2", Title: "updated"}})

	_, ok := s.Task("t1")
	assert.False(t, ok)
	t2, ok := s.Task("t2")
	require.True(t, ok)
	assert.Equal(t, "updated", t2.Title)
	assert.Len(t, s.Tasks(), 1)
}

func TestStore_EmptySnapshotClearsCollection(t *testing.T) {
	s := New()
	s.ReplaceUsers([]domain.User{{ID: "u1"}})
	s.ReplaceUsers(nil)

	assert.Empty(t, s.Users())
}

func TestStore_CollectionsAreIndependent(t *testing.T) {
	s := New()
	s.ReplaceRequests([]domain.Request{{ID: "r1"}})
	s.ReplaceTasks(nil)

	_, ok := s.Request("r1")
	assert.True(t, ok)
}

func TestStore_TasksOrderedByDeadline(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s := New()
	s.ReplaceTasks([]domain.Task{
		{ID: "late", Deadline: day.AddDate(0, 0, 5)},
		{ID: "early", Deadline: day},
		{ID: "mid", Deadline: day.AddDate(0, 0, 1)},
	})

	var ids []string
	for _, task := range s.Tasks() {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"early", "mid", "late"}, ids)
}

func TestStore_ReadsDoNotAliasStoredSlices(t *testing.T) {
	s := New()
	s.ReplaceTasks([]domain.Task{{ID: "t1", Comments: []domain.Comment{{Text: "c0"}}}})

	task, _ := s.Task("t1")
	task.Comments[0].Text = "mutated"
	task.Comments = append(task.Comments, domain.Comment{Text: "c1"})

	again, _ := s.Task("t1")
	require.Len(t, again.Comments, 1)
	assert.Equal(t, "c0", again.Comments[0].Text)
}

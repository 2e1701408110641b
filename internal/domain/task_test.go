package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskClone(t *testing.T) {
	clone := Task{ID: "t1"}.Clone()
	assert.NotNil(t, clone.Comments)
	assert.NotNil(t, clone.Subtasks)
	assert.Empty(t, clone.Subtasks)

	original := Task{Subtasks: []Subtask{{Text: "pack"}}, Comments: []Comment{{Text: "hi"}}}
	clone = original.Clone()
	clone.Subtasks[0].Done = true
	clone.Comments[0].Text = "changed"
	assert.False(t, original.Subtasks[0].Done)
	assert.Equal(t, "hi", original.Comments[0].Text)
}

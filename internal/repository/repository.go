package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a record does not exist. It aliases pgx.ErrNoRows
// so Postgres and in-memory implementations report misses identically.
var ErrNotFound = pgx.ErrNoRows

// ErrSubtaskIndex is returned when a subtask position is out of range.
var ErrSubtaskIndex = errors.New("subtask index out of range")

// ErrEmailTaken is returned when creating a user with an existing email.
var ErrEmailTaken = errors.New("email already registered")

// Nullable carries an explicit write of a nullable column. Set=false leaves the
// column untouched; Set=true with a nil Value clears it.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Null returns a write that clears the column.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// Value returns a write that stores v.
func Value[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

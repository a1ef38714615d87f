package mutate

import (
	"fmt"

	"devon-cli/internal/api"
	"devon-cli/internal/model"
)

// NotFoundError is returned when the server has no record with the
// requested id. It matches api.ErrNotFound with errors.Is.
type NotFoundError struct {
	Kind model.Kind
	ID   int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Kind, e.ID)
}

func (e NotFoundError) Unwrap() error { return api.ErrNotFound }

// FieldError is a rejected --set or form value.
type FieldError struct {
	Field string
	Value string
	Msg   string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: invalid value %q: %s", e.Field, e.Value, e.Msg)
}

package entity

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a mutation or lookup names an id the
// store does not hold.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// DuplicateKeyError is returned when a create or update would collide
// with an existing id or unique field value.
type DuplicateKeyError struct {
	Kind  string
	Field string
	Value string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Kind, e.Field, e.Value)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsDuplicateKey reports whether err (or any error in its chain) is a DuplicateKeyError.
func IsDuplicateKey(err error) bool {
	var dk *DuplicateKeyError
	return errors.As(err, &dk)
}

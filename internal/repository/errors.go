// Package repository implements persistence over database/sql. Sentinel
// errors defined here let handlers translate failure scenarios into HTTP
// responses without inspecting driver errors: ErrNotFound maps to 404,
// ErrForbidden to 403, ErrConflict and ErrInvalidState to 409,
// ErrEmailExists to 409 on registration.
package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when the referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they are not a party to or do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned on uniqueness violations, e.g. a second rating
// for the same purchase and direction.
var ErrConflict = errors.New("conflict")

// ErrInvalidState is returned when a lifecycle transition is not legal in
// the entity's current state, including losing a compare-and-swap race.
var ErrInvalidState = errors.New("invalid state")

// ErrEmailExists is returned when registering an already-taken email.
var ErrEmailExists = errors.New("email already exists")

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (error 1062), which is how unique keys surface uniqueness races.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

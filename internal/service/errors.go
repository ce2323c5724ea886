package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Error kinds. Handlers map these to HTTP statuses with errors.Is.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrDuplicateEmail     = errors.New("email has already been taken")
	ErrUnknownReference   = errors.New("unknown reference")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIncorrectPassword  = errors.New("current password is incorrect")
)

var (
	ErrAlreadyApproved   = kindError(ErrConflict, "already approved")
	ErrNotDeleted        = kindError(ErrConflict, "resource is not deleted")
	ErrSelfDelete        = kindError(ErrConflict, "you cannot delete your own account")
	ErrProfileIncomplete = kindError(ErrValidation, "profile must be at least 90% complete to be verified")
	ErrNoProfileImage    = kindError(ErrNotFound, "no profile image to delete")
)

// duplicateEmail maps a unique-index violation on a users write to
// ErrDuplicateEmail. The email index is the only unique key a user write can hit.
func duplicateEmail(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}

type kindErr struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error { return &kindErr{kind: kind, msg: msg} }

func (e *kindErr) Error() string { return e.msg }
func (e *kindErr) Unwrap() error { return e.kind }

// ValidationError carries field-level messages and matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// orNil returns nil when no field failed.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func unknownReference(kind string, names []string) error {
	return fmt.Errorf("%w: %s %s", ErrUnknownReference, kind, strings.Join(names, ", "))
}

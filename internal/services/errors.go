package services

import (
	"errors"
	"fmt"
)

// Wire codes shared by the REST envelope and socket error events.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidState       = "INVALID_STATE"
	CodeConflict           = "CONFLICT"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Validation error"
}

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthenticatedError struct{ Message string }

func (e *UnauthenticatedError) Error() string { return e.Message }

// ForbiddenError is returned when the caller is the wrong party for an operation.
type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// InvalidStateError is returned when the target is in a status that does not
// permit the operation. Kept distinct from ForbiddenError so clients can tell
// "not yours" apart from "not now".
type InvalidStateError struct{ Message string }

func (e *InvalidStateError) Error() string { return e.Message }

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// ErrorCode maps an error to its wire code.
func ErrorCode(err error) string {
	var (
		validationErr      *ValidationError
		notFoundErr        *NotFoundError
		unauthenticatedErr *UnauthenticatedError
		forbiddenErr       *ForbiddenError
		invalidStateErr    *InvalidStateError
		conflictErr        *ConflictError
		storageErr         *StorageError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return CodeValidation
	case errors.As(err, &notFoundErr):
		return CodeNotFound
	case errors.As(err, &unauthenticatedErr):
		return CodeUnauthenticated
	case errors.As(err, &forbiddenErr):
		return CodeUnauthorized
	case errors.As(err, &invalidStateErr):
		return CodeInvalidState
	case errors.As(err, &conflictErr):
		return CodeConflict
	case errors.As(err, &storageErr):
		return CodeStorageUnavailable
	default:
		return CodeInternal
	}
}

// PublicMessage returns the text safe to show a client. Storage and internal
// failures collapse to a generic message.
func PublicMessage(err error) string {
	switch ErrorCode(err) {
	case CodeStorageUnavailable:
		return "Storage is temporarily unavailable"
	case CodeInternal:
		return "Something went wrong"
	default:
		return err.Error()
	}
}

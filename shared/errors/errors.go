package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

// ValidationError is caller input that can not be accepted as is.
// Retrying without changing the input gives the same result.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Validation error: %s", e.Message)
}

// NotFoundError covers missing posts, posts without an image and
// image records whose file is gone. Use the sentinels below to tell them apart.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

var (
	ErrPostNotFound     = &NotFoundError{Message: "post not found"}
	ErrNoImage          = &NotFoundError{Message: "post has no image"}
	ErrImageFileMissing = &NotFoundError{Message: "image record present but file is missing"}
)

// SecurityError is returned when a path would escape the upload root.
type SecurityError struct {
	Path string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("path %q resolves outside upload directory", e.Path)
}

// StorageError wraps an underlying filesystem failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ErrPayloadTooLarge is answered with 413 instead of the generic 400.
var ErrPayloadTooLarge = &ErrorWithStatusCode{Message: "payload too large", StatusCode: http.StatusRequestEntityTooLarge}

// Check if err is (or wraps) an instance of T for custom error types
func Is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// StatusCode maps an error to the HTTP status the handler layer should answer with.
func StatusCode(err error) int {
	var withStatus *ErrorWithStatusCode
	var validation *ValidationError
	var notFound *NotFoundError
	var security *SecurityError

	switch {
	case errors.As(err, &withStatus):
		return withStatus.StatusCode
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &security):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

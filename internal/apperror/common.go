package apperror

import (
	"fmt"
	"net/http"
)

var (
	ErrValidation = New(
		CodeValidation,
		"The provided input is invalid",
		http.StatusBadRequest,
	)

	ErrNotFound = New(
		CodeNotFound,
		"Resource not found",
		http.StatusNotFound,
	)

	ErrConflict = New(
		CodeConflict,
		"Resource already exists",
		http.StatusConflict,
	)

	ErrInvalidState = New(
		CodeInvalidState,
		"The resource is not in a state that allows this action",
		http.StatusConflict,
	)

	ErrStorageFailure = New(
		CodeStorageFailure,
		"Local storage failed",
		http.StatusInternalServerError,
	)

	ErrRemoteUnavailable = New(
		CodeRemoteUnavailable,
		"Remote backend is unreachable",
		http.StatusServiceUnavailable,
	)

	ErrRemoteRejected = New(
		CodeRemoteRejected,
		"Remote backend rejected the change",
		http.StatusUnprocessableEntity,
	)

	ErrNotReady = New(
		CodeNotReady,
		"Data has not been loaded yet",
		http.StatusServiceUnavailable,
	)
)

func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func RequiredField(field string) *AppError {
	return Validation(fmt.Sprintf("%s is required", field))
}

func InvalidField(field string) *AppError {
	return Validation(fmt.Sprintf("%s is invalid", field))
}

func NotFound(what, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s %q not found", what, id), http.StatusNotFound)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

func InvalidState(message string) *AppError {
	return New(CodeInvalidState, message, http.StatusConflict)
}

func StorageFailure(err error, key string) *AppError {
	return Wrap(err, CodeStorageFailure, fmt.Sprintf("local storage failed for key %q", key), http.StatusInternalServerError)
}

func RemoteUnavailable(err error) *AppError {
	return Wrap(err, CodeRemoteUnavailable, "remote backend is unreachable", http.StatusServiceUnavailable)
}

// RemoteRejected reports a reachable backend refusing a request. details
// carries the backend's explanation for display.
func RemoteRejected(status int, details string) *AppError {
	return &AppError{
		Code:       CodeRemoteRejected,
		Message:    fmt.Sprintf("remote backend rejected the request with status %d", status),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

package apperror

const (
	// Caller errors
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInvalidState = "INVALID_STATE"

	// Data path errors
	CodeStorageFailure    = "STORAGE_FAILURE"
	CodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	CodeRemoteRejected    = "REMOTE_REJECTED"
	CodeNotReady          = "NOT_READY"
)

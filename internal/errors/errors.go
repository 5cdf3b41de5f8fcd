package errors

import (
	"fmt"
	"net/http"
)

// APIError is the error type handlers push into the gin context; the
// ErrorHandler middleware turns it into the JSON response.
type APIError struct {
	Status   int    `json:"-"`
	Message  string `json:"error"`
	Internal error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Internal
}

func New(status int, message string, internal error) *APIError {
	return &APIError{
		Status:   status,
		Message:  message,
		Internal: internal,
	}
}

func BadRequest(message string, internal error) *APIError {
	return New(http.StatusBadRequest, message, internal)
}

func Unauthorized(message string, internal error) *APIError {
	return New(http.StatusUnauthorized, message, internal)
}

func Forbidden(message string, internal error) *APIError {
	return New(http.StatusForbidden, message, internal)
}

func NotFound(message string, internal error) *APIError {
	return New(http.StatusNotFound, message, internal)
}

func Conflict(message string, internal error) *APIError {
	return New(http.StatusConflict, message, internal)
}

func Internal(internal error) *APIError {
	return New(http.StatusInternalServerError, "Internal server error", internal)
}

// LockConflictError is returned when a lock acquire or release loses against
// another holder. HolderID/HolderName identify who currently holds the lock
// so the client can show "being edited by X".
type LockConflictError struct {
	PromptID   uint64 `json:"prompt_id"`
	HolderID   uint64 `json:"locked_by"`
	HolderName string `json:"locked_by_name,omitempty"`
}

func (e *LockConflictError) Error() string {
	if e.HolderName != "" {
		return fmt.Sprintf("prompt %d is locked by %s", e.PromptID, e.HolderName)
	}
	return fmt.Sprintf("prompt %d is locked by user %d", e.PromptID, e.HolderID)
}

func LockConflict(promptID, holderID uint64, holderName string) *LockConflictError {
	return &LockConflictError{
		PromptID:   promptID,
		HolderID:   holderID,
		HolderName: holderName,
	}
}

package vcloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a referenced object does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the session may not access an object or capability
	ErrUnauthorized = errors.New("unauthorized")
	// ErrOperationNotSupported is returned for mutations this control plane always rejects
	ErrOperationNotSupported = errors.New("operation not supported")
)

// Minor error codes reported by the control plane
const (
	MinorCodeInvalidState = "INVALID_STATE"
	MinorCodeBusyEntity   = "BUSY_ENTITY"
	MinorCodeBadRequest   = "BAD_REQUEST"
	MinorCodeNotFound     = "NOT_FOUND"
)

// Error is a structured error returned by the control plane, either in an HTTP
// response body or as the failure cause of a task
type Error struct {
	StatusCode int    `json:"code"`
	MajorCode  string `json:"error,omitempty"`
	MinorCode  string `json:"minorErrorCode,omitempty"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	if e.MinorCode != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.MinorCode, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match control-plane errors against the package sentinels
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound || e.MinorCode == MinorCodeNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	default:
		return false
	}
}

// IsNotFound checks if an error indicates the object does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized checks if an error indicates missing rights
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsConflictState checks if an error indicates the object is in an invalid or
// inconsistent state for the requested operation. These errors are retryable.
func IsConflictState(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.MinorCode {
	case MinorCodeInvalidState, MinorCodeBusyEntity:
		return true
	}
	return apiErr.StatusCode == http.StatusConflict
}

// IsTransient checks if an error is a server-side or transport fault worth retrying
func IsTransient(err error) bool {
	if err == nil || IsNotFound(err) || IsUnauthorized(err) ||
		errors.Is(err, ErrOperationNotSupported) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError ||
			apiErr.StatusCode == http.StatusTooManyRequests
	}
	// Anything that is not a structured response is a transport fault
	return true
}

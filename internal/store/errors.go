package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// SchemaError reports a remote payload that is not an array of record objects.
type SchemaError struct {
	Got    string
	Detail string
}

func (e *SchemaError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("expected data to be an array of records, got %s: %s", e.Got, e.Detail)
	}
	return fmt.Sprintf("expected data to be an array of records, got %s", e.Got)
}

type ErrorKind string

const (
	ErrNetwork ErrorKind = "network"
	ErrStatus  ErrorKind = "status"
	ErrTimeout ErrorKind = "timeout"
	ErrDecode  ErrorKind = "decode"

	// ErrTooLarge is a response body over the client's size limit.
	ErrTooLarge ErrorKind = "too-large"
)

// RemoteError wraps a failed exchange with the remote endpoint.
type RemoteError struct {
	Kind   ErrorKind
	Op     string
	Status int
	Cause  error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Cause
}

func NewStatusError(op string, status int) *RemoteError {
	return &RemoteError{Kind: ErrStatus, Op: op, Status: status}
}

// ClassifyError turns a transport failure into a RemoteError.
func ClassifyError(op string, err error) *RemoteError {
	if err == nil {
		return nil
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteError{Kind: ErrTimeout, Op: op, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &RemoteError{Kind: ErrTimeout, Op: op, Cause: err}
	}

	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return &RemoteError{Kind: ErrTimeout, Op: op, Cause: err}
	}

	return &RemoteError{Kind: ErrNetwork, Op: op, Cause: err}
}

func (e *RemoteError) IsRetryable() bool {
	switch e.Kind {
	case ErrNetwork, ErrTimeout:
		return true
	case ErrStatus:
		return e.Status >= 500
	default:
		return false
	}
}

func (e *RemoteError) UserMessage() string {
	switch e.Kind {
	case ErrNetwork:
		return "Could not reach the contacts server."
	case ErrTimeout:
		return "The contacts server took too long to answer."
	case ErrStatus:
		return fmt.Sprintf("The contacts server refused the request (%d).", e.Status)
	case ErrDecode:
		return "The contacts server sent something unreadable."
	case ErrTooLarge:
		return "The contacts list is larger than mira accepts."
	default:
		return "An unexpected error occurred."
	}
}

// UserMessage picks a short, human readable message for err.
func UserMessage(err error) string {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.UserMessage()
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return "The contacts server sent data in an unexpected shape."
	}
	return err.Error()
}

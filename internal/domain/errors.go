package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies run failures so callers can react per kind
type ErrorType string

const (
	ErrorTypeInput    ErrorType = "input"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeRemote   ErrorType = "remote_service"
	ErrorTypeTimeout  ErrorType = "timeout"
	ErrorTypeInternal ErrorType = "internal"
)

// ErrRunActive is reported when a document already has a run in flight.
var ErrRunActive = errors.New("a run is already active for this document")

// Error is a classified failure with optional page and stage context
type Error struct {
	Type    ErrorType
	Message string
	Stage   string // pipeline stage the failure occurred in, empty if not stage-scoped
	Page    int    // 1-based page number, 0 if not page-scoped
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Page > 0 {
		msg = fmt.Sprintf("%s (page %d)", msg, e.Page)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithPage returns a copy of the error tagged with the page it occurred on.
func (e *Error) WithPage(page int) *Error {
	c := *e
	c.Page = page
	return &c
}

// NewError creates a new classified error
func NewError(errType ErrorType, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func InputError(message string, err error) *Error {
	return NewError(ErrorTypeInput, message, err)
}

func ConfigError(message string, err error) *Error {
	return NewError(ErrorTypeConfig, message, err)
}

func RemoteServiceError(stage, message string, err error) *Error {
	e := NewError(ErrorTypeRemote, message, err)
	e.Stage = stage
	return e
}

func TimeoutError(stage, message string, err error) *Error {
	e := NewError(ErrorTypeTimeout, message, err)
	e.Stage = stage
	return e
}

func InternalError(message string, err error) *Error {
	return NewError(ErrorTypeInternal, message, err)
}

// IsType reports whether err is a classified error of the given type.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

func IsInputError(err error) bool   { return IsType(err, ErrorTypeInput) }
func IsConfigError(err error) bool  { return IsType(err, ErrorTypeConfig) }
func IsRemoteError(err error) bool  { return IsType(err, ErrorTypeRemote) }
func IsTimeoutError(err error) bool { return IsType(err, ErrorTypeTimeout) }

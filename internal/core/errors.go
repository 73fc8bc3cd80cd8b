package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadPayload    = "bad_payload"
	ErrCodeNotRegistered = "not_registered"
	ErrCodeStoreFailure  = "store_failure"
)

var (
	ErrBadPayload    = errors.New("bad payload")
	ErrNotRegistered = errors.New("not registered")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

package usermeta

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no record exists for the given identity.
	ErrNotFound = errors.New("usermeta: record not found")
	// ErrConflict indicates a uniqueness violation on the identity key.
	ErrConflict = errors.New("usermeta: identity already exists")
)

// ServiceError wraps an internal failure with an operation-scoped code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason identifier for the failure.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

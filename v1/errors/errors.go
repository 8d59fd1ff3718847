package errors

import "errors"

var (
	// ErrConflict is returned by conditional writes when the stored version no
	// longer matches the expected one, or when a create-only write finds the
	// object already present.
	ErrConflict = errors.New("version conflict")

	ErrTimeout          = errors.New("timeout")
	ErrConnectionClosed = errors.New("connection closed")
)

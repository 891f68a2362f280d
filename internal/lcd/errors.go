package lcd

import (
	"errors"
	"fmt"
)

// LCDError is returned when an LCD request fails.
type LCDError struct {
	Operation string
	Message   string
}

func (e *LCDError) Error() string {
	return fmt.Sprintf("LCD %s failed: %s", e.Operation, e.Message)
}

// NotFoundError is returned when a resource is not found. For transactions
// this usually means the tx is not included yet.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.Resource)
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsLCDError returns true if err is a transport or decoding failure.
func IsLCDError(err error) bool {
	var le *LCDError
	return errors.As(err, &le)
}

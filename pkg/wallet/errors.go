package wallet

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple checks.
var (
	// ErrConfiguration marks caller misuse. Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrNoPostableConnection is returned by post when no signing backend
	// is active.
	ErrNoPostableConnection = errors.New("there are no connections that can be posting tx")

	// ErrBackendUnavailable marks a failed probe or handshake.
	ErrBackendUnavailable = errors.New("wallet backend unavailable")

	// ErrUserDenied is returned when the signer refused the transaction.
	ErrUserDenied = errors.New("user denied the transaction")
)

// ConfigurationError is returned on caller misuse such as posting without an
// active postable backend or connecting with an unknown type.
type ConfigurationError struct {
	Op      string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap lets errors.Is match both ErrConfiguration and the cause.
func (e *ConfigurationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfiguration, e.Err}
	}
	return []error{ErrConfiguration}
}

// IsConfiguration returns true if err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// UserDeniedError wraps a signer refusal with the backend's own message.
type UserDeniedError struct {
	Backend ConnectType
	Message string
}

func (e *UserDeniedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: user denied the transaction", e.Backend.Design())
	}
	return fmt.Sprintf("%s: user denied the transaction: %s", e.Backend.Design(), e.Message)
}

// Is reports ErrUserDenied equivalence.
func (e *UserDeniedError) Is(target error) bool {
	return target == ErrUserDenied
}

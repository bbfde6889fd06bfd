package analyzer

import (
	"errors"
	"fmt"
)

// TransportError wraps any network-level failure of an analyzer channel,
// including timeouts. It is recoverable: the session controller pauses
// sampling and applies its own retry policy.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("analyzer transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

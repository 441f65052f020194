package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway error.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindNotFound
	KindRateLimited
	KindServer
	KindNetwork
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol"
	}
	return "unknown"
}

// Kind sentinels for errors.Is matching.
var (
	ErrValidation  = errors.New("gateway: validation error")
	ErrAuth        = errors.New("gateway: authentication error")
	ErrNotFound    = errors.New("gateway: not found")
	ErrRateLimited = errors.New("gateway: rate limited")
	ErrServer      = errors.New("gateway: server error")
	ErrNetwork     = errors.New("gateway: network error")
	ErrProtocol    = errors.New("gateway: protocol error")
)

func sentinel(k Kind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindAuth:
		return ErrAuth
	case KindNotFound:
		return ErrNotFound
	case KindRateLimited:
		return ErrRateLimited
	case KindServer:
		return ErrServer
	case KindNetwork:
		return ErrNetwork
	case KindProtocol:
		return ErrProtocol
	}
	return nil
}

// Error is a typed gateway failure. Matchable with errors.Is against the
// kind sentinels above.
type Error struct {
	Kind       Kind
	HTTPStatus int
	Code       string
	Message    string
	cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s (%s): %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// Transient reports whether the operation is safe to retry with backoff.
func (e *Error) Transient() bool {
	return e.Kind == KindNetwork || e.Kind == KindRateLimited
}

// IsTransient reports whether err should be retried rather than surfaced.
func IsTransient(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Transient()
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

package entities

import (
	"errors"
	"fmt"
	"net/netip"
)

// RouteError represents an error raised by the table or the forwarding engine
type RouteError struct {
	ErrorType   ErrorType
	Destination netip.Addr // Destination being resolved, if any
	Interface   uint32     // Interface involved, if any
	Index       int        // Table position for positional accessors
	Cause       error      // Underlying error
}

// ErrorType represents the category of routing error
type ErrorType int

// Route error type constants
const (
	// ErrNoRoute indicates the lookup found nothing
	ErrNoRoute ErrorType = iota
	// ErrMissingInterface indicates a link-local multicast send without an interface
	ErrMissingInterface
	// ErrIndexOutOfRange indicates a positional accessor got an invalid index
	ErrIndexOutOfRange
	// ErrInvalidRoute indicates malformed route parameters
	ErrInvalidRoute
	// ErrUnknownInterface indicates the node has no such interface
	ErrUnknownInterface
)

// Sentinels for errors.Is; only the type is compared.
var (
	ErrNoRouteToHost     = &RouteError{ErrorType: ErrNoRoute}
	ErrInterfaceRequired = &RouteError{ErrorType: ErrMissingInterface}
	ErrIndex             = &RouteError{ErrorType: ErrIndexOutOfRange}
	ErrRouteInvalid      = &RouteError{ErrorType: ErrInvalidRoute}
	ErrNoSuchInterface   = &RouteError{ErrorType: ErrUnknownInterface}
)

// String returns a string representation of the route error type
func (e ErrorType) String() string {
	switch e {
	case ErrNoRoute:
		return "NoRoute"
	case ErrMissingInterface:
		return "MissingInterface"
	case ErrIndexOutOfRange:
		return "IndexOutOfRange"
	case ErrInvalidRoute:
		return "InvalidRoute"
	case ErrUnknownInterface:
		return "UnknownInterface"
	default:
		return "UnknownError"
	}
}

// Error implements the error interface for RouteError
func (re *RouteError) Error() string {
	var msg string
	switch re.ErrorType {
	case ErrNoRoute:
		msg = fmt.Sprintf("no route to host %s", re.Destination)
	case ErrMissingInterface:
		msg = fmt.Sprintf("link-local multicast %s requires an output interface", re.Destination)
	case ErrIndexOutOfRange:
		msg = fmt.Sprintf("route index %d out of range", re.Index)
	case ErrUnknownInterface:
		msg = fmt.Sprintf("unknown interface %d", re.Interface)
	default:
		msg = "invalid route"
	}
	if re.Cause != nil {
		return fmt.Sprintf("route error [%s]: %s: %v", re.ErrorType, msg, re.Cause)
	}
	return fmt.Sprintf("route error [%s]: %s", re.ErrorType, msg)
}

// Unwrap returns the underlying cause
func (re *RouteError) Unwrap() error {
	return re.Cause
}

// Is matches any RouteError of the same type
func (re *RouteError) Is(target error) bool {
	var t *RouteError
	if !errors.As(target, &t) {
		return false
	}
	return t.ErrorType == re.ErrorType
}

// IsRetryable is always false: nothing at this layer is retried
func (re *RouteError) IsRetryable() bool {
	return false
}

// IsNoRoute returns true if err is, or wraps, a no-route error
func IsNoRoute(err error) bool {
	return errors.Is(err, ErrNoRouteToHost)
}

// Condition is the signal handed to the error path for a consumed packet
type Condition int

// Condition constants
const (
	ConditionNone Condition = iota
	ConditionNoRouteToHost
)

// String returns a string representation of the condition
func (c Condition) String() string {
	switch c {
	case ConditionNone:
		return "none"
	case ConditionNoRouteToHost:
		return "no-route-to-host"
	default:
		return "unknown"
	}
}

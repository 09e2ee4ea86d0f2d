package mvc

import (
	"errors"
	"fmt"
)

var (
	// ErrRouteNotFound is reported when no descriptor matches a request
	ErrRouteNotFound = errors.New("route not found")

	// ErrTypeCoercion is matched by every CoercionError
	ErrTypeCoercion = errors.New("type coercion failed")
)

// DuplicateRouteError is returned when a (method, path) pair is registered twice
type DuplicateRouteError struct {
	Method   string
	Path     string
	Existing string // controller.action already bound to the route
}

// Error implements the error interface
func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("duplicate route: %s %s already bound to %s", e.Method, e.Path, e.Existing)
}

// FragmentError describes a body fragment the binder skipped.
// It is informational only and never fails a request.
type FragmentError struct {
	Fragment string
}

// Error implements the error interface
func (e FragmentError) Error() string {
	return fmt.Sprintf("malformed body fragment %q: want key=value", e.Fragment)
}

// CoercionError is returned by the typed Params getters
type CoercionError struct {
	Key   string
	Value string
	Type  string
	Err   error
}

// Error implements the error interface
func (e *CoercionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("param %q: cannot convert %q to %s: %v", e.Key, e.Value, e.Type, e.Err)
	}
	return fmt.Sprintf("param %q: cannot convert %q to %s", e.Key, e.Value, e.Type)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTypeCoercion) hold for every CoercionError
func (e *CoercionError) Is(target error) bool {
	return target == ErrTypeCoercion
}

// InvocationError wraps a failure raised from inside an action, either a
// returned error or a recovered panic.
type InvocationError struct {
	Controller string
	Action     string
	Err        error
	Panic      any
}

// Error implements the error interface
func (e *InvocationError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("action %s.%s panicked: %v", e.Controller, e.Action, e.Panic)
	}
	return fmt.Sprintf("action %s.%s failed: %v", e.Controller, e.Action, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// SerializationError is returned when a Data model cannot be encoded
type SerializationError struct {
	Err error
}

// Error implements the error interface
func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize model: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

package container

import (
	"errors"
	"fmt"
	"reflect"
)

// ── Sentinels ─────────────────────────────────────────────────────────────────

var (
	// ErrServiceNotFound is matched by every *UnknownServiceError.
	ErrServiceNotFound = errors.New("service not found")

	// ErrTypeMismatch is matched by every *TypeMismatchError.
	ErrTypeMismatch = errors.New("service type mismatch")

	// ErrNoParameterProvider is matched by every *NoParameterProviderFoundError.
	ErrNoParameterProvider = errors.New("no parameter provider found")

	// ErrNoDefaultFactory is returned by the default factory of an interface
	// type: there is no concrete value to build.
	ErrNoDefaultFactory = errors.New("no default factory for interface type")

	// ErrClosed is returned by lookups on a closed container.
	ErrClosed = errors.New("container is closed")
)

// ── Typed errors ──────────────────────────────────────────────────────────────

// UnknownServiceError is returned when no service is registered under Name.
type UnknownServiceError struct {
	Name string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("container: trying to get unknown service '%s'", e.Name)
}

func (e *UnknownServiceError) Is(target error) bool { return target == ErrServiceNotFound }

// TypeMismatchError is returned when a service is requested as a type other
// than the one it was registered with.
type TypeMismatchError struct {
	Name       string
	Registered reflect.Type
	Requested  reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("container: invalid type %s supplied for service '%s' (registered as %s)",
		e.Requested, e.Name, e.Registered)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// NoParameterProviderFoundError is returned by Container.Parameter when no
// tagged provider has the parameter.
type NoParameterProviderFoundError struct {
	Name string
}

func (e *NoParameterProviderFoundError) Error() string {
	return fmt.Sprintf("container: unable to find parameter '%s'", e.Name)
}

func (e *NoParameterProviderFoundError) Is(target error) bool {
	return target == ErrNoParameterProvider
}

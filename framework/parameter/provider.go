package parameter

import (
	"errors"
	"fmt"
)

// ErrUnknownParameter is matched by every *UnknownParameterError.
var ErrUnknownParameter = errors.New("unknown parameter")

// Provider is a source of named parameters. The container consults every
// service tagged as a parameter provider, in registration-name order, and
// asks the first one that has the parameter.
type Provider interface {
	// HasParameter reports whether this provider can supply name.
	HasParameter(name string) bool

	// Parameter returns the value for name, or an *UnknownParameterError
	// when the provider does not know it.
	Parameter(name string) (Parameter, error)
}

// UnknownParameterError is returned by a Provider asked for a name it does
// not have.
type UnknownParameterError struct {
	Name string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("unable to get unknown parameter '%s'", e.Name)
}

func (e *UnknownParameterError) Is(target error) bool {
	return target == ErrUnknownParameter
}

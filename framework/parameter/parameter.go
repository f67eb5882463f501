package parameter

import (
	"strconv"
	"strings"
)

// Parameter is an immutable configuration value resolved through the
// container's provider chain. It stores its value as text and converts on
// demand.
//
// Conversions are best effort: text that does not parse as the requested
// type converts to that type's zero value (0, 0.0, false). Callers that need
// to tell "0" apart from "garbage" should inspect String() themselves.
//
//	p, _ := c.Parameter("db.port")
//	port := p.Int()       // "5432" → 5432, "abc" → 0
//	host := p.String()
type Parameter struct {
	value string
}

// New wraps value in a Parameter.
func New(value string) Parameter {
	return Parameter{value: value}
}

// String returns the raw text.
func (p Parameter) String() string { return p.value }

// Int parses the value as a base-10 int.
func (p Parameter) Int() int {
	i, err := strconv.Atoi(p.trimmed())
	if err != nil {
		return 0
	}
	return i
}

// Int64 parses the value as a base-10 int64.
func (p Parameter) Int64() int64 {
	i, err := strconv.ParseInt(p.trimmed(), 10, 64)
	if err != nil {
		return 0
	}
	return i
}

// Float64 parses the value as a float64.
func (p Parameter) Float64() float64 {
	f, err := strconv.ParseFloat(p.trimmed(), 64)
	if err != nil {
		return 0
	}
	return f
}

// Bool parses the value with strconv.ParseBool ("1", "true", "TRUE", ...).
func (p Parameter) Bool() bool {
	b, err := strconv.ParseBool(p.trimmed())
	if err != nil {
		return false
	}
	return b
}

// IsEmpty reports whether the value is the empty string.
func (p Parameter) IsEmpty() bool { return p.value == "" }

func (p Parameter) trimmed() string {
	return strings.TrimSpace(p.value)
}

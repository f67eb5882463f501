package providers

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/km-arc/go-fuze/framework/config"
	"github.com/km-arc/go-fuze/framework/parameter"
)

var (
	_ parameter.Provider = (*EnvParameterProvider)(nil)
	_ parameter.Provider = (*DotenvParameterProvider)(nil)
	_ parameter.Provider = MapParameterProvider(nil)
)

// envKey maps a parameter name to an environment variable name:
// "db_host" → "DB_HOST", with Prefix "app_" → "APP_DB_HOST".
func envKey(prefix, name string) string {
	return strings.ToUpper(prefix + name)
}

// ── Environment ───────────────────────────────────────────────────────────────

// EnvParameterProvider reads parameters from the process environment. The
// parameter name is upper-cased (after prepending Prefix) to form the
// variable name.
type EnvParameterProvider struct {
	Prefix string
}

func (p *EnvParameterProvider) HasParameter(name string) bool {
	_, ok := config.Lookup(envKey(p.Prefix, name))
	return ok
}

func (p *EnvParameterProvider) Parameter(name string) (parameter.Parameter, error) {
	v, ok := config.Lookup(envKey(p.Prefix, name))
	if !ok {
		return parameter.Parameter{}, &parameter.UnknownParameterError{Name: name}
	}
	return parameter.New(v), nil
}

// ── .env files ────────────────────────────────────────────────────────────────

// DotenvParameterProvider serves parameters parsed from .env files, without
// exporting them to the process environment. Names map to keys the same way
// as EnvParameterProvider.
type DotenvParameterProvider struct {
	prefix string
	values map[string]string
}

// NewDotenvParameterProvider parses files in order, later files overriding
// earlier ones. Files that do not exist are skipped.
func NewDotenvParameterProvider(prefix string, files ...string) (*DotenvParameterProvider, error) {
	values := make(map[string]string)
	for _, file := range files {
		m, err := config.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for k, v := range m {
			values[k] = v
		}
	}
	return &DotenvParameterProvider{prefix: prefix, values: values}, nil
}

func (p *DotenvParameterProvider) HasParameter(name string) bool {
	_, ok := p.values[envKey(p.prefix, name)]
	return ok
}

func (p *DotenvParameterProvider) Parameter(name string) (parameter.Parameter, error) {
	v, ok := p.values[envKey(p.prefix, name)]
	if !ok {
		return parameter.Parameter{}, &parameter.UnknownParameterError{Name: name}
	}
	return parameter.New(v), nil
}

// Len returns the number of parsed keys.
func (p *DotenvParameterProvider) Len() int { return len(p.values) }

// ── Static values ─────────────────────────────────────────────────────────────

// MapParameterProvider serves fixed values keyed by exact parameter name.
// Handy for defaults and tests.
type MapParameterProvider map[string]string

func (p MapParameterProvider) HasParameter(name string) bool {
	_, ok := p[name]
	return ok
}

func (p MapParameterProvider) Parameter(name string) (parameter.Parameter, error) {
	v, ok := p[name]
	if !ok {
		return parameter.Parameter{}, &parameter.UnknownParameterError{Name: name}
	}
	return parameter.New(v), nil
}

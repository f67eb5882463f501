package providers

import (
	"maps"

	"go.uber.org/zap"

	"github.com/km-arc/go-fuze/framework/config"
	"github.com/km-arc/go-fuze/framework/container"
	"github.com/km-arc/go-fuze/framework/parameter"
)

// Service names bound by the providers in this package. Parameter providers
// are consulted in name order, so precedence is dotenv, then env, then map.
const (
	ConfigService          = "config"
	LoggerService          = "logger"
	EnvParameterService    = "fuze.parameter_provider.env"
	DotenvParameterService = "fuze.parameter_provider.dotenv"
	MapParameterService    = "fuze.parameter_provider.map"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the application configuration.
//
// Bound services:
//   - "config" → *config.Config
//
// When Config is nil the configuration is loaded from EnvFiles on first use.
type ConfigServiceProvider struct {
	container.BaseProvider
	Config   *config.Config
	EnvFiles []string
}

func (p *ConfigServiceProvider) Register(c *container.Container) {
	if p.Config != nil {
		container.RegisterInstance(c, ConfigService, p.Config)
		return
	}
	envFiles := p.EnvFiles
	container.Register(c, ConfigService, func(*container.Container) (*config.Config, error) {
		return config.Load(envFiles...), nil
	}, nil)
}

// ── LoggerServiceProvider ─────────────────────────────────────────────────────

// LoggerServiceProvider binds a logger, flushed when the container closes.
//
// Bound services:
//   - "logger" → *zap.Logger
type LoggerServiceProvider struct {
	container.BaseProvider
	Logger *zap.Logger
}

func (p *LoggerServiceProvider) Register(c *container.Container) {
	logger := p.Logger
	if logger == nil {
		logger = c.Logger()
	}
	container.Register(c, LoggerService, func(*container.Container) (*zap.Logger, error) {
		return logger, nil
	}, func(l *zap.Logger) error {
		// Sync fails on unbuffered outputs such as a terminal stderr.
		_ = l.Sync()
		return nil
	})
}

// ── Parameter providers ───────────────────────────────────────────────────────

// EnvServiceProvider registers an EnvParameterProvider as a shared,
// persistent parameter provider.
//
// Bound services:
//   - "fuze.parameter_provider.env" → parameter.Provider (tagged)
type EnvServiceProvider struct {
	container.BaseProvider
	Prefix string
}

func (p *EnvServiceProvider) Register(c *container.Container) {
	prefix := p.Prefix
	container.Register(c, EnvParameterService, func(*container.Container) (parameter.Provider, error) {
		return &EnvParameterProvider{Prefix: prefix}, nil
	}, nil).Tag(container.ParameterProviderTag)
}

// DotenvServiceProvider registers a DotenvParameterProvider over Files
// (default ".env").
//
// Bound services:
//   - "fuze.parameter_provider.dotenv" → parameter.Provider (tagged)
type DotenvServiceProvider struct {
	container.BaseProvider
	Prefix string
	Files  []string
}

func (p *DotenvServiceProvider) Register(c *container.Container) {
	prefix := p.Prefix
	files := p.Files
	if len(files) == 0 {
		files = []string{".env"}
	}
	container.Register(c, DotenvParameterService, func(c *container.Container) (parameter.Provider, error) {
		provider, err := NewDotenvParameterProvider(prefix, files...)
		if err != nil {
			return nil, err
		}
		c.Logger().Debug("dotenv parameters loaded", zap.Strings("files", files), zap.Int("keys", provider.Len()))
		return provider, nil
	}, nil).Tag(container.ParameterProviderTag)
}

// MapServiceProvider registers fixed parameter values.
//
// Bound services:
//   - "fuze.parameter_provider.map" → parameter.Provider (tagged)
type MapServiceProvider struct {
	container.BaseProvider
	Values map[string]string
}

func (p *MapServiceProvider) Register(c *container.Container) {
	values := maps.Clone(p.Values)
	container.Register(c, MapParameterService, func(*container.Container) (parameter.Provider, error) {
		return MapParameterProvider(values), nil
	}, nil).Tag(container.ParameterProviderTag)
}

package app

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/km-arc/go-fuze/framework/config"
	"github.com/km-arc/go-fuze/framework/container"
	"github.com/km-arc/go-fuze/framework/providers"
)

const version = "0.1.0"

// Application is the top-level service container of a program. It embeds the
// Container so user code can call container.Register(app.Container, ...) and
// app.Parameter(...) directly.
type Application struct {
	*container.Container

	config *config.Config
	logger *zap.Logger
}

// New loads configuration from envFiles (default ".env") and builds the
// application.
func New(envFiles ...string) (*Application, error) {
	return NewWithConfig(config.Load(envFiles...))
}

// NewWithConfig builds the application from an already loaded configuration.
// opts are applied after the application's own options, so a WithLogger here
// replaces the configured logger.
//
// The framework providers are registered first:
//   - "config"                      → *config.Config
//   - "logger"                      → *zap.Logger
//   - "fuze.parameter_provider.env" → parameter.Provider
func NewWithConfig(cfg *config.Config, opts ...container.Option) (*Application, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	c := container.New(append([]container.Option{container.WithLogger(logger)}, opts...)...)
	app := &Application{
		Container: c,
		config:    cfg,
		logger:    logger,
	}

	app.Register(&providers.ConfigServiceProvider{Config: cfg})
	app.Register(&providers.LoggerServiceProvider{})
	app.Register(&providers.EnvServiceProvider{})

	return app, nil
}

// newLogger builds a development logger in debug mode and a production one
// otherwise, at the configured level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("app: invalid log level %q: %w", cfg.Log.Level, err)
	}

	var zc zap.Config
	if cfg.App.Debug {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("app: failed to create logger: %w", err)
	}
	return logger, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) {
	a.Providers().Register(provider)
}

// Boot runs the Boot phase on all providers.
func (a *Application) Boot() error {
	if err := a.Providers().Boot(); err != nil {
		a.logger.Error("boot failed", zap.Error(err))
		return err
	}
	a.logger.Info("application booted", zap.String("version", version))
	return nil
}

// Close tears down every live service and flushes the logger.
func (a *Application) Close() error {
	err := a.Container.Close()
	a.logger.Info("application closed")
	// Sync fails on unbuffered outputs such as a terminal stderr.
	_ = a.logger.Sync()
	return err
}

// Config returns the configuration the application was built with.
func (a *Application) Config() *config.Config { return a.config }

// Logger returns the application logger.
func (a *Application) Logger() *zap.Logger { return a.logger }

// Environment returns the APP_ENV value.
func (a *Application) Environment() string { return a.config.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.config.App.Debug }
func (a *Application) Version() string     { return version }

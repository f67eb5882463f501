package container

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider bundles the registration of related services.
//
// Register is called once per provider instance. Boot runs after every
// eager provider has been registered, so it may resolve services registered
// by other providers.
//
//	type MailServiceProvider struct{ container.BaseProvider }
//
//	func (p *MailServiceProvider) Register(c *container.Container) {
//	    container.Register(c, "mailer", newMailer, nil)
//	}
//
//	func (p *MailServiceProvider) Boot(c *container.Container) error {
//	    _, err := container.Get[*Mailer](c, "mailer") // fail fast
//	    return err
//	}
type ServiceProvider interface {
	// Register adds the provider's services to the container.
	// Do not resolve services here; use Boot for that.
	Register(c *Container)

	// Boot is called after all providers are registered.
	Boot(c *Container) error

	// Provides lists the service names the provider registers. Only
	// consulted for deferred providers.
	Provides() []string

	// IsDeferred reports whether Register should wait until one of the
	// Provides() names is first looked up.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with no-op Boot, Provides and
// IsDeferred. Embed it and implement Register.
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(c *container.Container) { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []string      { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers and boots ServiceProviders against one
// container, including deferred providers.
type ProviderRegistry struct {
	app *Container

	mu         sync.Mutex
	eager      []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register adds a provider and calls its Register method, unless the
// provider is deferred. Registering the same provider twice is a no-op. A
// provider registered after Boot is booted immediately.
func (r *ProviderRegistry) Register(provider ServiceProvider) {
	r.mu.Lock()
	if r.registered[provider] {
		r.mu.Unlock()
		return
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		r.mu.Unlock()
		r.app.deferTo(provider.Provides(), r.deferredLoader(provider))
		return
	}

	r.eager = append(r.eager, provider)
	booted := r.booted
	r.mu.Unlock()

	provider.Register(r.app)

	if booted {
		if err := provider.Boot(r.app); err != nil {
			r.app.log.Error("late provider boot failed", zap.Error(err))
		}
	}
}

// deferredLoader registers (and, if the registry already booted, boots) a
// deferred provider the first time one of its names is looked up.
func (r *ProviderRegistry) deferredLoader(provider ServiceProvider) func() error {
	var (
		once sync.Once
		err  error
	)
	return func() error {
		once.Do(func() {
			r.app.undefer(provider.Provides()...)
			provider.Register(r.app)

			r.mu.Lock()
			booted := r.booted
			r.mu.Unlock()
			if booted {
				err = provider.Boot(r.app)
			}
		})
		return err
	}
}

// Boot calls Boot on every eager provider, in registration order, and
// returns their combined errors. Only the first call has an effect.
func (r *ProviderRegistry) Boot() error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	providers := append([]ServiceProvider(nil), r.eager...)
	r.mu.Unlock()

	var err error
	for _, provider := range providers {
		err = multierr.Append(err, provider.Boot(r.app))
	}
	return err
}

// Booted reports whether Boot has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns the registered eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.eager...)
}

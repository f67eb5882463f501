package container

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/km-arc/go-fuze/framework/parameter"
)

// ParameterProviderTag marks services that supply parameters. Such services
// must be registered as parameter.Provider.
const ParameterProviderTag = "fuze.parameter_provider"

// ── Options ───────────────────────────────────────────────────────────────────

type options struct {
	logger    *zap.Logger
	providers []ServiceProvider
}

// Option configures a Container at construction.
type Option func(*options)

// WithLogger sets the logger used for lifecycle events. The default is a
// no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithProviders registers the given service providers, in order, while the
// container is constructed.
func WithProviders(providers ...ServiceProvider) Option {
	return func(o *options) { o.providers = append(o.providers, providers...) }
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container holds named service definitions and hands out typed instances.
//
// It supports:
//   - Register / RegisterInstance (generic, returns a *Definition to configure)
//   - Get / MustGet (type-checked retrieval)
//   - Tagged (every service carrying a tag, in name order)
//   - Parameter (first tagged parameter.Provider that has the name)
//   - Close (tears down every live shared instance)
//
// A Container is safe for concurrent use. Factories may resolve other
// services from the same container; a factory that (directly or not)
// resolves its own service deadlocks.
type Container struct {
	id  string
	log *zap.Logger

	mu sync.RWMutex

	// name → definition
	definitions map[string]erasedDefinition

	// name → loader of the deferred provider that registers it
	deferred map[string]func() error

	closed bool

	// construction counter, drives teardown order on Close
	seq atomic.Uint64

	paramMu        sync.Mutex
	paramLoaded    bool
	paramStale     atomic.Bool
	paramHandles   []*Handle[parameter.Provider]
	paramProviders []parameter.Provider

	providers *ProviderRegistry
}

// New creates a container and registers the providers passed with
// WithProviders. The container is bound to itself under "container".
func New(opts ...Option) *Container {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	c := &Container{
		id:          id,
		log:         o.logger.With(zap.String("container", id)),
		definitions: make(map[string]erasedDefinition),
		deferred:    make(map[string]func() error),
	}
	c.providers = NewProviderRegistry(c)

	RegisterInstance(c, "container", c)

	for _, p := range o.providers {
		c.providers.Register(p)
	}
	return c
}

// ID returns the container's unique identifier, also attached to its logs.
func (c *Container) ID() string { return c.id }

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger { return c.log }

// Providers returns the registry that ran the container's service providers.
func (c *Container) Providers() *ProviderRegistry { return c.providers }

// ── Registration ──────────────────────────────────────────────────────────────

// Register stores a definition for T under name and returns it for further
// configuration. A nil factory builds a bare T (see Definition); a nil
// teardown closes instances implementing io.Closer.
//
// Registering a name that is already taken replaces the previous definition
// after closing it, so its live shared instance is torn down first.
//
//	container.Register(c, "mailer", func(c *container.Container) (*Mailer, error) {
//	    host, err := c.Parameter("mail.host")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return NewMailer(host.String()), nil
//	}, nil).SetShared(true)
func Register[T any](c *Container, name string, factory Factory[T], teardown Teardown[T]) *Definition[T] {
	def := newDefinition(name, factory, teardown, c.log)
	c.store(name, def)
	return def
}

// RegisterInstance stores a pre-built value as a shared, persistent service.
// The container never tears the value down; its owner does.
func RegisterInstance[T any](c *Container, name string, value T) *Definition[T] {
	def := newDefinition(name, func(*Container) (T, error) { return value, nil }, noTeardown[T], c.log)
	c.store(name, def)
	return def
}

func (c *Container) store(name string, def erasedDefinition) {
	c.mu.Lock()
	prev, replaced := c.definitions[name]
	c.definitions[name] = def
	delete(c.deferred, name)
	closed := c.closed
	c.mu.Unlock()

	if closed {
		c.log.Warn("service registered on a closed container", zap.String("service", name))
	}
	if replaced {
		c.log.Warn("service re-registered, closing previous definition",
			zap.String("service", name), zap.Stringer("previous_type", prev.Type()))
		if prev.HasTag(ParameterProviderTag) {
			c.paramStale.Store(true)
		}
		if err := prev.close(); err != nil {
			c.log.Error("closing replaced definition failed", zap.String("service", name), zap.Error(err))
		}
	}
	c.log.Debug("service registered", zap.String("service", name), zap.Stringer("type", def.Type()))
}

// deferTo records that the given names are registered by load, which runs
// the first time one of them is looked up.
func (c *Container) deferTo(names []string, load func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		if _, ok := c.definitions[name]; ok {
			continue
		}
		c.deferred[name] = load
	}
}

// undefer drops deferred entries, typically because their provider is
// being registered for real.
func (c *Container) undefer(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		delete(c.deferred, name)
	}
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Get resolves the service registered under name as T.
//
// It fails with *UnknownServiceError when nothing is registered under name
// and with *TypeMismatchError when the service was registered with a type
// other than T. Errors returned by the factory are passed through as is.
//
//	h, err := container.Get[*Mailer](c, "mailer")
//	if err != nil {
//	    return err
//	}
//	defer h.Release()
//	h.Value().Send(msg)
func Get[T any](c *Container, name string) (*Handle[T], error) {
	def, err := lookup[T](c, name)
	if err != nil {
		return nil, err
	}
	return def.get(c)
}

// MustGet is like Get but panics on error.
func MustGet[T any](c *Container, name string) *Handle[T] {
	h, err := Get[T](c, name)
	if err != nil {
		panic(fmt.Sprintf("container: MustGet[%v]: %v", typeOf[T](), err))
	}
	return h
}

// Tagged resolves every service tagged with tag as T, in name order.
//
// All tagged services must have been registered as T: the first one that
// was not fails the call with *TypeMismatchError. On any error, handles
// already obtained are released and nil is returned.
func Tagged[T any](c *Container, tag string) ([]*Handle[T], error) {
	names, err := c.taggedNames(tag)
	if err != nil {
		return nil, err
	}

	handles := make([]*Handle[T], 0, len(names))
	for _, name := range names {
		h, err := Get[T](c, name)
		if err != nil {
			for _, got := range handles {
				_ = got.Release()
			}
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func lookup[T any](c *Container, name string) (*Definition[T], error) {
	erased, err := c.definition(name)
	if err != nil {
		return nil, err
	}

	if requested := typeOf[T](); erased.Type() != requested {
		return nil, &TypeMismatchError{
			Name:       name,
			Registered: erased.Type(),
			Requested:  requested,
		}
	}
	return erased.(*Definition[T]), nil
}

// definition finds the definition registered under name, loading its
// deferred provider first if needed.
func (c *Container) definition(name string) (erasedDefinition, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrClosed
	}
	def, ok := c.definitions[name]
	load, deferred := c.deferred[name]
	c.mu.RUnlock()

	if ok {
		return def, nil
	}
	if !deferred {
		return nil, &UnknownServiceError{Name: name}
	}

	c.log.Debug("loading deferred provider", zap.String("service", name))
	if err := load(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	def, ok = c.definitions[name]
	c.mu.RUnlock()
	if !ok {
		return nil, &UnknownServiceError{Name: name}
	}
	return def, nil
}

// taggedNames lists the services carrying tag, in name order. Deferred
// providers are loaded first, since any of them may register tagged
// services.
func (c *Container) taggedNames(tag string) ([]string, error) {
	if err := c.loadDeferred(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	var names []string
	for name, def := range c.definitions {
		if def.HasTag(tag) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (c *Container) loadDeferred() error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClosed
	}
	loaders := slices.Collect(maps.Values(c.deferred))
	c.mu.RUnlock()

	if len(loaders) > 0 {
		c.log.Debug("loading deferred providers for tag scan", zap.Int("services", len(loaders)))
	}
	// A provider serving several names appears once per name; its loader
	// only runs once.
	for _, load := range loaders {
		if err := load(); err != nil {
			return err
		}
	}
	return nil
}

// ── Parameters ────────────────────────────────────────────────────────────────

// Parameter returns the named parameter from the first parameter provider
// that has it. Providers are the services tagged ParameterProviderTag, in
// name order.
//
// The provider list is resolved on the first successful call and kept for
// the container's lifetime: providers registered afterwards are never
// consulted. Re-registering a provider that is already in the list makes
// the next call resolve the list again.
func (c *Container) Parameter(name string) (parameter.Parameter, error) {
	providers, err := c.parameterProviders()
	if err != nil {
		return parameter.Parameter{}, err
	}

	for _, p := range providers {
		if p.HasParameter(name) {
			return p.Parameter(name)
		}
	}
	return parameter.Parameter{}, &NoParameterProviderFoundError{Name: name}
}

func (c *Container) parameterProviders() ([]parameter.Provider, error) {
	// Outside paramMu: a deferred provider's Boot may itself read parameters.
	if err := c.loadDeferred(); err != nil {
		return nil, err
	}

	c.paramMu.Lock()
	defer c.paramMu.Unlock()

	if c.paramLoaded && c.paramStale.CompareAndSwap(true, false) {
		c.log.Debug("parameter provider replaced, reloading providers")
		for _, h := range c.paramHandles {
			_ = h.Release()
		}
		c.paramLoaded = false
		c.paramHandles, c.paramProviders = nil, nil
	}
	if c.paramLoaded {
		return c.paramProviders, nil
	}

	c.paramStale.Store(false)
	handles, err := Tagged[parameter.Provider](c, ParameterProviderTag)
	if err != nil {
		return nil, err
	}

	providers := make([]parameter.Provider, len(handles))
	for i, h := range handles {
		providers[i] = h.Value()
	}
	c.paramHandles = handles
	c.paramProviders = providers
	c.paramLoaded = true

	c.log.Debug("parameter providers loaded", zap.Int("count", len(providers)))
	return providers, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Has reports whether a service is registered, or deferred, under name.
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, registered := c.definitions[name]
	_, deferred := c.deferred[name]
	return registered || deferred
}

// Names returns the registered service names in sorted order. Names of
// providers that have not been loaded yet are not included.
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.definitions))
}

func (c *Container) nextSeq() uint64 { return c.seq.Add(1) }

// ── Teardown ──────────────────────────────────────────────────────────────────

// Close tears down every live shared instance exactly once, most recently
// constructed first, and makes further lookups fail with ErrClosed.
// Teardown errors are combined into the returned error. Calling Close again
// is a no-op.
func (c *Container) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	defs := slices.Collect(maps.Values(c.definitions))
	c.mu.Unlock()

	var err error

	c.paramMu.Lock()
	for _, h := range c.paramHandles {
		err = multierr.Append(err, h.Release())
	}
	c.paramHandles, c.paramProviders = nil, nil
	c.paramMu.Unlock()

	slices.SortStableFunc(defs, func(a, b erasedDefinition) int {
		return cmp.Compare(b.constructedAt(), a.constructedAt())
	})
	for _, def := range defs {
		err = multierr.Append(err, def.close())
	}

	if err != nil {
		c.log.Warn("container closed with errors", zap.Error(err))
	} else {
		c.log.Debug("container closed", zap.Int("services", len(defs)))
	}
	return err
}

// Package container provides a named service container with per-service
// lifecycle control, tag queries and a chained parameter lookup.
//
// # Overview
//
// Services are registered under a name with a factory and an optional
// teardown, then retrieved as typed handles. Each definition chooses how
// instances are shared:
//
//	shared  persistent  behaviour
//	false   -           new instance per Get; Release tears it down
//	true    true        one instance, torn down when the container closes (default)
//	true    false       one instance while referenced; last Release tears it down
//
// # Container Lifecycle
//
//  1. Create: c := container.New(container.WithProviders(...))
//  2. Register: container.Register(c, "name", factory, teardown)
//  3. Resolve: h, err := container.Get[T](c, "name"); defer h.Release()
//  4. Close: c.Close() tears down everything still alive
//
// # Registration
//
//	// Shared and persistent (defaults)
//	container.Register(c, "db", func(c *container.Container) (*sql.DB, error) {
//	    dsn, err := c.Parameter("db.dsn")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return sql.Open("postgres", dsn.String())
//	}, nil)
//
//	// New instance on every Get
//	container.Register[*Request](c, "request", nil, nil).SetShared(false)
//
//	// Shared while referenced
//	container.Register(c, "pool", newPool, closePool).SetPersistent(false)
//
//	// Pre-built value
//	container.RegisterInstance(c, "clock", clock.Real())
//
// A nil factory builds a bare value of the registered type (new(E) for *E);
// a nil teardown closes instances that implement io.Closer.
//
// # Resolving
//
//	h, err := container.Get[*sql.DB](c, "db")
//	if err != nil {
//	    return err // *UnknownServiceError or *TypeMismatchError or the factory's error
//	}
//	defer h.Release()
//	db := h.Value()
//
// # Tags
//
//	container.Register(c, "report.cpu", newCPU, nil).Tag("reports")
//	container.Register(c, "report.mem", newMem, nil).Tag("reports")
//	reports, err := container.Tagged[Report](c, "reports") // name order
//
// # Parameters
//
// Services registered as parameter.Provider and tagged ParameterProviderTag
// form a lookup chain, consulted in name order:
//
//	port, err := c.Parameter("http.port")
//	if errors.Is(err, container.ErrNoParameterProvider) { ... }
//	addr := ":" + port.String()
//
// The chain is resolved once, on first use.
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(c *container.Container) {
//	    container.Register(c, "mailer", newMailer, nil)
//	}
//
//	c := container.New(container.WithProviders(&AppServiceProvider{}))
//	if err := c.Providers().Boot(); err != nil { ... }
//
// # Deferred Providers
//
//	type HeavyProvider struct{ container.BaseProvider }
//
//	func (p *HeavyProvider) IsDeferred() bool   { return true }
//	func (p *HeavyProvider) Provides() []string { return []string{"heavy"} }
//	func (p *HeavyProvider) Register(c *container.Container) {
//	    container.Register(c, "heavy", heavySetup, nil) // runs on first Get("heavy")
//	}
//
// Tagged (and so the first Parameter call) loads every deferred provider
// before scanning, since their services may carry the tag.
package container

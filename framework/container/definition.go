package container

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ── Factory types ─────────────────────────────────────────────────────────────

// Factory builds a service instance. It receives the container so it can
// resolve its own dependencies:
//
//	container.Register(c, "repo", func(c *container.Container) (*Repo, error) {
//	    db, err := container.Get[*sql.DB](c, "db")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &Repo{DB: db.Value()}, nil
//	}, nil)
type Factory[T any] func(c *Container) (T, error)

// Teardown disposes of a service instance built by a Factory.
type Teardown[T any] func(instance T) error

// defaultFactory builds a bare T: a fresh zero value behind a pointer for
// pointer types, the zero value otherwise. Interfaces have nothing to build.
func defaultFactory[T any]() Factory[T] {
	typ := reflect.TypeFor[T]()
	return func(_ *Container) (T, error) {
		var zero T
		switch typ.Kind() {
		case reflect.Pointer:
			return reflect.New(typ.Elem()).Interface().(T), nil
		case reflect.Interface:
			return zero, fmt.Errorf("%w: %s", ErrNoDefaultFactory, typ)
		default:
			return zero, nil
		}
	}
}

// defaultTeardown closes instances that implement io.Closer.
func defaultTeardown[T any](instance T) error {
	if closer, ok := any(instance).(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func noTeardown[T any](T) error { return nil }

// ── Definition ────────────────────────────────────────────────────────────────

// erasedDefinition is the type-erased view the container keeps of every
// *Definition[T]. Lookups compare Type() against the requested type before
// asserting back to the concrete definition.
type erasedDefinition interface {
	Name() string
	Type() reflect.Type
	HasTag(tag string) bool
	constructedAt() uint64
	close() error
}

// Definition describes how a named service is built, shared and torn down.
// It is returned by Register for fluent configuration:
//
//	container.Register[*Cache](c, "cache", newCache, nil).
//	    SetPersistent(false).
//	    Tag("warmup")
//
// Configure a definition before its first retrieval; flags changed while an
// instance is live only affect instances built afterwards.
type Definition[T any] struct {
	name     string
	typ      reflect.Type
	factory  Factory[T]
	teardown Teardown[T]
	log      *zap.Logger

	// cfg guards the configuration; it is never held while user code runs.
	cfg        sync.RWMutex
	shared     bool
	persistent bool
	tags       []string

	// mu serializes construction and teardown of the shared instance.
	mu       sync.Mutex
	instance *T
	closed   bool

	// mirrors of the guarded state, readable while a factory runs
	refs     atomic.Int32
	resolved atomic.Bool
	seq      atomic.Uint64
}

func newDefinition[T any](name string, factory Factory[T], teardown Teardown[T], log *zap.Logger) *Definition[T] {
	if factory == nil {
		factory = defaultFactory[T]()
	}
	if teardown == nil {
		teardown = defaultTeardown[T]
	}
	typ := reflect.TypeFor[T]()
	return &Definition[T]{
		name:       name,
		typ:        typ,
		factory:    factory,
		teardown:   teardown,
		log:        log.With(zap.String("service", name), zap.Stringer("type", typ)),
		shared:     true,
		persistent: true,
	}
}

// SetShared controls whether every Get aliases one instance (true, the
// default) or builds a new one (false).
func (d *Definition[T]) SetShared(shared bool) *Definition[T] {
	d.cfg.Lock()
	defer d.cfg.Unlock()
	d.shared = shared
	return d
}

// SetPersistent controls whether a shared instance survives until the
// container closes (true, the default) or is torn down as soon as its last
// handle is released (false). It has no effect on non-shared definitions.
func (d *Definition[T]) SetPersistent(persistent bool) *Definition[T] {
	d.cfg.Lock()
	defer d.cfg.Unlock()
	d.persistent = persistent
	return d
}

// Tag labels the definition for retrieval with Tagged.
func (d *Definition[T]) Tag(tag string) *Definition[T] {
	d.cfg.Lock()
	defer d.cfg.Unlock()
	d.tags = append(d.tags, tag)
	return d
}

func (d *Definition[T]) Name() string       { return d.name }
func (d *Definition[T]) Type() reflect.Type { return d.typ }

func (d *Definition[T]) Shared() bool {
	d.cfg.RLock()
	defer d.cfg.RUnlock()
	return d.shared
}

func (d *Definition[T]) Persistent() bool {
	d.cfg.RLock()
	defer d.cfg.RUnlock()
	return d.persistent
}

func (d *Definition[T]) mode() (shared, persistent bool) {
	d.cfg.RLock()
	defer d.cfg.RUnlock()
	return d.shared, d.persistent
}

// Tags returns a copy of the definition's tags in the order they were added.
func (d *Definition[T]) Tags() []string {
	d.cfg.RLock()
	defer d.cfg.RUnlock()
	return slices.Clone(d.tags)
}

func (d *Definition[T]) HasTag(tag string) bool {
	d.cfg.RLock()
	defer d.cfg.RUnlock()
	return slices.Contains(d.tags, tag)
}

// RefCount returns the number of live handles on the shared instance of a
// non-persistent definition. It is always 0 for other modes.
func (d *Definition[T]) RefCount() int { return int(d.refs.Load()) }

// Resolved reports whether a shared instance is currently cached.
func (d *Definition[T]) Resolved() bool { return d.resolved.Load() }

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// get returns a handle on an instance according to the definition's mode.
// Factory errors are returned as is and nothing is cached.
func (d *Definition[T]) get(c *Container) (*Handle[T], error) {
	shared, persistent := d.mode()
	if !shared {
		return d.getTransient(c)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.instance == nil {
		instance, err := d.factory(c)
		if err != nil {
			return nil, err
		}
		d.instance = &instance
		d.refs.Store(0)
		d.seq.Store(c.nextSeq())
		d.resolved.Store(true)
		d.log.Debug("shared instance constructed", zap.Bool("persistent", persistent))
	}

	if persistent {
		return newHandle(*d.instance, nil), nil
	}

	d.refs.Add(1)
	return newHandle(*d.instance, d.release), nil
}

func (d *Definition[T]) getTransient(c *Container) (*Handle[T], error) {
	instance, err := d.factory(c)
	if err != nil {
		return nil, err
	}
	d.log.Debug("transient instance constructed")
	return newHandle(instance, func() error {
		return d.destroy(instance)
	}), nil
}

// release drops one reference on the shared instance of a non-persistent
// definition. The last reference tears the instance down and clears the
// slot so the next get builds a fresh one.
func (d *Definition[T]) release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.instance == nil {
		return nil
	}
	if d.refs.Load() > 1 {
		d.refs.Add(-1)
		return nil
	}

	instance := *d.instance
	d.clear()
	return d.destroy(instance)
}

// clear empties the instance slot. Callers hold d.mu.
func (d *Definition[T]) clear() {
	d.instance = nil
	d.refs.Store(0)
	d.resolved.Store(false)
}

// close tears down the cached shared instance, if any. Handles still out
// afterwards release without effect.
func (d *Definition[T]) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.instance == nil {
		return nil
	}
	instance := *d.instance
	d.clear()
	return d.destroy(instance)
}

func (d *Definition[T]) destroy(instance T) error {
	if err := d.teardown(instance); err != nil {
		d.log.Warn("teardown failed", zap.Error(err))
		return err
	}
	d.log.Debug("instance torn down")
	return nil
}

func (d *Definition[T]) constructedAt() uint64 { return d.seq.Load() }

func typeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }

package container_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-fuze/framework/container"
)

// ── Registration defaults ─────────────────────────────────────────────────────

func TestRegister_Defaults(t *testing.T) {
	c := container.New()
	def := container.Register[*Engine](c, "engine", nil, nil)

	assert.True(t, def.Shared())
	assert.True(t, def.Persistent())
	assert.Empty(t, def.Tags())
	assert.Equal(t, "engine", def.Name())
	assert.False(t, def.Resolved())
	assert.True(t, c.Has("engine"))
}

func TestRegister_DefaultFactoryBuildsBareValue(t *testing.T) {
	c := container.New()
	container.Register[*Engine](c, "engine", nil, nil)
	container.Register[Logger](c, "logger", nil, nil)

	e, err := container.Get[*Engine](c, "engine")
	require.NoError(t, err)
	require.NotNil(t, e.Value())
	assert.Equal(t, 0, e.Value().ID)

	l, err := container.Get[Logger](c, "logger")
	require.NoError(t, err)
	assert.Equal(t, Logger{}, l.Value())
}

func TestRegister_DefaultFactoryFailsForInterface(t *testing.T) {
	c := container.New()
	container.Register[error](c, "iface", nil, nil)

	_, err := container.Get[error](c, "iface")
	assert.ErrorIs(t, err, container.ErrNoDefaultFactory)
}

func TestRegister_DefaultTeardownClosesCloser(t *testing.T) {
	c := container.New()
	container.Register[*closer](c, "closer", nil, nil).SetShared(false)

	h, err := container.Get[*closer](c, "closer")
	require.NoError(t, err)
	require.NoError(t, h.Release())
	assert.Equal(t, int32(1), h.Value().closed.Load())
}

func TestGet_FreshInstanceNotTornDown(t *testing.T) {
	var n counters
	c := container.New()
	container.Register(c, "engine", n.factory(), n.teardown())

	h, err := container.Get[*Engine](c, "engine")
	require.NoError(t, err)
	assert.NotNil(t, h.Value())
	assert.Zero(t, n.torn.Load())
}

func TestRegisterInstance_NeverTornDown(t *testing.T) {
	c := container.New()
	cl := &closer{}
	container.RegisterInstance(c, "closer", cl)

	h := container.MustGet[*closer](c, "closer")
	assert.Same(t, cl, h.Value())
	require.NoError(t, c.Close())
	assert.Zero(t, cl.closed.Load())
}

func TestNew_BindsItself(t *testing.T) {
	c := container.New()
	h, err := container.Get[*container.Container](c, "container")
	require.NoError(t, err)
	assert.Same(t, c, h.Value())
	assert.NotEmpty(t, c.ID())
}

// ── Transient ─────────────────────────────────────────────────────────────────

func TestTransient_DistinctInstances(t *testing.T) {
	var n counters
	c := container.New()
	container.Register(c, "engine", n.factory(), n.teardown()).SetShared(false)

	h1, err := container.Get[*Engine](c, "engine")
	require.NoError(t, err)
	h2, err := container.Get[*Engine](c, "engine")
	require.NoError(t, err)

	assert.NotSame(t, h1.Value(), h2.Value())
	assert.Equal(t, int32(2), n.built.Load())
	assert.Zero(t, n.torn.Load())
}

func TestTransient_TeardownPerHandle(t *testing.T) {
	var n counters
	c := container.New()
	container.Register(c, "engine", n.factory(), n.teardown()).SetShared(false)

	h1 := container.MustGet[*Engine](c, "engine")
	h2 := container.MustGet[*Engine](c, "engine")

	require.NoError(t, h2.Release())
	assert.Equal(t, int32(1), n.torn.Load())
	assert.Equal(t, int32(h2.Value().ID), n.lastTorn.Load())

	require.NoError(t, h1.Release())
	assert.Equal(t, int32(2), n.torn.Load())
	assert.Equal(t, int32(h1.Value().ID), n.lastTorn.Load())
}

func TestTransient_ReleaseIsIdempotent(t *testing.T) {
	var n counters
	c := container.New()
	container.Register(c, "engine", n.factory(), n.teardown()).SetShared(false)

	h := container.MustGet[*Engine](c, "engine")
	require.NoError(t, h.Release())
	require.NoError(t, h.Release())

	assert.True(t, h.Released())
	assert.Equal(t, int32(1), n.torn.Load())
}

// ── Shared, persistent ────────────────────────────────────────────────────────

func TestSharedPersistent_SingleInstance(t *testing.T) {
	var n counters
	c := container.New()
	container.Register(c, "engine", n.factory(), n.teardown())

	first := container.MustGet[*Engine](c, "engine")
	for range 5 {
		h := container.MustGet[*Engine](c, "engine")
		assert.Same(t, first.Value(), h.Value())
	}
	assert.Equal(t, int32(1), n.built.Load())
}

func TestSharedPersistent_ReleaseDoesNotTearDown(t *testing.T) {
	var n counters
	c := container.New()
	def := container.Register(c, "engine", n.factory(), n.teardown())

	h1 := container.MustGet[*Engine](c, "engine")
	h2 := container.MustGet[*Engine](c, "engine")
	require.NoError(t, h1.Release())
	require.NoError(t, h2.Release())

	assert.Zero(t, n.torn.Load())
	assert.True(t, def.Resolved())
	assert.Zero(t, def.RefCount())

	require.NoError(t, c.Close())
	assert.Equal(t, int32(1), n.torn.Load())
	assert.False(t, def.Resolved())
}

// ── Shared, reference counted ─────────────────────────────────────────────────

func TestRefCounted_Lifecycle(t *testing.T) {
	var n counters
	c := container.New()
	def := container.Register(c, "engine", n.factory(), n.teardown()).SetPersistent(false)

	h1 := container.MustGet[*Engine](c, "engine")
	h2 := container.MustGet[*Engine](c, "engine")
	assert.Same(t, h1.Value(), h2.Value())
	assert.Equal(t, 2, def.RefCount())

	require.NoError(t, h1.Release())
	assert.Equal(t, 1, def.RefCount())
	assert.Zero(t, n.torn.Load(), "instance must stay alive while referenced")

	require.NoError(t, h2.Release())
	assert.Equal(t, int32(1), n.torn.Load())
	assert.False(t, def.Resolved())

	h3 := container.MustGet[*Engine](c, "engine")
	assert.Equal(t, int32(2), n.built.Load(), "a fresh instance is built after full release")
	assert.NotSame(t, h1.Value(), h3.Value())
	require.NoError(t, h3.Release())
	assert.Equal(t, int32(2), n.torn.Load())
}

func TestRefCounted_DoubleReleaseCountsOnce(t *testing.T) {
	var n counters
	c := container.New()
	def := container.Register(c, "engine", n.factory(), n.teardown()).SetPersistent(false)

	h1 := container.MustGet[*Engine](c, "engine")
	h2 := container.MustGet[*Engine](c, "engine")

	require.NoError(t, h1.Release())
	require.NoError(t, h1.Release())
	assert.Equal(t, 1, def.RefCount())
	assert.Zero(t, n.torn.Load())

	require.NoError(t, h2.Release())
	assert.Equal(t, int32(1), n.torn.Load())
}

func TestRefCounted_TeardownErrorReturnedFromRelease(t *testing.T) {
	c := container.New()
	def := container.Register(c, "engine",
		func(*container.Container) (*Engine, error) { return &Engine{}, nil },
		func(*Engine) error { return errBoom },
	).SetPersistent(false)

	h := container.MustGet[*Engine](c, "engine")
	assert.ErrorIs(t, h.Release(), errBoom)
	assert.False(t, def.Resolved(), "slot is cleared even when teardown fails")
}

func TestRefCounted_ConcurrentGetBuildsOnce(t *testing.T) {
	var n counters
	c := container.New()
	def := container.Register(c, "engine", n.factory(), n.teardown()).SetPersistent(false)

	const workers = 32
	handles := make([]*container.Handle[*Engine], workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles[i] = container.MustGet[*Engine](c, "engine")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), n.built.Load())
	assert.Equal(t, workers, def.RefCount())

	for _, h := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), n.torn.Load())
	assert.Zero(t, def.RefCount())
}

// ── Lookup errors ─────────────────────────────────────────────────────────────

func TestGet_UnknownService(t *testing.T) {
	c := container.New()

	_, err := container.Get[*Engine](c, "missing")

	var unknown *container.UnknownServiceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)
	assert.ErrorIs(t, err, container.ErrServiceNotFound)
}

func TestGet_TypeMismatch(t *testing.T) {
	var n counters
	c := container.New()
	container.Register(c, "svc", n.factory(), n.teardown())

	_, err := container.Get[*Logger](c, "svc")

	var mismatch *container.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "svc", mismatch.Name)
	assert.Equal(t, "*container_test.Engine", mismatch.Registered.String())
	assert.Equal(t, "*container_test.Logger", mismatch.Requested.String())
	assert.ErrorIs(t, err, container.ErrTypeMismatch)
	assert.Zero(t, n.built.Load(), "factory must not run on mismatch")
}

func TestGet_ValueVersusPointerIsMismatch(t *testing.T) {
	c := container.New()
	container.Register[Engine](c, "svc", nil, nil)

	_, err := container.Get[*Engine](c, "svc")
	assert.ErrorIs(t, err, container.ErrTypeMismatch)
}

func TestMustGet_Panics(t *testing.T) {
	c := container.New()
	assert.Panics(t, func() { container.MustGet[*Engine](c, "missing") })
}

// ── Factories ─────────────────────────────────────────────────────────────────

func TestFactoryError_PropagatesAndIsNotCached(t *testing.T) {
	calls := 0
	c := container.New()
	def := container.Register(c, "engine", func(*container.Container) (*Engine, error) {
		calls++
		if calls == 1 {
			return nil, errBoom
		}
		return &Engine{ID: calls}, nil
	}, nil)

	_, err := container.Get[*Engine](c, "engine")
	assert.Same(t, errBoom, err, "factory errors are returned unwrapped")
	assert.False(t, def.Resolved())

	h, err := container.Get[*Engine](c, "engine")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Value().ID)
}

func TestFactory_ResolvesDependencies(t *testing.T) {
	c := container.New()
	container.RegisterInstance(c, "logger", &Logger{Prefix: "app"})
	container.Register(c, "engine", func(c *container.Container) (*Engine, error) {
		l, err := container.Get[*Logger](c, "logger")
		if err != nil {
			return nil, err
		}
		return &Engine{ID: len(l.Value().Prefix)}, nil
	}, nil)

	h, err := container.Get[*Engine](c, "engine")
	require.NoError(t, err)
	assert.Equal(t, 3, h.Value().ID)
}

func TestFactory_DependencyErrorPropagates(t *testing.T) {
	c := container.New()
	container.Register(c, "engine", func(c *container.Container) (*Engine, error) {
		if _, err := container.Get[*Logger](c, "logger"); err != nil {
			return nil, err
		}
		return &Engine{}, nil
	}, nil)

	_, err := container.Get[*Engine](c, "engine")
	assert.ErrorIs(t, err, container.ErrServiceNotFound)
}

// ── Re-registration ───────────────────────────────────────────────────────────

func TestRegister_OverwriteClosesPrevious(t *testing.T) {
	var first, second counters
	core, logs := observer.New(zap.WarnLevel)
	c := container.New(container.WithLogger(zap.New(core)))

	container.Register(c, "engine", first.factory(), first.teardown())
	container.MustGet[*Engine](c, "engine")

	container.Register(c, "engine", second.factory(), second.teardown())
	assert.Equal(t, int32(1), first.torn.Load(), "previous shared instance is torn down")

	container.MustGet[*Engine](c, "engine")
	assert.Equal(t, int32(1), second.built.Load())
	assert.Equal(t, 1, logs.FilterMessage("service re-registered, closing previous definition").Len())
}

func TestRegister_OverwriteWithOtherType(t *testing.T) {
	c := container.New()
	container.Register[*Engine](c, "svc", nil, nil)
	container.Register[*Logger](c, "svc", nil, nil)

	_, err := container.Get[*Engine](c, "svc")
	assert.ErrorIs(t, err, container.ErrTypeMismatch)
	_, err = container.Get[*Logger](c, "svc")
	assert.NoError(t, err)
}

// ── Tags ──────────────────────────────────────────────────────────────────────

func TestTagged_NameOrder(t *testing.T) {
	c := container.New()
	for _, name := range []string{"c", "a", "b"} {
		id := int(name[0])
		container.Register(c, name, func(*container.Container) (*Engine, error) {
			return &Engine{ID: id}, nil
		}, nil).Tag("engines")
	}
	container.Register[*Engine](c, "untagged", nil, nil)

	handles, err := container.Tagged[*Engine](c, "engines")
	require.NoError(t, err)
	require.Len(t, handles, 3)
	assert.Equal(t, int('a'), handles[0].Value().ID)
	assert.Equal(t, int('b'), handles[1].Value().ID)
	assert.Equal(t, int('c'), handles[2].Value().ID)
}

func TestTagged_DuplicateTagsAllowed(t *testing.T) {
	c := container.New()
	def := container.Register[*Engine](c, "e", nil, nil).Tag("x").Tag("x")

	assert.Equal(t, []string{"x", "x"}, def.Tags())
	handles, err := container.Tagged[*Engine](c, "x")
	require.NoError(t, err)
	assert.Len(t, handles, 1)
}

func TestTagged_Empty(t *testing.T) {
	c := container.New()
	handles, err := container.Tagged[*Engine](c, "nothing")
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestTagged_CalledFromSharedFactory(t *testing.T) {
	c := container.New()
	container.Register[*Engine](c, "e1", nil, nil).Tag("engines")
	container.Register[*Engine](c, "e2", nil, nil).Tag("engines")

	type garage struct{ engines int }
	def := container.Register(c, "garage", func(c *container.Container) (*garage, error) {
		handles, err := container.Tagged[*Engine](c, "engines")
		if err != nil {
			return nil, err
		}
		return &garage{engines: len(handles)}, nil
	}, nil).Tag("buildings").SetPersistent(false)

	h, err := container.Get[*garage](c, "garage")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Value().engines)
	assert.Equal(t, 1, def.RefCount())
}

func TestDefinition_StateReadableWhileFactoryRuns(t *testing.T) {
	c := container.New()

	var def *container.Definition[*Engine]
	var resolved, tagged bool
	var refs int
	def = container.Register(c, "e", func(*container.Container) (*Engine, error) {
		resolved = def.Resolved()
		tagged = def.HasTag("engines")
		refs = def.RefCount()
		return &Engine{}, nil
	}, nil).Tag("engines").SetPersistent(false)

	h, err := container.Get[*Engine](c, "e")
	require.NoError(t, err)
	assert.False(t, resolved)
	assert.True(t, tagged)
	assert.Zero(t, refs)
	assert.True(t, def.Resolved())
	require.NoError(t, h.Release())
	assert.False(t, def.Resolved())
}

func TestTagged_MixedTypesFail(t *testing.T) {
	var n counters
	c := container.New()
	container.Register(c, "a", n.factory(), n.teardown()).Tag("mixed").SetShared(false)
	container.Register[*Logger](c, "b", nil, nil).Tag("mixed")

	handles, err := container.Tagged[*Engine](c, "mixed")
	assert.Nil(t, handles)
	assert.ErrorIs(t, err, container.ErrTypeMismatch)
	assert.Equal(t, int32(1), n.torn.Load(), "handles obtained before the failure are released")
}

// ── Close ─────────────────────────────────────────────────────────────────────

func TestClose_ReverseConstructionOrder(t *testing.T) {
	var order []string
	c := container.New()
	track := func(name string) container.Teardown[*Engine] {
		return func(*Engine) error {
			order = append(order, name)
			return nil
		}
	}
	container.Register[*Engine](c, "a", nil, track("a"))
	container.Register[*Engine](c, "b", nil, track("b"))
	container.Register[*Engine](c, "never", nil, track("never"))

	container.MustGet[*Engine](c, "b")
	container.MustGet[*Engine](c, "a")

	require.NoError(t, c.Close())
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestClose_CombinesTeardownErrors(t *testing.T) {
	errOther := errors.New("other")
	c := container.New()
	container.Register[*Engine](c, "a", nil, func(*Engine) error { return errBoom })
	container.Register[*Engine](c, "b", nil, func(*Engine) error { return errOther })
	container.MustGet[*Engine](c, "a")
	container.MustGet[*Engine](c, "b")

	err := c.Close()
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, errOther)
}

func TestClose_TearsDownReferencedRefCountedInstanceOnce(t *testing.T) {
	var n counters
	c := container.New()
	container.Register(c, "engine", n.factory(), n.teardown()).SetPersistent(false)

	h := container.MustGet[*Engine](c, "engine")
	require.NoError(t, c.Close())
	assert.Equal(t, int32(1), n.torn.Load())

	require.NoError(t, h.Release())
	assert.Equal(t, int32(1), n.torn.Load(), "release after close must not tear down again")
}

func TestClose_IdempotentAndBlocksLookups(t *testing.T) {
	c := container.New()
	container.Register[*Engine](c, "engine", nil, nil).Tag("t")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := container.Get[*Engine](c, "engine")
	assert.ErrorIs(t, err, container.ErrClosed)
	_, err = container.Tagged[*Engine](c, "t")
	assert.ErrorIs(t, err, container.ErrClosed)
	_, err = c.Parameter("anything")
	assert.ErrorIs(t, err, container.ErrClosed)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func TestNames_Sorted(t *testing.T) {
	c := container.New()
	container.Register[*Engine](c, "zeta", nil, nil)
	container.Register[*Engine](c, "alpha", nil, nil)

	assert.Equal(t, []string{"alpha", "container", "zeta"}, c.Names())
	assert.False(t, c.Has("beta"))
}

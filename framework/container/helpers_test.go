package container_test

import (
	"errors"
	"sync/atomic"

	"github.com/km-arc/go-fuze/framework/container"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Engine struct {
	ID int
}

type Logger struct {
	Prefix string
}

// counters records how often a definition's factory and teardown ran.
type counters struct {
	built    atomic.Int32
	torn     atomic.Int32
	lastTorn atomic.Int32
}

func (n *counters) factory() container.Factory[*Engine] {
	return func(*container.Container) (*Engine, error) {
		id := n.built.Add(1)
		return &Engine{ID: int(id)}, nil
	}
}

func (n *counters) teardown() container.Teardown[*Engine] {
	return func(e *Engine) error {
		n.torn.Add(1)
		n.lastTorn.Store(int32(e.ID))
		return nil
	}
}

// closer implements io.Closer for default-teardown tests.
type closer struct {
	closed atomic.Int32
	err    error
}

func (c *closer) Close() error {
	c.closed.Add(1)
	return c.err
}

var errBoom = errors.New("boom")

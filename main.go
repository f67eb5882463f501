package main

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/km-arc/go-fuze/framework/app"
	"github.com/km-arc/go-fuze/framework/container"
	"github.com/km-arc/go-fuze/framework/providers"
)

// Greeter is a shared service configured from parameters.
type Greeter struct {
	Greeting string
	Times    int
}

func (g *Greeter) Greet(name string) string {
	return fmt.Sprintf("%s, %s!", g.Greeting, name)
}

// Session is created per Get and closed on Release.
type Session struct {
	ID     int64
	logger *zap.Logger
}

func (s *Session) Close() error {
	s.logger.Info("session closed", zap.Int64("session", s.ID))
	return nil
}

// AppServiceProvider registers the demo services.
type AppServiceProvider struct {
	container.BaseProvider
	sessions atomic.Int64
}

func (p *AppServiceProvider) Register(c *container.Container) {
	container.Register(c, "greeter", func(c *container.Container) (*Greeter, error) {
		greeting, err := c.Parameter("greeting")
		if err != nil {
			return nil, err
		}
		times, err := c.Parameter("greeting_times")
		if err != nil {
			return nil, err
		}
		return &Greeter{Greeting: greeting.String(), Times: times.Int()}, nil
	}, nil).Tag("demo")

	container.Register(c, "session", func(c *container.Container) (*Session, error) {
		return &Session{ID: p.sessions.Add(1), logger: c.Logger()}, nil
	}, nil).SetShared(false)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	application, err := app.New() // loads .env automatically
	if err != nil {
		return err
	}
	defer application.Close()

	application.Register(&providers.MapServiceProvider{Values: map[string]string{
		"greeting":       "Hello",
		"greeting_times": "2",
	}})
	application.Register(&AppServiceProvider{})

	if err := application.Boot(); err != nil {
		return err
	}

	greeter, err := container.Get[*Greeter](application.Container, "greeter")
	if err != nil {
		return err
	}
	defer greeter.Release()

	for i := 0; i < greeter.Value().Times; i++ {
		session, err := container.Get[*Session](application.Container, "session")
		if err != nil {
			return err
		}
		fmt.Println(greeter.Value().Greet(fmt.Sprintf("session %d", session.Value().ID)))
		if err := session.Release(); err != nil {
			return err
		}
	}

	application.Logger().Info("services",
		zap.Strings("names", application.Names()),
		zap.String("container", application.ID()),
	)
	return nil
}

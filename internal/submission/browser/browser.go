// Package browser is the port to an embedded browser context. The host can
// load a page, inject a script and read a one-way stream of typed messages
// posted back by that script.
package browser

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed context.
var ErrClosed = errors.New("browser context closed")

// Browser is one embedded browser context. Messages is closed once the
// context is torn down. Close is safe to call more than once.
type Browser interface {
	Load(ctx context.Context, url string) error
	Inject(ctx context.Context, script string) error
	Messages() <-chan Message
	Close() error
}

// Factory opens fresh browser contexts.
type Factory interface {
	Open(ctx context.Context) (Browser, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context) (Browser, error)

func (f FactoryFunc) Open(ctx context.Context) (Browser, error) { return f(ctx) }

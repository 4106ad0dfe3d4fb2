package browser

import (
	"context"
	"sync"
)

// Fake is a scripted Browser for tests. Messages queued with Emit are
// delivered in order; Script runs on Inject so a test can react to the
// injected script.
type Fake struct {
	mu         sync.Mutex
	messages   chan Message
	closed     bool
	loaded     []string
	injected   []string
	closeCalls int

	LoadErr   error
	InjectErr error
	// OnInject, when set, runs after a successful Inject.
	OnInject func(f *Fake, script string)
}

func NewFake(buffer int) *Fake {
	return &Fake{messages: make(chan Message, buffer)}
}

func (f *Fake) Load(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.loaded = append(f.loaded, url)
	return f.LoadErr
}

func (f *Fake) Inject(_ context.Context, script string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.InjectErr != nil {
		f.mu.Unlock()
		return f.InjectErr
	}
	f.injected = append(f.injected, script)
	hook := f.OnInject
	f.mu.Unlock()
	if hook != nil {
		hook(f, script)
	}
	return nil
}

func (f *Fake) Messages() <-chan Message { return f.messages }

// Emit queues messages and blocks once the buffer is full. It is a no-op
// after Close.
func (f *Fake) Emit(msgs ...Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for _, m := range msgs {
		f.messages <- m
	}
}

// End closes the message stream without marking the context closed, as a
// crashed page would.
func (f *Fake) End() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.messages)
	}
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if !f.closed {
		f.closed = true
		close(f.messages)
	}
	return nil
}

func (f *Fake) CloseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

func (f *Fake) Loaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loaded...)
}

func (f *Fake) Injected() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.injected...)
}

// FakeFactory hands out one prepared Fake per Open call, in order.
type FakeFactory struct {
	mu      sync.Mutex
	fakes   []*Fake
	opened  int
	OpenErr error
}

func NewFakeFactory(fakes ...*Fake) *FakeFactory {
	return &FakeFactory{fakes: fakes}
}

func (f *FakeFactory) Open(context.Context) (Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	if f.opened >= len(f.fakes) {
		return nil, ErrClosed
	}
	b := f.fakes[f.opened]
	f.opened++
	return b, nil
}

func (f *FakeFactory) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

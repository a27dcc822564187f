// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/inputbus/inputbus/lib/bus"
	"github.com/inputbus/inputbus/lib/engine"
	"github.com/inputbus/inputbus/lib/factory"
)

// SetupFunc registers engine types on a newly created factory, before
// its connection serves any request.
type SetupFunc func(f *factory.Factory)

// EngineSetup returns a SetupFunc registering the named types from
// catalog. An empty names list registers the whole catalog. Unknown
// names are rejected here rather than on first use.
func EngineSetup(names []string, catalog map[string]engine.Constructor) (SetupFunc, error) {
	if len(names) == 0 {
		for name := range catalog {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	selected := make(map[string]engine.Constructor, len(names))
	for _, name := range names {
		constructor, exists := catalog[name]
		if !exists {
			return nil, fmt.Errorf("unknown engine type %q", name)
		}
		selected[name] = constructor
	}

	return func(f *factory.Factory) {
		for name, constructor := range selected {
			f.AddEngine(name, constructor)
		}
	}, nil
}

// Impl gives every connection its own factory.
type Impl struct {
	setup  SetupFunc
	logger *slog.Logger

	mu        sync.Mutex
	factories map[*bus.Connection]*factory.Factory
	closed    bool
}

// NewImpl creates an Impl that prepares each factory with setup.
func NewImpl(setup SetupFunc, logger *slog.Logger) *Impl {
	return &Impl{
		setup:     setup,
		logger:    logger,
		factories: make(map[*bus.Connection]*factory.Factory),
	}
}

// NewConnection binds a factory to conn. The factory is destroyed
// when conn closes.
func (i *Impl) NewConnection(conn *bus.Connection) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		conn.Logger().Info("refusing connection during shutdown")
		conn.Close()
		return
	}
	i.mu.Unlock()

	f, err := factory.New(conn, conn.Logger())
	if err != nil {
		conn.Logger().Error("creating factory failed", "error", err)
		conn.Close()
		return
	}
	if i.setup != nil {
		i.setup(f)
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		f.Destroy()
		conn.Close()
		return
	}
	i.factories[conn] = f
	i.mu.Unlock()

	conn.OnClose(func(closed *bus.Connection) {
		i.release(closed)
	})
}

// release destroys the factory bound to conn, if it is still tracked.
func (i *Impl) release(conn *bus.Connection) {
	i.mu.Lock()
	f, exists := i.factories[conn]
	delete(i.factories, conn)
	i.mu.Unlock()
	if exists {
		f.Destroy()
	}
}

// Factory returns the factory bound to conn, or nil.
func (i *Impl) Factory(conn *bus.Connection) *factory.Factory {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.factories[conn]
}

// Len returns the number of connections with a live factory.
func (i *Impl) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.factories)
}

// Close destroys every remaining factory and refuses later
// connections.
func (i *Impl) Close() {
	i.mu.Lock()
	i.closed = true
	remaining := make([]*factory.Factory, 0, len(i.factories))
	for conn, f := range i.factories {
		remaining = append(remaining, f)
		delete(i.factories, conn)
	}
	i.mu.Unlock()

	for _, f := range remaining {
		f.Destroy()
	}
	i.logger.Debug("daemon implementation released", "factories", len(remaining))
}
